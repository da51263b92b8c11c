package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storepulse/internal/database"
	"storepulse/internal/event"
	"storepulse/internal/models"
	"storepulse/internal/registry"
)

type AutomationHandler struct{}

func NewAutomationHandler() *AutomationHandler {
	return &AutomationHandler{}
}

// GetAutomations returns all automations
func (h *AutomationHandler) GetAutomations(c *gin.Context) {
	var automations []models.Automation
	if err := database.GormDB.Order("created_at DESC").Find(&automations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, automations)
}

// CreateAutomation creates a new automation from a catalog definition
func (h *AutomationHandler) CreateAutomation(c *gin.Context) {
	var req struct {
		UserID        string          `json:"user_id"`
		DefinitionID  string          `json:"definition_id" binding:"required"`
		ConnectionID  string          `json:"connection_id"`
		DeviceID      string          `json:"device_id"`
		TemplateID    string          `json:"template_id"`
		TriggerConfig json.RawMessage `json:"trigger_config"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def, ok := registry.Lookup(req.DefinitionID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown definition id"})
		return
	}
	if def.Requires.Connection && req.ConnectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "definition requires a connection"})
		return
	}
	if def.Requires.Device && req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "definition requires a device"})
		return
	}
	if def.Requires.Template && req.TemplateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "definition requires a message template"})
		return
	}

	automation := models.Automation{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		DefinitionID:  req.DefinitionID,
		ConnectionID:  req.ConnectionID,
		DeviceID:      req.DeviceID,
		TemplateID:    req.TemplateID,
		TriggerKind:   string(def.TriggerKind),
		TriggerConfig: string(req.TriggerConfig),
		IsActive:      true,
	}

	if err := database.GormDB.Create(&automation).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          automation.ID,
		"webhook_url": "/webhooks/automations/" + automation.ID,
		"message":     "Automation created successfully",
	})
}

// UpdateAutomation updates an existing automation
func (h *AutomationHandler) UpdateAutomation(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		ConnectionID  string          `json:"connection_id"`
		DeviceID      string          `json:"device_id"`
		TemplateID    string          `json:"template_id"`
		TriggerConfig json.RawMessage `json:"trigger_config"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updateData := map[string]interface{}{}
	if req.ConnectionID != "" {
		updateData["connection_id"] = req.ConnectionID
	}
	if req.DeviceID != "" {
		updateData["device_id"] = req.DeviceID
	}
	if req.TemplateID != "" {
		updateData["template_id"] = req.TemplateID
	}
	if len(req.TriggerConfig) > 0 {
		updateData["trigger_config"] = string(req.TriggerConfig)
	}

	if err := database.GormDB.Model(&models.Automation{}).Where("id = ?", id).Updates(updateData).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Automation updated successfully"})
}

// DeleteAutomation deletes an automation
func (h *AutomationHandler) DeleteAutomation(c *gin.Context) {
	id := c.Param("id")

	if err := database.GormDB.Delete(&models.Automation{}, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Automation deleted successfully"})
}

// ToggleAutomation enables or disables an automation
func (h *AutomationHandler) ToggleAutomation(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		IsActive bool `json:"is_active"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := database.GormDB.Model(&models.Automation{}).Where("id = ?", id).Update("is_active", req.IsActive).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Automation toggled successfully"})
}

// GetDispatchLogs returns recent dispatch outcomes
func (h *AutomationHandler) GetDispatchLogs(c *gin.Context) {
	limit := c.DefaultQuery("limit", "50")
	limitInt, _ := strconv.Atoi(limit)

	query := database.GormDB.Order("created_at DESC").Limit(limitInt)
	if automationID := c.Query("automation_id"); automationID != "" {
		query = query.Where("automation_id = ?", automationID)
	}

	var logs []models.DispatchLog
	if err := query.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, logs)
}

// GetAnalytics returns dispatch analytics
func (h *AutomationHandler) GetAnalytics(c *gin.Context) {
	var stats struct {
		TotalAutomations  int64 `json:"total_automations"`
		ActiveAutomations int64 `json:"active_automations"`
		TotalDispatches   int64 `json:"total_dispatches"`
		SuccessfulCount   int64 `json:"successful_dispatches"`
		FailedCount       int64 `json:"failed_dispatches"`
		SkippedCount      int64 `json:"skipped_dispatches"`
	}

	database.GormDB.Model(&models.Automation{}).Count(&stats.TotalAutomations)
	database.GormDB.Model(&models.Automation{}).Where("is_active = ?", true).Count(&stats.ActiveAutomations)
	database.GormDB.Model(&models.DispatchLog{}).Count(&stats.TotalDispatches)
	database.GormDB.Model(&models.DispatchLog{}).Where("status = ?", "success").Count(&stats.SuccessfulCount)
	database.GormDB.Model(&models.DispatchLog{}).Where("status = ?", "failed").Count(&stats.FailedCount)
	database.GormDB.Model(&models.DispatchLog{}).Where("status = ?", "skipped").Count(&stats.SkippedCount)

	c.JSON(http.StatusOK, stats)
}

// GetCatalog returns the template definition catalog
func (h *AutomationHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, registry.All())
}

// GetTriggerKinds returns the supported trigger kinds
func (h *AutomationHandler) GetTriggerKinds(c *gin.Context) {
	c.JSON(http.StatusOK, []event.Kind{
		event.KindOrderConfirmed,
		event.KindOrderFulfilled,
		event.KindCheckoutCreated,
		event.KindCheckoutOTPRequested,
		event.KindGenericReply,
	})
}
