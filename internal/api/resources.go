package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storepulse/internal/database"
	"storepulse/internal/event"
	"storepulse/internal/models"
)

// ResourceHandler serves the CRUD surface for connections, devices, and
// message templates.
type ResourceHandler struct{}

func NewResourceHandler() *ResourceHandler {
	return &ResourceHandler{}
}

// --- Connections ---

func (h *ResourceHandler) GetConnections(c *gin.Context) {
	var connections []models.Connection
	if err := database.GormDB.Order("created_at DESC").Find(&connections).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, connections)
}

func (h *ResourceHandler) CreateConnection(c *gin.Context) {
	var req struct {
		Label      string `json:"label"`
		Platform   string `json:"platform" binding:"required"`
		Credential string `json:"credential"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !event.Platform(req.Platform).IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}

	conn := models.Connection{
		ID:         uuid.NewString(),
		Label:      req.Label,
		Platform:   req.Platform,
		Credential: req.Credential,
		IsActive:   true,
	}
	if err := database.GormDB.Create(&conn).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": conn.ID, "message": "Connection created successfully"})
}

func (h *ResourceHandler) DeleteConnection(c *gin.Context) {
	if err := database.GormDB.Delete(&models.Connection{}, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Connection deleted successfully"})
}

// --- Devices ---

func (h *ResourceHandler) GetDevices(c *gin.Context) {
	var devices []models.Device
	if err := database.GormDB.Order("created_at DESC").Find(&devices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *ResourceHandler) CreateDevice(c *gin.Context) {
	var req struct {
		Label         string `json:"label"`
		PhoneNumberID string `json:"phone_number_id" binding:"required"`
		AccessToken   string `json:"access_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device := models.Device{
		ID:            uuid.NewString(),
		Label:         req.Label,
		Provider:      "whatsapp_cloud",
		PhoneNumberID: req.PhoneNumberID,
		AccessToken:   req.AccessToken,
		IsActive:      true,
	}
	if err := database.GormDB.Create(&device).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": device.ID, "message": "Device created successfully"})
}

func (h *ResourceHandler) DeleteDevice(c *gin.Context) {
	if err := database.GormDB.Delete(&models.Device{}, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device deleted successfully"})
}

// --- Message templates ---

func (h *ResourceHandler) GetTemplates(c *gin.Context) {
	var templates []models.MessageTemplate
	if err := database.GormDB.Order("created_at DESC").Find(&templates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *ResourceHandler) CreateTemplate(c *gin.Context) {
	var req struct {
		Name      string   `json:"name" binding:"required"`
		Body      string   `json:"body" binding:"required"`
		Variables []string `json:"variables"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl := models.MessageTemplate{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Body:      req.Body,
		Variables: marshalVariables(req.Variables),
	}
	if err := database.GormDB.Create(&tmpl).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": tmpl.ID, "message": "Template created successfully"})
}

func (h *ResourceHandler) UpdateTemplate(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Name      string   `json:"name"`
		Body      string   `json:"body"`
		Variables []string `json:"variables"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updateData := map[string]interface{}{}
	if req.Name != "" {
		updateData["name"] = req.Name
	}
	if req.Body != "" {
		updateData["body"] = req.Body
	}
	if len(req.Variables) > 0 {
		updateData["variables"] = marshalVariables(req.Variables)
	}

	if err := database.GormDB.Model(&models.MessageTemplate{}).Where("id = ?", id).Updates(updateData).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template updated successfully"})
}

func (h *ResourceHandler) DeleteTemplate(c *gin.Context) {
	if err := database.GormDB.Delete(&models.MessageTemplate{}, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}
