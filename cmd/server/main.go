package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"storepulse/internal/api"
	"storepulse/internal/config"
	"storepulse/internal/database"
	"storepulse/internal/engine"
	"storepulse/internal/event"
	"storepulse/internal/models"
	"storepulse/internal/sheets"
	"storepulse/internal/store"
	"storepulse/internal/webhook"
	"storepulse/internal/whatsapp"
	"storepulse/internal/ws"
)

func main() {
	cfg := config.LoadConfig()
	database.InitGorm(cfg)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	hub := ws.NewHub()
	go hub.Run()

	st := store.NewGorm(database.GormDB)
	messenger := whatsapp.NewClient(cfg.HTTPTimeout)
	sheetsClient := sheets.NewClient(cfg.SheetsToken, cfg.HTTPTimeout)

	sink := engine.MultiSink(
		engine.SinkFunc(func(ctx context.Context, o engine.Outcome) {
			entry := models.DispatchLog{
				DispatchID:     o.DispatchID,
				AutomationID:   o.AutomationID,
				CorrelationKey: o.CorrelationKey,
				EventKind:      string(o.EventKind),
				Status:         o.Status,
				Attempts:       o.Attempts,
				ExternalID:     o.ExternalID,
				ErrorMessage:   o.ErrorMessage,
			}
			if err := st.RecordDispatch(ctx, &entry); err != nil {
				log.Printf("Error recording dispatch log: %v", err)
			}
		}),
		engine.SinkFunc(func(ctx context.Context, o engine.Outcome) {
			hub.BroadcastEvent("dispatch_outcome", o)
		}),
	)

	// When an OTP reply resolves, send the configured confirmation back
	// through the same device and surface the resolution.
	continuation := func(ctx context.Context, rec *engine.PendingReply, ev *event.TriggerEvent) {
		device, err := st.GetDevice(ctx, rec.DeviceID)
		if err != nil {
			log.Printf("Reply continuation: loading device %s: %v", rec.DeviceID, err)
			return
		}
		externalID, err := messenger.SendText(ctx, device, rec.Destination, rec.ConfirmationBody)
		if err != nil {
			log.Printf("Reply continuation: sending confirmation to %s: %v", rec.Destination, err)
		}
		entry := models.DispatchLog{
			AutomationID:   rec.AutomationID,
			CorrelationKey: rec.Token,
			EventKind:      string(event.KindGenericReply),
			Status:         "success",
			ExternalID:     externalID,
		}
		if err := st.RecordDispatch(ctx, &entry); err != nil {
			log.Printf("Error recording reply resolution: %v", err)
		}
		hub.BroadcastEvent("reply_resolved", gin.H{
			"token":         rec.Token,
			"automation_id": rec.AutomationID,
		})
	}

	correlator := engine.NewCorrelator(cfg.ReplyGrace, continuation)
	correlator.Start(cfg.SweepInterval)
	defer correlator.Close()

	dedup := engine.NewDedupWindow(cfg.DedupWindow)
	matcher := engine.NewMatcher(st, st, dedup)
	dispatcher := engine.NewDispatcher(engine.DispatcherDeps{
		Connections: st,
		Devices:     st,
		Templates:   st,
		Automations: st,
		Messenger:   messenger,
		Sheets:      sheetsClient,
		Correlator:  correlator,
		Sink:        sink,
		Retry: engine.RetryPolicy{
			Attempts: cfg.RetryAttempts,
			Base:     engine.DefaultRetryPolicy().Base,
			Max:      engine.DefaultRetryPolicy().Max,
		},
		ReplyTTL: cfg.ReplyTTL,
	})

	processor := engine.NewProcessor(engine.ProcessorConfig{
		Matcher:    matcher,
		Dispatcher: dispatcher,
		Correlator: correlator,
		Sink:       sink,
		Workers:    cfg.WorkerCount,
		QueueDepth: cfg.QueueDepth,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor.Start(ctx)

	webhookHandler := webhook.NewHandler(cfg, processor)
	automationHandler := api.NewAutomationHandler()
	resourceHandler := api.NewResourceHandler()

	// Ingestion Routes
	r.GET("/webhooks/whatsapp", webhookHandler.VerifyDevice)
	r.POST("/webhooks/whatsapp", webhookHandler.HandleDeviceMessage)
	r.POST("/webhooks/automations/:id", webhookHandler.HandleAutomation)
	r.POST("/webhooks/platforms/:platform", webhookHandler.HandlePlatform)

	// Live activity feed
	r.GET("/ws", gin.WrapF(hub.ServeWs))

	// Management API Routes
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/catalog", automationHandler.GetCatalog)
		apiGroup.GET("/trigger-kinds", automationHandler.GetTriggerKinds)

		apiGroup.GET("/automations", automationHandler.GetAutomations)
		apiGroup.POST("/automations", automationHandler.CreateAutomation)
		apiGroup.PUT("/automations/:id", automationHandler.UpdateAutomation)
		apiGroup.DELETE("/automations/:id", automationHandler.DeleteAutomation)
		apiGroup.POST("/automations/:id/toggle", automationHandler.ToggleAutomation)
		apiGroup.GET("/dispatch-logs", automationHandler.GetDispatchLogs)
		apiGroup.GET("/analytics", automationHandler.GetAnalytics)

		apiGroup.GET("/connections", resourceHandler.GetConnections)
		apiGroup.POST("/connections", resourceHandler.CreateConnection)
		apiGroup.DELETE("/connections/:id", resourceHandler.DeleteConnection)

		apiGroup.GET("/devices", resourceHandler.GetDevices)
		apiGroup.POST("/devices", resourceHandler.CreateDevice)
		apiGroup.DELETE("/devices/:id", resourceHandler.DeleteDevice)

		apiGroup.GET("/templates", resourceHandler.GetTemplates)
		apiGroup.POST("/templates", resourceHandler.CreateTemplate)
		apiGroup.PUT("/templates/:id", resourceHandler.UpdateTemplate)
		apiGroup.DELETE("/templates/:id", resourceHandler.DeleteTemplate)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
