package main

import (
	"log"

	"github.com/google/uuid"

	"storepulse/internal/config"
	"storepulse/internal/database"
	"storepulse/internal/models"
)

// Seeds a development database with one connection, device, template, and an
// abandoned-checkout automation wired to them.
func main() {
	cfg := config.LoadConfig()
	database.InitGorm(cfg)
	db := database.GormDB

	connection := models.Connection{
		ID:         uuid.NewString(),
		Label:      "Dev Store",
		Platform:   "shopify",
		Credential: `{"shop_url":"dev-store.myshopify.com","access_token":"shpat_dev"}`,
		IsActive:   true,
	}
	device := models.Device{
		ID:            uuid.NewString(),
		Label:         "Dev WhatsApp Number",
		Provider:      "whatsapp_cloud",
		PhoneNumberID: "100000000000000",
		AccessToken:   "EAAdev",
		IsActive:      true,
	}
	template := models.MessageTemplate{
		ID:        uuid.NewString(),
		Name:      "Checkout Recovery",
		Body:      "Hi {{customer_name|there}}, complete your order: {{recovery_url}}",
		Variables: `["customer_name","recovery_url"]`,
	}

	for _, record := range []interface{}{&connection, &device, &template} {
		if err := db.Create(record).Error; err != nil {
			log.Fatalf("Failed to seed record: %v", err)
		}
	}

	automation := models.Automation{
		ID:           uuid.NewString(),
		UserID:       "dev",
		DefinitionID: "abandoned_checkout_recovery",
		ConnectionID: connection.ID,
		DeviceID:     device.ID,
		TemplateID:   template.ID,
		TriggerKind:  "checkout_created",
		IsActive:     true,
	}
	if err := db.Create(&automation).Error; err != nil {
		log.Fatalf("Failed to seed automation: %v", err)
	}

	log.Printf("Seeded automation %s", automation.ID)
	log.Printf("Webhook URL: /webhooks/automations/%s", automation.ID)
}
