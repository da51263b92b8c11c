package models

import (
	"time"
)

// Connection is an authorized link to a storefront platform. The credential
// blob is platform specific (access token, shop URL, consumer key/secret).
type Connection struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Label      string    `gorm:"type:varchar(255)" json:"label"`
	Platform   string    `gorm:"type:varchar(50);index;not null" json:"platform"`
	Credential string    `gorm:"type:text" json:"credential"` // JSON blob
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Connection) TableName() string {
	return "connections"
}

// Device is an outbound messaging endpoint, currently a WhatsApp Cloud API
// phone number with its own access token.
type Device struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Label         string    `gorm:"type:varchar(255)" json:"label"`
	Provider      string    `gorm:"type:varchar(50);default:'whatsapp_cloud'" json:"provider"`
	PhoneNumberID string    `gorm:"type:varchar(100);not null" json:"phone_number_id"`
	AccessToken   string    `gorm:"type:text" json:"access_token"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Device) TableName() string {
	return "devices"
}

// MessageTemplate is a user-authored message body with named placeholders.
// Variables holds the declared placeholder names as a JSON array.
type MessageTemplate struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Variables string    `gorm:"type:text" json:"variables"` // JSON array of names
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MessageTemplate) TableName() string {
	return "message_templates"
}

// Automation is a user's concrete rule: one catalog definition bound to the
// resources it needs. TriggerConfig is a JSON object holding the subset of
// the definition's config schema the user filled in.
type Automation struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"type:varchar(100);index" json:"user_id"`
	DefinitionID  string    `gorm:"type:varchar(100);not null" json:"definition_id"`
	ConnectionID  string    `gorm:"type:varchar(100)" json:"connection_id"`
	DeviceID      string    `gorm:"type:varchar(100)" json:"device_id"`
	TemplateID    string    `gorm:"type:varchar(100)" json:"template_id"`
	TriggerKind   string    `gorm:"type:varchar(50);index;not null" json:"trigger_kind"`
	TriggerConfig string    `gorm:"type:text" json:"trigger_config"` // JSON object
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Automation) TableName() string {
	return "automations"
}

// DispatchLog records one action execution outcome.
type DispatchLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DispatchID     string    `gorm:"type:varchar(100);index" json:"dispatch_id"`
	AutomationID   string    `gorm:"type:varchar(100);index" json:"automation_id"`
	CorrelationKey string    `gorm:"type:varchar(255);index" json:"correlation_key"`
	EventKind      string    `gorm:"type:varchar(50)" json:"event_kind"`
	Status         string    `gorm:"type:varchar(20)" json:"status"` // success, failed, skipped
	Attempts       int       `gorm:"default:0" json:"attempts"`
	ExternalID     string    `gorm:"type:varchar(255)" json:"external_id"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DispatchLog) TableName() string {
	return "dispatch_logs"
}
