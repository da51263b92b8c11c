// Package registry holds the static catalog of automation template
// definitions. The catalog is built once at init and never mutated.
package registry

import (
	"sort"
	"time"

	"storepulse/internal/event"
)

// ActionKind is the enumerated category of side effect a definition performs.
type ActionKind string

const (
	ActionSendMessage ActionKind = "send_whatsapp_message"
	ActionAppendRow   ActionKind = "append_sheet_row"
	ActionSendOTP     ActionKind = "send_otp"
)

func (a ActionKind) IsValid() bool {
	switch a {
	case ActionSendMessage, ActionAppendRow, ActionSendOTP:
		return true
	default:
		return false
	}
}

// FieldSpec describes one entry of a definition's config schema.
type FieldSpec struct {
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Requirements declares which store-backed resources an automation built from
// a definition must reference.
type Requirements struct {
	Connection bool           `json:"connection"`
	Platform   event.Platform `json:"platform,omitempty"` // required connection platform, empty = any
	Device     bool           `json:"device"`
	Template   bool           `json:"template"`
}

// Definition is one immutable catalog entry.
type Definition struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	TriggerKind event.Kind           `json:"trigger_kind"`
	ActionKind  ActionKind           `json:"action_kind"`
	Schema      map[string]FieldSpec `json:"schema,omitempty"`
	Defaults    map[string]string    `json:"defaults,omitempty"`
	Requires    Requirements         `json:"requires"`
	AwaitsReply bool                 `json:"awaits_reply"`
	ReplyTTL    time.Duration        `json:"-"`
}

var catalog = map[string]Definition{
	"abandoned_checkout_recovery": {
		ID:          "abandoned_checkout_recovery",
		Name:        "Abandoned Checkout Recovery",
		Description: "Message the customer when a checkout is created but not completed",
		TriggerKind: event.KindCheckoutCreated,
		ActionKind:  ActionSendMessage,
		Schema: map[string]FieldSpec{
			"to_field": {Label: "Event field holding the destination number"},
		},
		Defaults: map[string]string{"to_field": event.FieldCustomerPhone},
		Requires: Requirements{Connection: true, Device: true, Template: true},
	},
	"order_confirmation_message": {
		ID:          "order_confirmation_message",
		Name:        "Order Confirmation Message",
		Description: "Message the customer when an order is confirmed",
		TriggerKind: event.KindOrderConfirmed,
		ActionKind:  ActionSendMessage,
		Schema: map[string]FieldSpec{
			"to_field": {Label: "Event field holding the destination number"},
		},
		Defaults: map[string]string{"to_field": event.FieldCustomerPhone},
		Requires: Requirements{Connection: true, Device: true, Template: true},
	},
	"order_shipped_message": {
		ID:          "order_shipped_message",
		Name:        "Order Shipped Message",
		Description: "Message the customer when an order is fulfilled",
		TriggerKind: event.KindOrderFulfilled,
		ActionKind:  ActionSendMessage,
		Schema: map[string]FieldSpec{
			"to_field": {Label: "Event field holding the destination number"},
		},
		Defaults: map[string]string{"to_field": event.FieldCustomerPhone},
		Requires: Requirements{Connection: true, Device: true, Template: true},
	},
	"order_to_sheet": {
		ID:          "order_to_sheet",
		Name:        "Order To Spreadsheet",
		Description: "Append a row per confirmed order to a spreadsheet",
		TriggerKind: event.KindOrderConfirmed,
		ActionKind:  ActionAppendRow,
		Schema: map[string]FieldSpec{
			"spreadsheet_id": {Label: "Spreadsheet ID", Required: true},
			"sheet_name":     {Label: "Sheet name"},
			"columns":        {Label: "Comma-separated event fields per column"},
		},
		Defaults: map[string]string{
			"sheet_name": "Sheet1",
			"columns":    "order_id,order_number,customer_name,customer_phone,total_price,currency",
		},
		Requires: Requirements{Connection: true},
	},
	"cod_otp_verification": {
		ID:          "cod_otp_verification",
		Name:        "COD OTP Verification",
		Description: "Send a one-time code to verify a cash-on-delivery checkout and await the reply",
		TriggerKind: event.KindCheckoutOTPRequested,
		ActionKind:  ActionSendOTP,
		Schema: map[string]FieldSpec{
			"to_field":             {Label: "Event field holding the destination number"},
			"confirmation_message": {Label: "Message sent once the code is confirmed"},
		},
		Defaults: map[string]string{
			"to_field":             event.FieldCustomerPhone,
			"confirmation_message": "Thanks! Your order is verified.",
		},
		Requires:    Requirements{Connection: true, Device: true, Template: true},
		AwaitsReply: true,
		ReplyTTL:    10 * time.Minute,
	},
}

// Lookup returns the definition for id.
func Lookup(id string) (Definition, bool) {
	d, ok := catalog[id]
	return d, ok
}

// All returns every definition sorted by id.
func All() []Definition {
	defs := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}
