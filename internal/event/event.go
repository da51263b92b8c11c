// Package event defines the normalized trigger event the engine operates on
// and the normalizer that maps raw webhook payloads into it.
package event

// Kind is the enumerated category of an inbound event.
type Kind string

const (
	KindOrderConfirmed       Kind = "order_confirmed"
	KindOrderFulfilled       Kind = "order_fulfilled"
	KindCheckoutCreated      Kind = "checkout_created"
	KindCheckoutOTPRequested Kind = "checkout_otp_requested"
	KindGenericReply         Kind = "generic_reply"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindOrderConfirmed, KindOrderFulfilled, KindCheckoutCreated,
		KindCheckoutOTPRequested, KindGenericReply:
		return true
	default:
		return false
	}
}

// Platform identifies the storefront a payload came from.
type Platform string

const (
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformShopify, PlatformWooCommerce:
		return true
	default:
		return false
	}
}

// Well-known field names produced by the normalizer.
const (
	FieldCustomerName  = "customer_name"
	FieldCustomerPhone = "customer_phone"
	FieldCustomerEmail = "customer_email"
	FieldOrderID       = "order_id"
	FieldOrderNumber   = "order_number"
	FieldCheckoutID    = "checkout_id"
	FieldTotalPrice    = "total_price"
	FieldCurrency      = "currency"
	FieldRecoveryURL   = "recovery_url"
	FieldMessageBody   = "message_body"
	FieldOTPCode       = "otp_code"
)

// TriggerEvent is the engine-internal representation of one inbound webhook
// delivery. Fields holds the best-effort extracted values; Raw keeps the
// original payload for templates that need anything not yet normalized.
type TriggerEvent struct {
	Kind           Kind
	Platform       Platform
	CorrelationKey string
	Fields         map[string]string
	Raw            map[string]interface{}
}

// Field returns the named field and whether it was extracted.
func (e *TriggerEvent) Field(name string) (string, bool) {
	v, ok := e.Fields[name]
	return v, ok
}
