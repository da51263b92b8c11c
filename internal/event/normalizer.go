package event

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyPayload means the payload was empty or not a JSON object. The
	// caller should acknowledge receipt and take no action.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrMissingCorrelationKey means no stable identifier could be extracted
	// for the inferred event kind.
	ErrMissingCorrelationKey = errors.New("missing correlation key")

	// ErrUnknownEventKind means neither the topic hint nor the payload shape
	// identified a supported event kind.
	ErrUnknownEventKind = errors.New("unknown event kind")
)

// SourceHint carries what the ingestion boundary already knows about a
// payload: the platform the webhook route was scoped to (may be empty for
// per-automation URLs) and the platform's topic header, e.g. the value of
// X-Shopify-Topic.
type SourceHint struct {
	Platform Platform
	Topic    string
}

// topicKinds maps platform topic identifiers to event kinds. Shopify uses
// slash-separated topics, WooCommerce dot-separated ones.
var topicKinds = map[string]Kind{
	"orders/paid":            KindOrderConfirmed,
	"orders/confirmed":       KindOrderConfirmed,
	"order.completed":        KindOrderConfirmed,
	"order.processing":       KindOrderConfirmed,
	"orders/fulfilled":       KindOrderFulfilled,
	"order.fulfilled":        KindOrderFulfilled,
	"checkouts/create":       KindCheckoutCreated,
	"checkout.created":       KindCheckoutCreated,
	"checkouts/otp":          KindCheckoutOTPRequested,
	"checkout.otp_requested": KindCheckoutOTPRequested,
}

var otpCodeRe = regexp.MustCompile(`\b(\d{4,8})\b`)

// Normalize maps a raw webhook payload plus the source hint into a
// TriggerEvent. Optional fields degrade to absent on malformed nesting; only
// the correlation key is mandatory.
func Normalize(hint SourceHint, raw map[string]interface{}) (*TriggerEvent, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	kind, ok := inferKind(hint, raw)
	if !ok {
		return nil, fmt.Errorf("topic %q: %w", hint.Topic, ErrUnknownEventKind)
	}

	ev := &TriggerEvent{
		Kind:     kind,
		Platform: hint.Platform,
		Fields:   map[string]string{},
		Raw:      raw,
	}
	extractFields(ev, raw)

	key, ok := correlationKey(kind, ev, raw)
	if !ok {
		return nil, fmt.Errorf("event kind %s: %w", kind, ErrMissingCorrelationKey)
	}
	ev.CorrelationKey = key

	return ev, nil
}

// NormalizeReply builds the generic reply event for an inbound message from a
// messaging device webhook. The sender's phone number is the correlation key.
func NormalizeReply(from, body string) (*TriggerEvent, error) {
	phone := canonicalPhone(from)
	if phone == "" {
		return nil, fmt.Errorf("reply sender %q: %w", from, ErrMissingCorrelationKey)
	}

	fields := map[string]string{FieldMessageBody: body}
	if m := otpCodeRe.FindStringSubmatch(body); m != nil {
		fields[FieldOTPCode] = m[1]
	}

	return &TriggerEvent{
		Kind:           KindGenericReply,
		CorrelationKey: phone,
		Fields:         fields,
		Raw:            map[string]interface{}{"from": from, "body": body},
	}, nil
}

func inferKind(hint SourceHint, raw map[string]interface{}) (Kind, bool) {
	if k, ok := topicKinds[strings.ToLower(strings.TrimSpace(hint.Topic))]; ok {
		return k, true
	}

	// No usable topic header, fall back to payload shape.
	if _, ok := digString(raw, "abandoned_checkout_url"); ok {
		return KindCheckoutCreated, true
	}
	if _, ok := digString(raw, "recovery_url"); ok {
		return KindCheckoutCreated, true
	}
	if s, ok := digString(raw, "fulfillment_status"); ok && s == "fulfilled" {
		return KindOrderFulfilled, true
	}
	if _, ok := digString(raw, "checkout_id"); ok {
		return KindCheckoutCreated, true
	}
	if _, ok := digString(raw, "financial_status"); ok {
		return KindOrderConfirmed, true
	}
	if _, ok := digString(raw, "order_number"); ok {
		return KindOrderConfirmed, true
	}
	return "", false
}

func correlationKey(kind Kind, ev *TriggerEvent, raw map[string]interface{}) (string, bool) {
	switch kind {
	case KindOrderConfirmed, KindOrderFulfilled:
		if id, ok := ev.Field(FieldOrderID); ok {
			return "order:" + id, true
		}
	case KindCheckoutCreated:
		if id, ok := ev.Field(FieldCheckoutID); ok {
			return "checkout:" + id, true
		}
	case KindCheckoutOTPRequested:
		// OTP replies come back keyed by phone number, so the trigger must
		// correlate on the same key.
		if phone, ok := ev.Field(FieldCustomerPhone); ok {
			return phone, true
		}
	case KindGenericReply:
		if phone, ok := ev.Field(FieldCustomerPhone); ok {
			return phone, true
		}
	}
	return "", false
}

// extractFields performs best-effort extraction of the well-known fields.
// Anything malformed is simply skipped.
func extractFields(ev *TriggerEvent, raw map[string]interface{}) {
	set := func(name, value string) {
		if value != "" {
			ev.Fields[name] = value
		}
	}

	if id, ok := firstString(raw, []string{"id"}, []string{"order_id"}); ok {
		switch ev.Kind {
		case KindCheckoutCreated, KindCheckoutOTPRequested:
			set(FieldCheckoutID, id)
		default:
			set(FieldOrderID, id)
		}
	}
	if id, ok := firstString(raw, []string{"checkout_id"}, []string{"token"}, []string{"cart_token"}); ok {
		set(FieldCheckoutID, id)
	}
	if id, ok := digString(raw, "order_id"); ok {
		set(FieldOrderID, id)
	}

	if n, ok := firstString(raw, []string{"order_number"}, []string{"number"}, []string{"name"}); ok {
		set(FieldOrderNumber, strings.TrimPrefix(n, "#"))
	}
	if total, ok := firstString(raw, []string{"total_price"}, []string{"total"}, []string{"current_total_price"}); ok {
		set(FieldTotalPrice, total)
	}
	if cur, ok := firstString(raw, []string{"currency"}, []string{"presentment_currency"}); ok {
		set(FieldCurrency, cur)
	}
	if u, ok := firstString(raw, []string{"abandoned_checkout_url"}, []string{"recovery_url"}); ok {
		set(FieldRecoveryURL, u)
	}

	if name, ok := customerName(raw); ok {
		set(FieldCustomerName, name)
	}
	if email, ok := firstString(raw,
		[]string{"customer", "email"}, []string{"email"}, []string{"billing", "email"}); ok {
		set(FieldCustomerEmail, email)
	}
	if phone, ok := firstString(raw,
		[]string{"customer", "phone"}, []string{"phone"},
		[]string{"billing_address", "phone"}, []string{"billing", "phone"},
		[]string{"shipping_address", "phone"}); ok {
		set(FieldCustomerPhone, canonicalPhone(phone))
	}
}

func customerName(raw map[string]interface{}) (string, bool) {
	first, okFirst := firstString(raw, []string{"customer", "first_name"}, []string{"billing", "first_name"})
	last, okLast := firstString(raw, []string{"customer", "last_name"}, []string{"billing", "last_name"})
	if okFirst || okLast {
		return strings.TrimSpace(first + " " + last), true
	}
	return firstString(raw, []string{"customer", "name"}, []string{"billing_address", "name"})
}

// firstString returns the first path that yields a non-empty string.
func firstString(raw map[string]interface{}, paths ...[]string) (string, bool) {
	for _, path := range paths {
		if s, ok := digString(raw, path...); ok {
			return s, true
		}
	}
	return "", false
}

// digString walks nested maps along path and stringifies the leaf. Any
// structural surprise along the way yields a not-found, never a panic.
func digString(raw map[string]interface{}, path ...string) (string, bool) {
	var cur interface{} = raw
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
	}
	return asString(cur)
}

func asString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		// JSON numbers decode as float64; integral ids must not pick up a
		// trailing ".0".
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

// canonicalPhone reduces a phone number to "+" plus digits. Platform payloads
// carry formatted numbers and WhatsApp sends bare digits; both must canonicalize
// to the same key or OTP replies never find their pending record.
func canonicalPhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 7 {
		return ""
	}
	return "+" + b.String()
}
