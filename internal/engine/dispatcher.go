package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"storepulse/internal/event"
	"storepulse/internal/models"
	"storepulse/internal/otp"
	"storepulse/internal/registry"
	"storepulse/internal/store"
)

// Messenger sends a text message through a device and returns the provider
// message id.
type Messenger interface {
	SendText(ctx context.Context, device *models.Device, to, body string) (string, error)
}

// SheetWriter appends one row to a spreadsheet.
type SheetWriter interface {
	AppendRow(ctx context.Context, spreadsheetID, sheetName string, row []string) error
}

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Outcome is the result record of one action execution.
type Outcome struct {
	DispatchID     string
	AutomationID   string
	CorrelationKey string
	EventKind      event.Kind
	Status         string
	Attempts       int
	ExternalID     string
	ErrorMessage   string
}

// OutcomeSink receives every outcome for logging and observability.
type OutcomeSink interface {
	Record(ctx context.Context, o Outcome)
}

// SinkFunc adapts a function to the OutcomeSink interface.
type SinkFunc func(ctx context.Context, o Outcome)

func (f SinkFunc) Record(ctx context.Context, o Outcome) { f(ctx, o) }

// MultiSink fans an outcome out to several sinks.
func MultiSink(sinks ...OutcomeSink) OutcomeSink {
	return SinkFunc(func(ctx context.Context, o Outcome) {
		for _, s := range sinks {
			s.Record(ctx, o)
		}
	})
}

// RetryPolicy bounds the retry loop for transient external failures.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Base: time.Second, Max: 30 * time.Second}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.Base << (attempt - 1)
	if d > p.Max {
		return p.Max
	}
	return d
}

// ResourceResolutionError means a referenced resource (device, template,
// connection) could not be loaded. Fatal for this dispatch only.
type ResourceResolutionError struct {
	Resource string
	ID       string
	Err      error
}

func (e *ResourceResolutionError) Error() string {
	return fmt.Sprintf("resolving %s %q: %v", e.Resource, e.ID, e.Err)
}

func (e *ResourceResolutionError) Unwrap() error { return e.Err }

// OTPCodeLength is the number of digits in generated one-time codes.
const OTPCodeLength = 6

type Dispatcher struct {
	connections store.Connections
	devices     store.Devices
	templates   store.Templates
	automations store.Automations
	messenger   Messenger
	sheets      SheetWriter
	correlator  *Correlator
	sink        OutcomeSink
	retry       RetryPolicy
	replyTTL    time.Duration
}

// DispatcherDeps wires the dispatcher's collaborators.
type DispatcherDeps struct {
	Connections store.Connections
	Devices     store.Devices
	Templates   store.Templates
	Automations store.Automations
	Messenger   Messenger
	Sheets      SheetWriter
	Correlator  *Correlator
	Sink        OutcomeSink
	Retry       RetryPolicy
	// ReplyTTL applies to definitions that await a reply without declaring
	// their own time to live.
	ReplyTTL time.Duration
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Retry.Attempts == 0 {
		deps.Retry = DefaultRetryPolicy()
	}
	if deps.ReplyTTL <= 0 {
		deps.ReplyTTL = 10 * time.Minute
	}
	return &Dispatcher{
		connections: deps.Connections,
		devices:     deps.Devices,
		templates:   deps.Templates,
		automations: deps.Automations,
		messenger:   deps.Messenger,
		sheets:      deps.Sheets,
		correlator:  deps.Correlator,
		sink:        deps.Sink,
		retry:       deps.Retry,
		replyTTL:    deps.ReplyTTL,
	}
}

// Dispatch executes the configured action for a matched automation. Exactly
// one external side-effect call is made per successful dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, resolved *Resolved, ev *event.TriggerEvent) Outcome {
	a := resolved.Automation
	def := resolved.Definition

	outcome := Outcome{
		DispatchID:     uuid.NewString(),
		AutomationID:   a.ID,
		CorrelationKey: ev.CorrelationKey,
		EventKind:      ev.Kind,
	}

	var err error
	switch def.ActionKind {
	case registry.ActionSendMessage:
		err = d.dispatchMessage(ctx, a, def, ev, &outcome)
	case registry.ActionAppendRow:
		err = d.dispatchRow(ctx, a, def, ev, &outcome)
	case registry.ActionSendOTP:
		err = d.dispatchOTP(ctx, a, def, ev, &outcome)
	default:
		err = fmt.Errorf("definition %s has unexecutable action kind %q", def.ID, def.ActionKind)
	}

	if err != nil {
		outcome.Status = StatusFailed
		outcome.ErrorMessage = err.Error()
	} else {
		outcome.Status = StatusSuccess
	}
	d.record(ctx, outcome)
	return outcome
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, a *models.Automation, def registry.Definition, ev *event.TriggerEvent, outcome *Outcome) error {
	cfg := d.mergedConfig(a, def)

	device, tmpl, err := d.messagingResources(ctx, a)
	if err != nil {
		return err
	}
	if err := d.checkConnection(ctx, a, def); err != nil {
		return err
	}

	to, ok := ev.Field(cfg["to_field"])
	if !ok {
		return fmt.Errorf("event has no destination field %q", cfg["to_field"])
	}

	body, err := Render(tmpl.Body, ev.Fields)
	if err != nil {
		return err
	}

	externalID, attempts, err := d.sendWithRetry(ctx, a.ID, device, to, body)
	outcome.Attempts = attempts
	outcome.ExternalID = externalID
	return err
}

func (d *Dispatcher) dispatchRow(ctx context.Context, a *models.Automation, def registry.Definition, ev *event.TriggerEvent, outcome *Outcome) error {
	cfg := d.mergedConfig(a, def)

	if err := d.checkConnection(ctx, a, def); err != nil {
		return err
	}

	spreadsheetID := cfg["spreadsheet_id"]
	if spreadsheetID == "" {
		return &ResourceResolutionError{Resource: "spreadsheet", ID: "", Err: errors.New("spreadsheet_id not configured")}
	}
	sheetName := cfg["sheet_name"]
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	// Row cells follow the configured column order; absent optional fields
	// become blank cells.
	var row []string
	for _, col := range strings.Split(cfg["columns"], ",") {
		row = append(row, ev.Fields[strings.TrimSpace(col)])
	}

	attempts, err := d.withRetry(ctx, a.ID, func(ctx context.Context) error {
		return d.sheets.AppendRow(ctx, spreadsheetID, sheetName, row)
	})
	outcome.Attempts = attempts
	return err
}

func (d *Dispatcher) dispatchOTP(ctx context.Context, a *models.Automation, def registry.Definition, ev *event.TriggerEvent, outcome *Outcome) error {
	cfg := d.mergedConfig(a, def)

	device, tmpl, err := d.messagingResources(ctx, a)
	if err != nil {
		return err
	}
	if err := d.checkConnection(ctx, a, def); err != nil {
		return err
	}

	to, ok := ev.Field(cfg["to_field"])
	if !ok {
		return fmt.Errorf("event has no destination field %q", cfg["to_field"])
	}

	code, err := otp.Generate(OTPCodeLength)
	if err != nil {
		return err
	}

	fields := make(map[string]string, len(ev.Fields)+1)
	for k, v := range ev.Fields {
		fields[k] = v
	}
	fields[event.FieldOTPCode] = code

	body, err := Render(tmpl.Body, fields)
	if err != nil {
		return err
	}
	confirmation, err := Render(cfg["confirmation_message"], fields)
	if err != nil {
		return err
	}

	externalID, attempts, err := d.sendWithRetry(ctx, a.ID, device, to, body)
	outcome.Attempts = attempts
	outcome.ExternalID = externalID
	if err != nil {
		return err
	}

	ttl := def.ReplyTTL
	if ttl <= 0 {
		ttl = d.replyTTL
	}
	d.correlator.Create(PendingReply{
		Token:            ev.CorrelationKey,
		AutomationID:     a.ID,
		DeviceID:         device.ID,
		Destination:      to,
		Code:             code,
		ConfirmationBody: confirmation,
	}, ttl)
	return nil
}

// messagingResources loads the device and message template an automation
// references.
func (d *Dispatcher) messagingResources(ctx context.Context, a *models.Automation) (*models.Device, *models.MessageTemplate, error) {
	device, err := d.devices.GetDevice(ctx, a.DeviceID)
	if err != nil {
		return nil, nil, &ResourceResolutionError{Resource: "device", ID: a.DeviceID, Err: err}
	}
	if !device.IsActive {
		return nil, nil, &ResourceResolutionError{Resource: "device", ID: a.DeviceID, Err: errors.New("device inactive")}
	}
	tmpl, err := d.templates.GetTemplate(ctx, a.TemplateID)
	if err != nil {
		return nil, nil, &ResourceResolutionError{Resource: "template", ID: a.TemplateID, Err: err}
	}
	return device, tmpl, nil
}

func (d *Dispatcher) checkConnection(ctx context.Context, a *models.Automation, def registry.Definition) error {
	if !def.Requires.Connection {
		return nil
	}
	conn, err := d.connections.GetConnection(ctx, a.ConnectionID)
	if err != nil {
		return &ResourceResolutionError{Resource: "connection", ID: a.ConnectionID, Err: err}
	}
	if !conn.IsActive {
		return &ResourceResolutionError{Resource: "connection", ID: a.ConnectionID, Err: errors.New("connection inactive")}
	}
	if def.Requires.Platform != "" && event.Platform(conn.Platform) != def.Requires.Platform {
		return &ResourceResolutionError{Resource: "connection", ID: a.ConnectionID,
			Err: fmt.Errorf("platform %s does not satisfy definition requirement %s", conn.Platform, def.Requires.Platform)}
	}
	return nil
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, automationID string, device *models.Device, to, body string) (string, int, error) {
	var externalID string
	attempts, err := d.withRetry(ctx, automationID, func(ctx context.Context) error {
		id, err := d.messenger.SendText(ctx, device, to, body)
		if err == nil {
			externalID = id
		}
		return err
	})
	return externalID, attempts, err
}

// withRetry runs call with bounded exponential backoff. Only transient
// failures retry, and the automation's liveness is re-checked before every
// retry attempt so a deactivation mid-flight cancels the loop.
func (d *Dispatcher) withRetry(ctx context.Context, automationID string, call func(ctx context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= d.retry.Attempts; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if !isTemporary(lastErr) || attempt == d.retry.Attempts {
			return attempt, lastErr
		}

		select {
		case <-time.After(d.retry.backoff(attempt)):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}

		active, err := d.automations.IsAutomationActive(ctx, automationID)
		if err != nil {
			return attempt, fmt.Errorf("liveness check: %w", err)
		}
		if !active {
			return attempt, fmt.Errorf("automation %s deactivated during retry: %w", automationID, ErrAutomationInactive)
		}
	}
	return d.retry.Attempts, lastErr
}

func (d *Dispatcher) record(ctx context.Context, o Outcome) {
	if d.sink != nil {
		d.sink.Record(ctx, o)
	}
}

type temporary interface {
	Temporary() bool
}

// isTemporary classifies an external failure as retryable.
func isTemporary(err error) bool {
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// mergedConfig overlays the automation's trigger config on the definition's
// defaults. Malformed stored config degrades to defaults.
func (d *Dispatcher) mergedConfig(a *models.Automation, def registry.Definition) map[string]string {
	cfg := make(map[string]string, len(def.Defaults))
	for k, v := range def.Defaults {
		cfg[k] = v
	}
	if a.TriggerConfig == "" {
		return cfg
	}
	var user map[string]string
	if err := json.Unmarshal([]byte(a.TriggerConfig), &user); err != nil {
		return cfg
	}
	for k, v := range user {
		if v != "" {
			cfg[k] = v
		}
	}
	return cfg
}
