package engine

import (
	"context"
	"fmt"

	"storepulse/internal/models"
)

// --- Mock store collaborators ---

type mockAutomations struct {
	GetAutomationFunc        func(ctx context.Context, id string) (*models.Automation, error)
	ListActiveByPlatformFunc func(ctx context.Context, platform string) ([]models.Automation, error)
	IsAutomationActiveFunc   func(ctx context.Context, id string) (bool, error)
}

func (m *mockAutomations) GetAutomation(ctx context.Context, id string) (*models.Automation, error) {
	if m.GetAutomationFunc != nil {
		return m.GetAutomationFunc(ctx, id)
	}
	return nil, fmt.Errorf("GetAutomationFunc not implemented")
}

func (m *mockAutomations) ListActiveByPlatform(ctx context.Context, platform string) ([]models.Automation, error) {
	if m.ListActiveByPlatformFunc != nil {
		return m.ListActiveByPlatformFunc(ctx, platform)
	}
	return nil, fmt.Errorf("ListActiveByPlatformFunc not implemented")
}

func (m *mockAutomations) IsAutomationActive(ctx context.Context, id string) (bool, error) {
	if m.IsAutomationActiveFunc != nil {
		return m.IsAutomationActiveFunc(ctx, id)
	}
	return true, nil
}

type mockConnections struct {
	GetConnectionFunc func(ctx context.Context, id string) (*models.Connection, error)
}

func (m *mockConnections) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	if m.GetConnectionFunc != nil {
		return m.GetConnectionFunc(ctx, id)
	}
	return nil, fmt.Errorf("GetConnectionFunc not implemented")
}

type mockDevices struct {
	GetDeviceFunc func(ctx context.Context, id string) (*models.Device, error)
}

func (m *mockDevices) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	if m.GetDeviceFunc != nil {
		return m.GetDeviceFunc(ctx, id)
	}
	return nil, fmt.Errorf("GetDeviceFunc not implemented")
}

type mockTemplates struct {
	GetTemplateFunc func(ctx context.Context, id string) (*models.MessageTemplate, error)
}

func (m *mockTemplates) GetTemplate(ctx context.Context, id string) (*models.MessageTemplate, error) {
	if m.GetTemplateFunc != nil {
		return m.GetTemplateFunc(ctx, id)
	}
	return nil, fmt.Errorf("GetTemplateFunc not implemented")
}

// --- Mock providers ---

type mockMessenger struct {
	SendTextFunc func(ctx context.Context, device *models.Device, to, body string) (string, error)
	Calls        []sentMessage
}

type sentMessage struct {
	DeviceID string
	To       string
	Body     string
}

func (m *mockMessenger) SendText(ctx context.Context, device *models.Device, to, body string) (string, error) {
	m.Calls = append(m.Calls, sentMessage{DeviceID: device.ID, To: to, Body: body})
	if m.SendTextFunc != nil {
		return m.SendTextFunc(ctx, device, to, body)
	}
	return "wamid.test", nil
}

type mockSheets struct {
	AppendRowFunc func(ctx context.Context, spreadsheetID, sheetName string, row []string) error
	Calls         []appendedRow
}

type appendedRow struct {
	SpreadsheetID string
	SheetName     string
	Row           []string
}

func (m *mockSheets) AppendRow(ctx context.Context, spreadsheetID, sheetName string, row []string) error {
	m.Calls = append(m.Calls, appendedRow{SpreadsheetID: spreadsheetID, SheetName: sheetName, Row: row})
	if m.AppendRowFunc != nil {
		return m.AppendRowFunc(ctx, spreadsheetID, sheetName, row)
	}
	return nil
}

// transientError marks a failure as retryable the way provider APIErrors do.
type transientError struct{ msg string }

func (e *transientError) Error() string   { return e.msg }
func (e *transientError) Temporary() bool { return true }
