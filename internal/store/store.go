// Package store exposes the persistence collaborators the engine reads from.
// The engine never owns the lifecycle of these records; it consumes them
// through the narrow interfaces below.
package store

import (
	"context"
	"errors"

	"storepulse/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

type Connections interface {
	GetConnection(ctx context.Context, id string) (*models.Connection, error)
}

type Devices interface {
	GetDevice(ctx context.Context, id string) (*models.Device, error)
}

type Templates interface {
	GetTemplate(ctx context.Context, id string) (*models.MessageTemplate, error)
}

type Automations interface {
	GetAutomation(ctx context.Context, id string) (*models.Automation, error)
	// ListActiveByPlatform returns active automations whose connection is on
	// the given platform.
	ListActiveByPlatform(ctx context.Context, platform string) ([]models.Automation, error)
	// IsAutomationActive is the cheap liveness probe used between retry
	// attempts.
	IsAutomationActive(ctx context.Context, id string) (bool, error)
}

// DispatchLogs records action outcomes for the observability surface.
type DispatchLogs interface {
	RecordDispatch(ctx context.Context, entry *models.DispatchLog) error
}
