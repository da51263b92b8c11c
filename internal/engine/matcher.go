package engine

import (
	"context"
	"errors"
	"fmt"

	"storepulse/internal/event"
	"storepulse/internal/models"
	"storepulse/internal/registry"
	"storepulse/internal/store"
)

// Configuration errors. All of them abort the dispatch without side effects
// and are never surfaced to the webhook caller.
var (
	ErrAutomationInactive  = errors.New("automation inactive")
	ErrUnknownDefinition   = errors.New("unknown template definition")
	ErrTriggerKindMismatch = errors.New("trigger kind mismatch")
	ErrPlatformMismatch    = errors.New("platform mismatch")
	ErrNoMatch             = errors.New("no matching automation")
	ErrAmbiguousMatch      = errors.New("ambiguous match")
	ErrDuplicateDelivery   = errors.New("duplicate delivery")
)

// Resolved is a matched automation together with its catalog definition.
type Resolved struct {
	Automation *models.Automation
	Definition registry.Definition
}

type Matcher struct {
	automations store.Automations
	connections store.Connections
	dedup       *DedupWindow
}

func NewMatcher(automations store.Automations, connections store.Connections, dedup *DedupWindow) *Matcher {
	return &Matcher{automations: automations, connections: connections, dedup: dedup}
}

// MatchByID resolves the automation a per-automation webhook URL points at
// and verifies the event against its configuration.
func (m *Matcher) MatchByID(ctx context.Context, automationID string, ev *event.TriggerEvent) (*Resolved, error) {
	a, err := m.automations.GetAutomation(ctx, automationID)
	if err != nil {
		return nil, fmt.Errorf("loading automation %s: %w", automationID, err)
	}

	resolved, err := m.verify(ctx, a, ev)
	if err != nil {
		return nil, err
	}
	if !m.dedup.FirstSeen(dedupKey(a.ID, ev)) {
		return nil, ErrDuplicateDelivery
	}
	return resolved, nil
}

// MatchByPlatform resolves the single active automation for a platform-wide
// webhook. Zero candidates is a no-op; more than one is flagged and skipped,
// never executed twice.
func (m *Matcher) MatchByPlatform(ctx context.Context, platform event.Platform, ev *event.TriggerEvent) (*Resolved, error) {
	automations, err := m.automations.ListActiveByPlatform(ctx, string(platform))
	if err != nil {
		return nil, fmt.Errorf("listing automations for %s: %w", platform, err)
	}

	var candidates []models.Automation
	for _, a := range automations {
		if event.Kind(a.TriggerKind) == ev.Kind {
			candidates = append(candidates, a)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, ErrNoMatch
	case 1:
	default:
		return nil, fmt.Errorf("%d automations match kind %s on %s: %w",
			len(candidates), ev.Kind, platform, ErrAmbiguousMatch)
	}

	a := candidates[0]
	resolved, err := m.verify(ctx, &a, ev)
	if err != nil {
		return nil, err
	}
	if !m.dedup.FirstSeen(dedupKey(a.ID, ev)) {
		return nil, ErrDuplicateDelivery
	}
	return resolved, nil
}

func (m *Matcher) verify(ctx context.Context, a *models.Automation, ev *event.TriggerEvent) (*Resolved, error) {
	if !a.IsActive {
		return nil, fmt.Errorf("automation %s: %w", a.ID, ErrAutomationInactive)
	}

	def, ok := registry.Lookup(a.DefinitionID)
	if !ok {
		return nil, fmt.Errorf("automation %s references %q: %w", a.ID, a.DefinitionID, ErrUnknownDefinition)
	}

	if event.Kind(a.TriggerKind) != ev.Kind {
		return nil, fmt.Errorf("automation %s expects %s, event is %s: %w",
			a.ID, a.TriggerKind, ev.Kind, ErrTriggerKindMismatch)
	}

	// The event only carries a platform when it came in platform-scoped; an
	// empty platform means a per-automation URL and connection checking is
	// all we can do once the connection is loaded by the dispatcher.
	if ev.Platform != "" && a.ConnectionID != "" {
		conn, err := m.connections.GetConnection(ctx, a.ConnectionID)
		if err != nil {
			return nil, fmt.Errorf("loading connection %s: %w", a.ConnectionID, err)
		}
		if event.Platform(conn.Platform) != ev.Platform {
			return nil, fmt.Errorf("automation %s is bound to %s, event is from %s: %w",
				a.ID, conn.Platform, ev.Platform, ErrPlatformMismatch)
		}
	}

	return &Resolved{Automation: a, Definition: def}, nil
}

func dedupKey(automationID string, ev *event.TriggerEvent) string {
	return automationID + "|" + ev.CorrelationKey + "|" + string(ev.Kind)
}
