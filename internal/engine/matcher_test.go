package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepulse/internal/event"
	"storepulse/internal/models"
	"storepulse/internal/store"
)

func checkoutEvent() *event.TriggerEvent {
	return &event.TriggerEvent{
		Kind:           event.KindCheckoutCreated,
		Platform:       event.PlatformShopify,
		CorrelationKey: "checkout:chk_1",
		Fields:         map[string]string{event.FieldCustomerPhone: "+5511912345678"},
	}
}

func activeAutomation() *models.Automation {
	return &models.Automation{
		ID:           "auto-1",
		DefinitionID: "abandoned_checkout_recovery",
		ConnectionID: "conn-1",
		DeviceID:     "dev-1",
		TemplateID:   "tmpl-1",
		TriggerKind:  string(event.KindCheckoutCreated),
		IsActive:     true,
	}
}

func shopifyConnection() *models.Connection {
	return &models.Connection{ID: "conn-1", Platform: "shopify", IsActive: true}
}

func newTestMatcher(automations *mockAutomations, connections *mockConnections) *Matcher {
	return NewMatcher(automations, connections, NewDedupWindow(time.Minute))
}

func TestMatchByID(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		automations := &mockAutomations{
			GetAutomationFunc: func(ctx context.Context, id string) (*models.Automation, error) {
				return activeAutomation(), nil
			},
		}
		connections := &mockConnections{
			GetConnectionFunc: func(ctx context.Context, id string) (*models.Connection, error) {
				return shopifyConnection(), nil
			},
		}

		resolved, err := newTestMatcher(automations, connections).MatchByID(ctx, "auto-1", checkoutEvent())
		require.NoError(t, err)
		assert.Equal(t, "auto-1", resolved.Automation.ID)
		assert.Equal(t, "abandoned_checkout_recovery", resolved.Definition.ID)
	})

	t.Run("automation not found", func(t *testing.T) {
		automations := &mockAutomations{
			GetAutomationFunc: func(ctx context.Context, id string) (*models.Automation, error) {
				return nil, store.ErrNotFound
			},
		}

		_, err := newTestMatcher(automations, &mockConnections{}).MatchByID(ctx, "nope", checkoutEvent())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("inactive automation never dispatches", func(t *testing.T) {
		a := activeAutomation()
		a.IsActive = false
		automations := &mockAutomations{
			GetAutomationFunc: func(ctx context.Context, id string) (*models.Automation, error) {
				return a, nil
			},
		}

		_, err := newTestMatcher(automations, &mockConnections{}).MatchByID(ctx, "auto-1", checkoutEvent())
		assert.ErrorIs(t, err, ErrAutomationInactive)
	})

	t.Run("trigger kind mismatch", func(t *testing.T) {
		automations := &mockAutomations{
			GetAutomationFunc: func(ctx context.Context, id string) (*models.Automation, error) {
				return activeAutomation(), nil
			},
		}
		ev := checkoutEvent()
		ev.Kind = event.KindOrderConfirmed

		_, err := newTestMatcher(automations, &mockConnections{}).MatchByID(ctx, "auto-1", ev)
		assert.ErrorIs(t, err, ErrTriggerKindMismatch)
	})

	t.Run("platform mismatch", func(t *testing.T) {
		automations := &mockAutomations{
			GetAutomationFunc: func(ctx context.Context, id string) (*models.Automation, error) {
				return activeAutomation(), nil
			},
		}
		connections := &mockConnections{
			GetConnectionFunc: func(ctx context.Context, id string) (*models.Connection, error) {
				return &models.Connection{ID: "conn-1", Platform: "woocommerce", IsActive: true}, nil
			},
		}

		_, err := newTestMatcher(automations, connections).MatchByID(ctx, "auto-1", checkoutEvent())
		assert.ErrorIs(t, err, ErrPlatformMismatch)
	})

	t.Run("duplicate delivery short-circuits", func(t *testing.T) {
		automations := &mockAutomations{
			GetAutomationFunc: func(ctx context.Context, id string) (*models.Automation, error) {
				return activeAutomation(), nil
			},
		}
		connections := &mockConnections{
			GetConnectionFunc: func(ctx context.Context, id string) (*models.Connection, error) {
				return shopifyConnection(), nil
			},
		}
		m := newTestMatcher(automations, connections)

		_, err := m.MatchByID(ctx, "auto-1", checkoutEvent())
		require.NoError(t, err)

		_, err = m.MatchByID(ctx, "auto-1", checkoutEvent())
		assert.ErrorIs(t, err, ErrDuplicateDelivery)
	})
}

func TestMatchByPlatform(t *testing.T) {
	ctx := context.Background()
	connections := &mockConnections{
		GetConnectionFunc: func(ctx context.Context, id string) (*models.Connection, error) {
			return shopifyConnection(), nil
		},
	}

	t.Run("single candidate matches", func(t *testing.T) {
		automations := &mockAutomations{
			ListActiveByPlatformFunc: func(ctx context.Context, platform string) ([]models.Automation, error) {
				return []models.Automation{*activeAutomation()}, nil
			},
		}

		resolved, err := newTestMatcher(automations, connections).MatchByPlatform(ctx, event.PlatformShopify, checkoutEvent())
		require.NoError(t, err)
		assert.Equal(t, "auto-1", resolved.Automation.ID)
	})

	t.Run("zero candidates is a no-op", func(t *testing.T) {
		automations := &mockAutomations{
			ListActiveByPlatformFunc: func(ctx context.Context, platform string) ([]models.Automation, error) {
				return nil, nil
			},
		}

		_, err := newTestMatcher(automations, connections).MatchByPlatform(ctx, event.PlatformShopify, checkoutEvent())
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("multiple candidates are flagged, never dispatched twice", func(t *testing.T) {
		second := *activeAutomation()
		second.ID = "auto-2"
		automations := &mockAutomations{
			ListActiveByPlatformFunc: func(ctx context.Context, platform string) ([]models.Automation, error) {
				return []models.Automation{*activeAutomation(), second}, nil
			},
		}

		_, err := newTestMatcher(automations, connections).MatchByPlatform(ctx, event.PlatformShopify, checkoutEvent())
		assert.ErrorIs(t, err, ErrAmbiguousMatch)
	})

	t.Run("kind filter excludes other triggers", func(t *testing.T) {
		other := *activeAutomation()
		other.ID = "auto-3"
		other.TriggerKind = string(event.KindOrderConfirmed)
		automations := &mockAutomations{
			ListActiveByPlatformFunc: func(ctx context.Context, platform string) ([]models.Automation, error) {
				return []models.Automation{*activeAutomation(), other}, nil
			},
		}

		resolved, err := newTestMatcher(automations, connections).MatchByPlatform(ctx, event.PlatformShopify, checkoutEvent())
		require.NoError(t, err)
		assert.Equal(t, "auto-1", resolved.Automation.ID)
	})
}

func TestDedupWindow(t *testing.T) {
	w := NewDedupWindow(50 * time.Millisecond)

	assert.True(t, w.FirstSeen("k1"))
	assert.False(t, w.FirstSeen("k1"))
	assert.True(t, w.FirstSeen("k2"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, w.FirstSeen("k1"), "key should be forgotten after the window")
}
