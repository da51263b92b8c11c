package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepulse/internal/event"
	"storepulse/internal/models"
)

func newProcessorFixture(t *testing.T) (*Processor, *dispatcherFixture) {
	t.Helper()

	f := newDispatcherFixture(t, "Hi {{customer_name|there}}")
	f.automation.GetAutomationFunc = func(ctx context.Context, id string) (*models.Automation, error) {
		return activeAutomation(), nil
	}
	connections := &mockConnections{
		GetConnectionFunc: func(ctx context.Context, id string) (*models.Connection, error) {
			return shopifyConnection(), nil
		},
	}

	p := NewProcessor(ProcessorConfig{
		Matcher:    NewMatcher(f.automation, connections, NewDedupWindow(time.Minute)),
		Dispatcher: f.dispatcher,
		Correlator: f.correlator,
		Sink:       f.outcomes,
		Workers:    2,
		QueueDepth: 8,
	})
	return p, f
}

func TestProcessor_DispatchesMatchedEvent(t *testing.T) {
	p, f := newProcessorFixture(t)

	p.Process(context.Background(), Job{AutomationID: "auto-1", Event: checkoutEvent()})

	require.Len(t, f.messenger.Calls, 1)
	require.Len(t, f.outcomes.All, 1)
	assert.Equal(t, StatusSuccess, f.outcomes.All[0].Status)
}

func TestProcessor_RetransmissionDispatchesOnce(t *testing.T) {
	p, f := newProcessorFixture(t)
	ctx := context.Background()

	// Same order delivered twice 200ms apart, as platforms do on retry.
	p.Process(ctx, Job{AutomationID: "auto-1", Event: checkoutEvent()})
	time.Sleep(200 * time.Millisecond)
	p.Process(ctx, Job{AutomationID: "auto-1", Event: checkoutEvent()})

	assert.Len(t, f.messenger.Calls, 1, "exactly one side effect for a retransmitted delivery")

	require.Len(t, f.outcomes.All, 2)
	assert.Equal(t, StatusSuccess, f.outcomes.All[0].Status)
	assert.Equal(t, StatusSkipped, f.outcomes.All[1].Status)
}

func TestProcessor_InactiveAutomationSkips(t *testing.T) {
	p, f := newProcessorFixture(t)
	inactive := activeAutomation()
	inactive.IsActive = false
	f.automation.GetAutomationFunc = func(ctx context.Context, id string) (*models.Automation, error) {
		return inactive, nil
	}

	p.Process(context.Background(), Job{AutomationID: "auto-1", Event: checkoutEvent()})

	assert.Empty(t, f.messenger.Calls)
	require.Len(t, f.outcomes.All, 1)
	assert.Equal(t, StatusSkipped, f.outcomes.All[0].Status)
	assert.Contains(t, f.outcomes.All[0].ErrorMessage, "inactive")
}

func TestProcessor_ReplyRoutesToCorrelator(t *testing.T) {
	p, f := newProcessorFixture(t)
	f.correlator.Create(PendingReply{Token: "+919812345678", Code: "482913"}, time.Minute)

	p.Process(context.Background(), Job{Event: replyEvent("482913")})

	rec, ok := f.correlator.Get("+919812345678")
	require.True(t, ok)
	assert.Equal(t, ReplyResolved, rec.State)
	assert.Empty(t, f.messenger.Calls, "replies never go through the dispatcher")
}

func TestProcessor_SubmitIsAsync(t *testing.T) {
	p, f := newProcessorFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.messenger.SendTextFunc = func(ctx context.Context, device *models.Device, to, body string) (string, error) {
		close(started)
		<-release
		return "wamid.slow", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	// Submit returns immediately even though the dispatch is blocked.
	doneSubmitting := make(chan struct{})
	go func() {
		assert.True(t, p.Submit(Job{AutomationID: "auto-1", Event: checkoutEvent()}))
		close(doneSubmitting)
	}()

	select {
	case <-doneSubmitting:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked behind dispatch")
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("dispatch never started")
	}
	close(release)

	// The call record was appended before started closed, so this read is
	// ordered after it.
	require.Len(t, f.messenger.Calls, 1)
}

func TestProcessor_UnknownEventPlatformNoMatchIsQuiet(t *testing.T) {
	p, f := newProcessorFixture(t)
	f.automation.ListActiveByPlatformFunc = func(ctx context.Context, platform string) ([]models.Automation, error) {
		return nil, nil
	}

	p.Process(context.Background(), Job{Platform: event.PlatformShopify, Event: checkoutEvent()})

	assert.Empty(t, f.messenger.Calls)
	assert.Empty(t, f.outcomes.All, "a zero-match platform delivery records nothing")
}
