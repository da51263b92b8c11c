package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"storepulse/internal/event"
)

// ReplyState is the lifecycle of a pending reply. Terminal states are final.
type ReplyState string

const (
	ReplyPending    ReplyState = "pending"
	ReplyResolved   ReplyState = "resolved"
	ReplyExpired    ReplyState = "expired"
	ReplySuperseded ReplyState = "superseded"
)

// PendingReply is the short-lived record awaiting an asynchronous
// confirmation event. At most one pending record exists per token.
type PendingReply struct {
	Token            string
	AutomationID     string
	DeviceID         string
	Destination      string
	Code             string
	ConfirmationBody string
	State            ReplyState
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// ReplyOutcome is the result of feeding a reply event to the correlator.
type ReplyOutcome string

const (
	ReplyOutcomeResolved     ReplyOutcome = "resolved"
	ReplyOutcomeCodeMismatch ReplyOutcome = "code_mismatch"
	ReplyOutcomeNoMatch      ReplyOutcome = "no_matching_pending_reply"
)

// Continuation runs after a pending reply resolves, outside the correlator's
// lock.
type Continuation func(ctx context.Context, rec *PendingReply, ev *event.TriggerEvent)

// Correlator owns the pending-reply state machine. All transitions are
// compare-and-swap under one mutex, so a record resolves exactly once even
// under concurrent duplicate reply delivery.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*PendingReply
	grace   time.Duration
	cont    Continuation
	now     func() time.Time

	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewCorrelator(grace time.Duration, cont Continuation) *Correlator {
	return &Correlator{
		pending: make(map[string]*PendingReply),
		grace:   grace,
		cont:    cont,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Create registers a pending reply for token with the given time to live. An
// existing pending record for the same token is superseded.
func (c *Correlator) Create(rec PendingReply, ttl time.Duration) *PendingReply {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.pending[rec.Token]; ok && prev.State == ReplyPending {
		prev.State = ReplySuperseded
		log.Printf("Pending reply for %s superseded by a newer trigger", rec.Token)
	}

	now := c.now()
	rec.State = ReplyPending
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	c.pending[rec.Token] = &rec
	return &rec
}

// Resolve looks up the pending record for token and, when the reply matches,
// transitions it to resolved and runs the continuation. Absent, terminal, or
// lazily-expired records yield ReplyOutcomeNoMatch.
func (c *Correlator) Resolve(ctx context.Context, token string, ev *event.TriggerEvent) ReplyOutcome {
	c.mu.Lock()

	rec, ok := c.pending[token]
	if !ok || rec.State != ReplyPending {
		c.mu.Unlock()
		return ReplyOutcomeNoMatch
	}
	if c.now().After(rec.ExpiresAt) {
		rec.State = ReplyExpired
		c.mu.Unlock()
		return ReplyOutcomeNoMatch
	}

	if rec.Code != "" {
		code, _ := ev.Field(event.FieldOTPCode)
		if code != rec.Code {
			// Wrong code keeps the record pending until expiry.
			c.mu.Unlock()
			return ReplyOutcomeCodeMismatch
		}
	}

	rec.State = ReplyResolved
	snapshot := *rec
	c.mu.Unlock()

	if c.cont != nil {
		c.cont(ctx, &snapshot, ev)
	}
	return ReplyOutcomeResolved
}

// Get returns a copy of the record for token, for observability.
func (c *Correlator) Get(token string) (PendingReply, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.pending[token]
	if !ok {
		return PendingReply{}, false
	}
	return *rec, true
}

// Sweep expires due pending records and drops terminal records past the
// grace period.
func (c *Correlator) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for token, rec := range c.pending {
		if rec.State == ReplyPending && now.After(rec.ExpiresAt) {
			rec.State = ReplyExpired
		}
		if rec.State != ReplyPending && now.After(rec.ExpiresAt.Add(c.grace)) {
			delete(c.pending, token)
		}
	}
}

// Start runs the background sweep until Close is called.
func (c *Correlator) Start(interval time.Duration) {
	c.started = true
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *Correlator) Close() {
	close(c.stop)
	if c.started {
		<-c.done
	}
}
