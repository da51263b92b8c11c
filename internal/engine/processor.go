package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"storepulse/internal/event"
)

// Job is one unit of pipeline work: a normalized event plus what the
// ingestion boundary knew about its target.
type Job struct {
	// AutomationID is set for per-automation webhook URLs.
	AutomationID string
	// Platform is set for platform-scoped webhook URLs.
	Platform event.Platform
	Event    *event.TriggerEvent
}

// Processor runs the match → dispatch pipeline (and the reply correlation
// path) on a bounded key-partitioned worker pool, decoupled from the webhook
// acknowledgment.
type Processor struct {
	matcher    *Matcher
	dispatcher *Dispatcher
	correlator *Correlator
	sink       OutcomeSink
	pool       *Pool
	jobTimeout time.Duration
}

type ProcessorConfig struct {
	Matcher    *Matcher
	Dispatcher *Dispatcher
	Correlator *Correlator
	Sink       OutcomeSink
	Workers    int
	QueueDepth int
	// JobTimeout bounds one pipeline run including retries.
	JobTimeout time.Duration
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	p := &Processor{
		matcher:    cfg.Matcher,
		dispatcher: cfg.Dispatcher,
		correlator: cfg.Correlator,
		sink:       cfg.Sink,
		jobTimeout: cfg.JobTimeout,
	}
	p.pool = NewPool(cfg.Workers, cfg.QueueDepth, p.run)
	return p
}

// Start launches the worker pool.
func (p *Processor) Start(ctx context.Context) {
	p.pool.Start(ctx)
}

// Submit hands a job to the pool, partitioned by correlation key so events
// for one key process in arrival order. Returns false when saturated.
func (p *Processor) Submit(job Job) bool {
	return p.pool.Submit(job.Event.CorrelationKey, job)
}

// Wait blocks until the workers drain after context cancellation.
func (p *Processor) Wait() {
	p.pool.Wait()
}

func (p *Processor) run(ctx context.Context, payload interface{}) {
	job, ok := payload.(Job)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()
	p.Process(ctx, job)
}

// Process executes one job synchronously. Every business error is contained
// here; nothing propagates back to the webhook caller.
func (p *Processor) Process(ctx context.Context, job Job) {
	ev := job.Event

	if ev.Kind == event.KindGenericReply {
		outcome := p.correlator.Resolve(ctx, ev.CorrelationKey, ev)
		log.Printf("Reply for %s: %s", ev.CorrelationKey, outcome)
		return
	}

	var resolved *Resolved
	var err error
	if job.AutomationID != "" {
		resolved, err = p.matcher.MatchByID(ctx, job.AutomationID, ev)
	} else {
		resolved, err = p.matcher.MatchByPlatform(ctx, job.Platform, ev)
	}
	if err != nil {
		p.recordSkip(ctx, job, err)
		return
	}

	p.dispatcher.Dispatch(ctx, resolved, ev)
}

func (p *Processor) recordSkip(ctx context.Context, job Job, err error) {
	switch {
	case errors.Is(err, ErrNoMatch):
		// Platform-wide delivery with nothing configured: discard quietly.
		return
	case errors.Is(err, ErrDuplicateDelivery):
		log.Printf("Duplicate delivery for %s (kind %s), skipping", job.Event.CorrelationKey, job.Event.Kind)
	default:
		log.Printf("Dispatch skipped for %s: %v", job.Event.CorrelationKey, err)
	}

	if p.sink != nil {
		p.sink.Record(ctx, Outcome{
			AutomationID:   job.AutomationID,
			CorrelationKey: job.Event.CorrelationKey,
			EventKind:      job.Event.Kind,
			Status:         StatusSkipped,
			ErrorMessage:   err.Error(),
		})
	}
}
