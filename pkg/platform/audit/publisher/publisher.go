// Package publisher delivers audit events to a store, optionally buffering
// them through a background worker and teeing them to an external sink such
// as Kafka for out-of-band consumers.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "laurel/pkg/platform/audit"
	"laurel/pkg/platform/audit/worker"
)

// Publisher implements audit.Emitter over a Store, with optional async
// buffering and an optional secondary sink.
type Publisher struct {
	store  audit.Store
	sink   audit.Sink
	logger *slog.Logger

	inbox  chan audit.Event
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches Emit to non-blocking delivery through a worker
// goroutine with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan audit.Event, size)
		}
	}
}

// WithSink tees every event to an additional sink (e.g. the Kafka topic the
// anchoring collaborator consumes). Sink failures are logged, never fatal to
// the business operation.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

// WithLogger sets a logger for delivery error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher backed by the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.done = make(chan struct{})
		w := worker.NewWorker(p.store, p.inbox)
		go func() {
			defer close(p.done)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil && p.logger != nil {
				p.logger.Error("audit worker stopped", "error", err)
			}
		}()
	}
	return p
}

// Emit records an event. Sync mode blocks until the store write succeeds;
// async mode enqueues and falls back to a synchronous write when the buffer
// is full, so events are never dropped.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.tee(ctx, event)

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		return p.store.Append(ctx, event)
	}
}

// List returns all events recorded for a contribution.
func (p *Publisher) List(ctx context.Context, contributionID string) ([]audit.Event, error) {
	return p.store.ListByContribution(ctx, contributionID)
}

// Close stops the background worker, if any.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})
}

func (p *Publisher) tee(ctx context.Context, event audit.Event) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Append(ctx, event); err != nil && p.logger != nil {
		p.logger.WarnContext(ctx, "audit sink append failed",
			"action", event.Action,
			"contribution_id", event.ContributionID,
			"error", err,
		)
	}
}
