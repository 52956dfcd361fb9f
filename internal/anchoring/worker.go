package anchoring

import (
	"context"
	"log/slog"
	"time"

	"laurel/internal/anchoring/metrics"
	certmodels "laurel/internal/certificate/models"
	"laurel/pkg/domain"
	dErrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/audit"
	"laurel/pkg/platform/circuit"
	"laurel/pkg/requestcontext"
)

// Registry is the slice of the certificate service the worker writes back to.
type Registry interface {
	AttachAnchor(ctx context.Context, contributionID domain.ContributionID, ref string) (*certmodels.Certificate, error)
}

// AuditEmitter records anchoring outcomes for compliance review.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Worker drains the anchor queue, submits each certificate through the
// breaker-guarded anchor client, and attaches the resulting ref. Failed
// attempts are re-enqueued with backoff up to maxAttempts; while the circuit
// is open the worker paces itself instead of hammering a down backend.
type Worker struct {
	queue    *Queue
	anchorer Anchorer
	registry Registry
	breaker  *circuit.Breaker
	audit    AuditEmitter
	logger   *slog.Logger
	metrics  *metrics.Metrics

	maxAttempts int
	backoff     time.Duration
	cooldown    time.Duration
}

// Option configures optional worker collaborators.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithAuditEmitter attaches the audit trail.
func WithAuditEmitter(emitter AuditEmitter) Option {
	return func(w *Worker) { w.audit = emitter }
}

// WithMaxAttempts bounds retries per certificate.
func WithMaxAttempts(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay before a failed certificate is retried.
func WithBackoff(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.backoff = d
		}
	}
}

// WithCooldown sets how long the worker pauses between attempts while the
// circuit is open.
func WithCooldown(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.cooldown = d
		}
	}
}

// NewWorker builds an anchoring worker over its queue and collaborators.
func NewWorker(queue *Queue, anchorer Anchorer, registry Registry, breaker *circuit.Breaker, opts ...Option) *Worker {
	w := &Worker{
		queue:       queue,
		anchorer:    anchorer,
		registry:    registry,
		breaker:     breaker,
		logger:      slog.Default(),
		maxAttempts: 3,
		backoff:     2 * time.Second,
		cooldown:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes the queue until the context is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case it, ok := <-w.queue.inbox:
			if !ok {
				return nil
			}
			if w.breaker.IsOpen() {
				w.metrics.ObserveCircuit(true)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(w.cooldown):
				}
			}
			w.process(ctx, it)
		}
	}
}

func (w *Worker) process(ctx context.Context, it item) {
	// The worker acts with the anchorer capability regardless of who
	// triggered the original submission.
	actx := requestcontext.WithRole(ctx, requestcontext.RoleAnchorer)
	cert := it.cert

	ref, err := w.anchorer.Anchor(actx, cert)
	if err != nil {
		w.anchorFailed(actx, it, err)
		return
	}
	if _, change := w.breaker.RecordSuccess(); change.Closed {
		w.logger.InfoContext(actx, "anchor circuit closed", "breaker", w.breaker.Name())
	}
	w.metrics.ObserveCircuit(w.breaker.IsOpen())

	updated, err := w.registry.AttachAnchor(actx, cert.ContributionID, ref)
	if err != nil {
		// Conflicts and missing certificates are sequencing bugs, not
		// transient faults. Log and drop.
		w.logger.ErrorContext(actx, "anchor ref attach failed",
			"contribution_id", cert.ContributionID.String(),
			"ref", ref,
			"error", err,
		)
		w.metrics.IncrementOutcome("dropped")
		return
	}

	w.logger.InfoContext(actx, "certificate anchored",
		"contribution_id", updated.ContributionID.String(),
		"ref", updated.OnChainRef,
	)
	w.metrics.IncrementOutcome("anchored")
}

func (w *Worker) anchorFailed(ctx context.Context, it item, err error) {
	if _, change := w.breaker.RecordFailure(); change.Opened {
		w.logger.WarnContext(ctx, "anchor circuit opened", "breaker", w.breaker.Name())
	}
	w.metrics.ObserveCircuit(w.breaker.IsOpen())

	it.attempts++
	if it.attempts < w.maxAttempts {
		w.logger.WarnContext(ctx, "anchor attempt failed, retrying",
			"contribution_id", it.cert.ContributionID.String(),
			"attempt", it.attempts,
			"error", err,
		)
		w.metrics.IncrementRetry()
		w.requeue(ctx, it)
		return
	}

	w.logger.ErrorContext(ctx, "anchor attempts exhausted, certificate stays unanchored",
		"contribution_id", it.cert.ContributionID.String(),
		"attempts", it.attempts,
		"error", err,
	)
	w.metrics.IncrementOutcome("failed")
	w.emitAudit(ctx, audit.Event{
		Category:       audit.CategoryOperations,
		Timestamp:      time.Now(),
		Action:         string(audit.EventAnchorFailed),
		ContributionID: it.cert.ContributionID.String(),
		Tier:           it.cert.Tier.String(),
		Reason:         err.Error(),
	})
}

// requeue schedules a failed item for another attempt after backoff. The
// timer goroutine holds no locks, so a cancelled worker just drops the item.
func (w *Worker) requeue(ctx context.Context, it item) {
	delay := w.backoff * time.Duration(1<<(it.attempts-1))
	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.queue.put(it); err != nil {
			if dErrors.HasCode(err, dErrors.CodeUnavailable) {
				w.metrics.IncrementOutcome("failed")
			}
			w.logger.WarnContext(ctx, "anchor requeue failed",
				"contribution_id", it.cert.ContributionID.String(),
				"error", err,
			)
		}
	})
}

func (w *Worker) emitAudit(ctx context.Context, event audit.Event) {
	if w.audit == nil {
		return
	}
	if err := w.audit.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"contribution_id", event.ContributionID,
			"error", err,
		)
	}
}
