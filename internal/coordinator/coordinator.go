// Package coordinator orchestrates a certification submission end to end:
// score the contribution, classify it against the active epoch's thresholds,
// allocate tokens, register the certificate, and hand it to the anchoring
// queue. Every step downstream of classification is idempotent per
// contribution ID, so the whole pipeline can be retried safely.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"laurel/internal/allocation"
	certmodels "laurel/internal/certificate/models"
	"laurel/internal/classifier"
	"laurel/internal/coordinator/metrics"
	"laurel/internal/coordinator/ports"
	epochmodels "laurel/internal/epoch/models"
	"laurel/pkg/domain"
	dErrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/audit"
	"laurel/pkg/requestcontext"
)

// Status is the final outcome of a submission.
type Status string

const (
	// StatusCertified means this submission minted the certificate.
	StatusCertified Status = "certified"
	// StatusAlreadyCertified means a certificate for the contribution
	// already existed; the caller gets the original.
	StatusAlreadyCertified Status = "already_certified"
	// StatusRejected means the score cleared no rewardable tier. No tokens
	// move and nothing is recorded.
	StatusRejected Status = "rejected"
)

// SubmitRequest carries one contribution through the pipeline. Metrics are
// optional; when absent the coordinator fetches them from the scorer port.
type SubmitRequest struct {
	ContributionID domain.ContributionID
	ContributorID  domain.ContributorID
	Metrics        *classifier.MetricVector
}

// CertificationResult is what a submitter gets back.
type CertificationResult struct {
	Status        Status
	Score         float64
	Tier          classifier.Tier
	Justification string
	Allocation    *allocation.TokenAllocation
	Certificate   *certmodels.Certificate
}

// Ledger is the slice of the epoch service the coordinator reads. Epoch
// advances happen inside the allocation engine or through the governance
// endpoint, never here.
type Ledger interface {
	Current(ctx context.Context) (*epochmodels.Epoch, error)
}

// Allocator mints token allocations for classified contributions.
type Allocator interface {
	Allocate(ctx context.Context, contributionID domain.ContributionID, tier classifier.Tier) (*allocation.TokenAllocation, error)
	TotalAllocated(ctx context.Context) (int64, error)
}

// Registry is the slice of the certificate service the coordinator uses.
type Registry interface {
	Register(ctx context.Context, contributorID domain.ContributorID, alloc *allocation.TokenAllocation) (*certmodels.Certificate, bool, error)
	Lookup(ctx context.Context, contributionID domain.ContributionID) (*certmodels.Certificate, error)
	Count(ctx context.Context) (int64, error)
}

// AuditEmitter records pipeline events for compliance review.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the certification pipeline.
type Service struct {
	classifier *classifier.Classifier
	ledger     Ledger
	allocator  Allocator
	registry   Registry
	scorer     ports.ScorerPort
	anchors    ports.AnchorQueue
	audit      AuditEmitter
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditEmitter attaches the audit trail.
func WithAuditEmitter(emitter AuditEmitter) Option {
	return func(s *Service) { s.audit = emitter }
}

// WithAnchorQueue attaches the queue feeding the anchoring worker.
func WithAnchorQueue(q ports.AnchorQueue) Option {
	return func(s *Service) { s.anchors = q }
}

// New builds the coordinator over its four core collaborators.
func New(c *classifier.Classifier, ledger Ledger, allocator Allocator, registry Registry, scorer ports.ScorerPort, opts ...Option) *Service {
	s := &Service{
		classifier: c,
		ledger:     ledger,
		allocator:  allocator,
		registry:   registry,
		scorer:     scorer,
		logger:     slog.Default(),
		tracer:     otel.Tracer("laurel/coordinator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit takes a contribution through classification, allocation, and
// registration. A rejected classification short-circuits with no side
// effects. An existing certificate short-circuits as already certified.
// Allocation failures from an exhausted ledger surface as retryable.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*CertificationResult, error) {
	if err := requireRole(ctx, requestcontext.RoleCoordinator); err != nil {
		return nil, err
	}
	if req.ContributionID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "contribution id is required")
	}
	if req.ContributorID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "contributor id is required")
	}

	ctx, span := s.tracer.Start(ctx, "coordinator.Submit",
		trace.WithAttributes(attribute.String("contribution_id", req.ContributionID.String())))
	defer span.End()

	start := time.Now()
	result, err := s.submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveSubmission("error", time.Since(start))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.String("tier", result.Tier.String()),
	)
	s.metrics.ObserveSubmission(string(result.Status), time.Since(start))
	return result, nil
}

func (s *Service) submit(ctx context.Context, req SubmitRequest) (*CertificationResult, error) {
	metricsVec, existing, err := s.gather(ctx, req)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.InfoContext(ctx, "contribution already certified",
			"contribution_id", req.ContributionID.String(),
			"tier", existing.Tier.String(),
		)
		return &CertificationResult{
			Status:      StatusAlreadyCertified,
			Tier:        existing.Tier,
			Certificate: existing,
		}, nil
	}

	current, err := s.ledger.Current(ctx)
	if err != nil {
		return nil, err
	}

	score, tier, justification, err := s.classifier.Classify(metricsVec, current.Thresholds)
	if err != nil {
		return nil, err
	}

	if tier == classifier.TierRejected {
		s.logger.InfoContext(ctx, "contribution rejected",
			"contribution_id", req.ContributionID.String(),
			"score", score,
			"epoch", current.Index,
		)
		s.metrics.IncrementRejection()
		s.emitAudit(ctx, audit.Event{
			Category:       audit.CategoryOperations,
			Timestamp:      requestcontext.Now(ctx),
			Action:         string(audit.EventCertificationRejected),
			ContributionID: req.ContributionID.String(),
			ContributorID:  req.ContributorID.String(),
			EpochIndex:     current.Index,
			Reason:         justification,
			RequestID:      requestcontext.RequestID(ctx),
		})
		return &CertificationResult{
			Status:        StatusRejected,
			Score:         score,
			Tier:          classifier.TierRejected,
			Justification: justification,
		}, nil
	}

	alloc, err := s.allocator.Allocate(ctx, req.ContributionID, tier)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			s.emitAudit(ctx, audit.Event{
				Category:       audit.CategoryOperations,
				Timestamp:      requestcontext.Now(ctx),
				Action:         string(audit.EventCertificationUnavailable),
				ContributionID: req.ContributionID.String(),
				Tier:           tier.String(),
				Reason:         err.Error(),
				RequestID:      requestcontext.RequestID(ctx),
			})
		}
		return nil, err
	}

	cert, created, err := s.registry.Register(ctx, req.ContributorID, alloc)
	if err != nil {
		return nil, err
	}

	result := &CertificationResult{
		Status:        StatusCertified,
		Score:         score,
		Tier:          alloc.Tier,
		Justification: justification,
		Allocation:    alloc,
		Certificate:   cert,
	}
	if !created {
		result.Status = StatusAlreadyCertified
		result.Tier = cert.Tier
		return result, nil
	}

	s.emitAudit(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		Timestamp:      requestcontext.Now(ctx),
		Action:         string(audit.EventCertificateRegistered),
		ContributionID: cert.ContributionID.String(),
		ContributorID:  cert.ContributorID.String(),
		EpochIndex:     cert.EpochIndex,
		Tier:           cert.Tier.String(),
		Amount:         cert.Amount,
		Reason:         justification,
		RequestID:      requestcontext.RequestID(ctx),
	})
	s.emitAudit(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		Timestamp:      requestcontext.Now(ctx),
		Action:         string(audit.EventAllocationMade),
		ContributionID: alloc.ContributionID.String(),
		EpochIndex:     alloc.EpochIndex,
		Tier:           alloc.Tier.String(),
		Amount:         alloc.Amount,
		RequestID:      requestcontext.RequestID(ctx),
	})

	if s.anchors != nil {
		if err := s.anchors.EnqueueRegistered(ctx, cert); err != nil {
			s.logger.WarnContext(ctx, "anchor enqueue failed, certificate stays unanchored",
				"contribution_id", cert.ContributionID.String(),
				"error", err,
			)
		}
	}
	return result, nil
}

// gather resolves the metric vector and checks for an existing certificate.
// When metrics are supplied inline only the registry lookup runs; otherwise
// the scorer fetch and the lookup run in parallel on an errgroup.
func (s *Service) gather(ctx context.Context, req SubmitRequest) (classifier.MetricVector, *certmodels.Certificate, error) {
	var (
		metricsVec classifier.MetricVector
		existing   *certmodels.Certificate
	)

	lookup := func(ctx context.Context) error {
		cert, err := s.registry.Lookup(ctx, req.ContributionID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil
			}
			return err
		}
		existing = cert
		return nil
	}

	if req.Metrics != nil {
		metricsVec = *req.Metrics
		if err := lookup(ctx); err != nil {
			return classifier.MetricVector{}, nil, err
		}
		return metricsVec, existing, nil
	}

	if s.scorer == nil {
		return classifier.MetricVector{}, nil, dErrors.New(dErrors.CodeBadRequest,
			"metrics are required; no scorer is configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := s.scorer.Score(gctx, req.ContributionID)
		if err != nil {
			s.metrics.IncrementScorerFetch("error")
			return err
		}
		s.metrics.IncrementScorerFetch("ok")
		metricsVec = vec
		return nil
	})
	g.Go(func() error { return lookup(gctx) })
	if err := g.Wait(); err != nil {
		return classifier.MetricVector{}, nil, err
	}
	return metricsVec, existing, nil
}

// Stats summarizes the ledger for the public stats endpoint.
type Stats struct {
	TotalCertified  int64
	TokensAllocated int64
}

// Stats reports how many certificates exist and how many tokens have been
// allocated across all epochs.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	certified, err := s.registry.Count(ctx)
	if err != nil {
		return nil, err
	}
	allocated, err := s.allocator.TotalAllocated(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalCertified: certified, TokensAllocated: allocated}, nil
}

// Lookup returns the certificate for a contribution. Public read.
func (s *Service) Lookup(ctx context.Context, contributionID domain.ContributionID) (*certmodels.Certificate, error) {
	return s.registry.Lookup(ctx, contributionID)
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"contribution_id", event.ContributionID,
			"error", err,
		)
	}
}

func requireRole(ctx context.Context, roles ...requestcontext.CallerRole) error {
	caller := requestcontext.Role(ctx)
	for _, role := range roles {
		if caller == role {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "caller lacks the required capability")
}
