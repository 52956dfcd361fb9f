// Package service implements the certificate registry, the sole arbiter of
// whether a contribution has been certified.
package service

import (
	"context"
	"errors"
	"log/slog"

	"laurel/internal/allocation"
	certmetrics "laurel/internal/certificate/metrics"
	"laurel/internal/certificate/models"
	"laurel/internal/certificate/store"
	"laurel/pkg/domain"
	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/audit"
	"laurel/pkg/platform/sentinel"
	"laurel/pkg/requestcontext"
)

// AuditPublisher records compliance events for the registry.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Registry enforces the at-most-one-certificate invariant and owns ref
// enrichment.
type Registry struct {
	certs   store.Store
	logger  *slog.Logger
	metrics *certmetrics.Metrics
	audit   AuditPublisher
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithMetrics(m *certmetrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Registry) {
		r.audit = publisher
	}
}

func NewRegistry(certs store.Store, opts ...Option) *Registry {
	r := &Registry{
		certs:  certs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates the certificate for an allocation exactly once. Racers
// losing the insert receive the winner's record and created=false; callers
// treat that as success. The certificate is built from the allocation's
// data, never re-minted, so a crash between allocation and registration
// converges on retry.
func (r *Registry) Register(ctx context.Context, contributorID domain.ContributorID, alloc *allocation.TokenAllocation) (*models.Certificate, bool, error) {
	if err := requireRole(ctx, requestcontext.RoleCoordinator); err != nil {
		return nil, false, err
	}
	if alloc == nil || alloc.ContributionID.IsZero() {
		return nil, false, domainerrors.New(domainerrors.CodeInvalidInput, "allocation is required")
	}
	if contributorID.IsZero() {
		return nil, false, domainerrors.New(domainerrors.CodeInvalidInput, "contributor id is required")
	}

	cert := &models.Certificate{
		ContributionID: alloc.ContributionID,
		ContributorID:  contributorID,
		Tier:           alloc.Tier,
		Amount:         alloc.Amount,
		EpochIndex:     alloc.EpochIndex,
		RegisteredAt:   requestcontext.Now(ctx),
	}

	err := r.certs.CreateIfAbsent(ctx, cert)
	if err == nil {
		r.logger.InfoContext(ctx, "certificate registered",
			"contribution_id", cert.ContributionID.String(),
			"tier", cert.Tier.String(),
			"amount", cert.Amount,
			"epoch", cert.EpochIndex,
		)
		r.metrics.IncrementRegistered(cert.Tier.String())
		return cert, true, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to register certificate")
	}

	existing, findErr := r.certs.FindByContribution(ctx, alloc.ContributionID)
	if findErr != nil {
		return nil, false, domainerrors.Wrap(findErr, domainerrors.CodeInternal, "failed to load winning certificate")
	}
	r.metrics.IncrementDuplicateWin()
	return existing, false, nil
}

// AttachAnchor fills the on-chain ref once the anchoring transaction
// finalizes. Attaching the same ref twice is a no-op; a different ref is a
// caller sequencing bug surfaced as a conflict, the original ref stays.
func (r *Registry) AttachAnchor(ctx context.Context, contributionID domain.ContributionID, ref string) (*models.Certificate, error) {
	if err := requireRole(ctx, requestcontext.RoleAnchorer); err != nil {
		return nil, err
	}
	if contributionID.IsZero() {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "contribution id is required")
	}
	if ref == "" {
		return nil, domainerrors.New(domainerrors.CodeValidation, "on-chain ref is required")
	}

	cert, err := r.certs.AttachRef(ctx, contributionID, ref)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, domainerrors.New(domainerrors.CodeNotFound, "certificate not registered")
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			r.metrics.IncrementAnchorConflict()
			return nil, domainerrors.New(domainerrors.CodeConflict, "certificate already anchored to a different ref")
		default:
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to attach on-chain ref")
		}
	}

	r.logger.InfoContext(ctx, "on-chain ref attached",
		"contribution_id", contributionID.String(),
		"ref", ref,
	)
	r.metrics.IncrementAnchorAttached()
	r.emitAudit(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		Action:         string(audit.EventAnchorAttached),
		ContributionID: contributionID.String(),
		EpochIndex:     cert.EpochIndex,
		Tier:           cert.Tier.String(),
		Ref:            ref,
		RequestID:      requestcontext.RequestID(ctx),
	})
	return cert, nil
}

// Lookup returns the certificate for a contribution. Read-only, no
// capability required.
func (r *Registry) Lookup(ctx context.Context, contributionID domain.ContributionID) (*models.Certificate, error) {
	if contributionID.IsZero() {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "contribution id is required")
	}
	cert, err := r.certs.FindByContribution(ctx, contributionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "certificate not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load certificate")
	}
	return cert, nil
}

// Count returns the total number of certified contributions.
func (r *Registry) Count(ctx context.Context) (int64, error) {
	count, err := r.certs.Count(ctx)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to count certificates")
	}
	return count, nil
}

func (r *Registry) emitAudit(ctx context.Context, event audit.Event) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Emit(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit emission failed",
			"action", event.Action,
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
	return domainerrors.New(domainerrors.CodeUnauthorized, "caller lacks the required capability")
}
