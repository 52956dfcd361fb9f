// Package service implements the epoch ledger.
//
// The ledger owns the append-only epoch sequence and is the sole mutator of
// emission budgets. Any component needing the current epoch asks the ledger;
// nothing caches it across a reservation call.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"laurel/internal/classifier"
	epochmetrics "laurel/internal/epoch/metrics"
	"laurel/internal/epoch/models"
	"laurel/internal/epoch/store"
	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/sentinel"
	"laurel/pkg/requestcontext"
)

// Trigger names the cause of an epoch advance. Budget exhaustion and an
// explicit governance action are the only two legal transition causes.
type Trigger string

const (
	TriggerExhaustion Trigger = "exhaustion"
	TriggerGovernance Trigger = "governance"
)

// Policy holds the emission parameters fixed at deployment time.
type Policy struct {
	FounderBudget     int64
	BaseBudget        int64
	DecayFactor       float64
	Escalation        float64
	FounderThresholds classifier.ThresholdTable
	EpochThresholds   classifier.ThresholdTable
}

// Validate checks the policy knobs before the ledger accepts them.
func (p Policy) Validate() error {
	if p.FounderBudget <= 0 || p.BaseBudget <= 0 {
		return fmt.Errorf("budgets must be positive")
	}
	if p.DecayFactor <= 0 || p.DecayFactor > 1 {
		return fmt.Errorf("decay factor must be in (0, 1]")
	}
	if p.Escalation < 0 || p.Escalation >= 1 {
		return fmt.Errorf("escalation must be in [0, 1)")
	}
	if err := p.FounderThresholds.Validate(); err != nil {
		return fmt.Errorf("founder thresholds: %w", err)
	}
	if err := p.EpochThresholds.Validate(); err != nil {
		return fmt.Errorf("epoch thresholds: %w", err)
	}
	return nil
}

// budgetFor computes the geometric emission budget for an epoch index.
func (p Policy) budgetFor(index uint64) int64 {
	if index == 0 {
		return p.FounderBudget
	}
	return int64(math.Round(float64(p.BaseBudget) * math.Pow(p.DecayFactor, float64(index-1))))
}

// thresholdsFor derives the threshold table for the epoch following prior.
// Epoch 1 switches from the privileged founder table to the standard one;
// later epochs escalate monotonically.
func (p Policy) thresholdsFor(prior *models.Epoch) classifier.ThresholdTable {
	if prior.Index == 0 {
		return p.EpochThresholds.Clone()
	}
	return prior.Thresholds.Escalate(p.Escalation)
}

// Ledger is the single authority over epoch state.
type Ledger struct {
	store   store.Store
	policy  Policy
	logger  *slog.Logger
	metrics *epochmetrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *epochmetrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// NewLedger constructs the ledger, validating the policy.
func NewLedger(epochs store.Store, policy Policy, opts ...Option) (*Ledger, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("epoch policy: %w", err)
	}
	l := &Ledger{
		store:  epochs,
		policy: policy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// EnsureGenesis creates the founder epoch if the sequence is empty. Safe to
// call on every startup; a concurrent genesis from another instance wins
// cleanly.
func (l *Ledger) EnsureGenesis(ctx context.Context) (*models.Epoch, error) {
	active, err := l.store.FindActive(ctx)
	if err == nil {
		l.metrics.ObserveActive(active.Index, active.EmissionBudget)
		return active, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load active epoch")
	}

	founder, err := models.New(0, requestcontext.Now(ctx), l.policy.FounderBudget, l.policy.FounderThresholds, l.policy.DecayFactor)
	if err != nil {
		return nil, err
	}
	if err := l.store.Insert(ctx, founder); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return l.Current(ctx)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create founder epoch")
	}

	l.logger.InfoContext(ctx, "founder epoch created",
		"budget", founder.EmissionBudget,
	)
	l.metrics.ObserveActive(founder.Index, founder.EmissionBudget)
	return founder, nil
}

// Current returns the active epoch.
func (l *Ledger) Current(ctx context.Context) (*models.Epoch, error) {
	active, err := l.store.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeInternal, "no active epoch; genesis has not run")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load active epoch")
	}
	return active, nil
}

// Get returns the epoch with the given index.
func (l *Ledger) Get(ctx context.Context, index uint64) (*models.Epoch, error) {
	epoch, err := l.store.FindByIndex(ctx, index)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, fmt.Sprintf("epoch %d not found", index))
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load epoch")
	}
	return epoch, nil
}

// List returns the full epoch sequence ordered by index.
func (l *Ledger) List(ctx context.Context) ([]*models.Epoch, error) {
	epochs, err := l.store.List(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list epochs")
	}
	return epochs, nil
}

// Reserve atomically debits amount from the named epoch's budget. Only the
// coordinator capability may mint against the treasury.
//
// A budget shortfall returns CodeUnavailable wrapping
// sentinel.ErrInsufficient so the allocation engine can distinguish it from
// a hard failure and trigger an advance.
func (l *Ledger) Reserve(ctx context.Context, index uint64, amount int64) (*models.Epoch, error) {
	if err := requireRole(ctx, requestcontext.RoleCoordinator); err != nil {
		return nil, err
	}

	epoch, err := l.store.Execute(ctx, index,
		func(e *models.Epoch) error {
			return e.CanReserve(amount)
		},
		func(e *models.Epoch) {
			e.ApplyReserve(amount)
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInsufficient):
			l.metrics.IncrementReserveFailure("insufficient_budget")
			return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "insufficient epoch budget")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, domainerrors.New(domainerrors.CodeNotFound, fmt.Sprintf("epoch %d not found", index))
		case domainerrors.HasCode(err, domainerrors.CodeInvariantViolation):
			l.metrics.IncrementReserveFailure("closed_epoch")
			return nil, err
		case domainerrors.HasCode(err, domainerrors.CodeValidation):
			return nil, err
		default:
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to reserve budget")
		}
	}

	l.metrics.IncrementReservation()
	if epoch.IsActive() {
		l.metrics.ObserveActive(epoch.Index, epoch.EmissionBudget)
	}
	return epoch, nil
}

// Advance closes the active epoch and opens its successor with a decayed
// budget and escalated thresholds. Coordinator callers advance on budget
// exhaustion; operator callers advance by governance action.
//
// Losing an advance race to a concurrent caller is not an error: the ledger
// converges on whichever successor was created and returns it.
func (l *Ledger) Advance(ctx context.Context, trigger Trigger) (*models.Epoch, error) {
	if err := requireRole(ctx, requestcontext.RoleCoordinator, requestcontext.RoleOperator); err != nil {
		return nil, err
	}

	current, err := l.Current(ctx)
	if err != nil {
		return nil, err
	}

	next, err := models.New(
		current.Index+1,
		requestcontext.Now(ctx),
		l.policy.budgetFor(current.Index+1),
		l.policy.thresholdsFor(current),
		l.policy.DecayFactor,
	)
	if err != nil {
		return nil, err
	}

	if err := l.store.Advance(ctx, current.Index, requestcontext.Now(ctx), next); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrConflict) {
			winner, findErr := l.Current(ctx)
			if findErr == nil && winner.Index > current.Index {
				return winner, nil
			}
			return nil, domainerrors.Wrap(err, domainerrors.CodeConflict, "epoch advance lost a concurrent transition")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to advance epoch")
	}

	l.logger.InfoContext(ctx, "epoch advanced",
		"from", current.Index,
		"to", next.Index,
		"budget", next.EmissionBudget,
		"trigger", string(trigger),
	)
	l.metrics.IncrementAdvance(string(trigger))
	l.metrics.ObserveActive(next.Index, next.EmissionBudget)
	return next, nil
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
