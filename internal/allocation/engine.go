package allocation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"

	allocmetrics "laurel/internal/allocation/metrics"
	"laurel/internal/classifier"
	epochmodels "laurel/internal/epoch/models"
	epochservice "laurel/internal/epoch/service"
	"laurel/pkg/domain"
	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/sentinel"
	"laurel/pkg/requestcontext"
)

// Ledger is the slice of the epoch ledger the engine depends on.
type Ledger interface {
	Current(ctx context.Context) (*epochmodels.Epoch, error)
	Reserve(ctx context.Context, index uint64, amount int64) (*epochmodels.Epoch, error)
	Advance(ctx context.Context, trigger epochservice.Trigger) (*epochmodels.Epoch, error)
}

const lockShards = 64

// Engine allocates tokens for classified contributions.
//
// Same-contribution requests are serialized on a sharded lock so the
// find-then-reserve-then-insert sequence runs once; the store's atomic
// insert is the backstop for anything the lock cannot see.
type Engine struct {
	ledger  Ledger
	store   Store
	rewards RewardTable
	logger  *slog.Logger
	metrics *allocmetrics.Metrics
	locks   [lockShards]sync.Mutex
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *allocmetrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine constructs the engine, validating the reward table.
func NewEngine(ledger Ledger, store Store, rewards RewardTable, opts ...Option) (*Engine, error) {
	if err := rewards.Validate(); err != nil {
		return nil, fmt.Errorf("reward table: %w", err)
	}
	e := &Engine{
		ledger:  ledger,
		store:   store,
		rewards: rewards,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Allocate reserves tokens for the tier against the active epoch and
// persists the allocation. Calling it again with the same contribution ID
// returns the existing record unchanged; the budget is debited exactly once.
//
// When the active epoch cannot cover the amount, the engine advances the
// ledger exactly once and retries against the successor before giving up.
func (e *Engine) Allocate(ctx context.Context, contributionID domain.ContributionID, tier classifier.Tier) (*TokenAllocation, error) {
	if tier == classifier.TierRejected {
		return nil, domainerrors.New(domainerrors.CodeInvariantViolation, "rejected contributions are never allocated")
	}
	if _, ok := e.rewards[tier]; !ok {
		return nil, domainerrors.New(domainerrors.CodeInvariantViolation,
			fmt.Sprintf("no reward configured for tier %s", tier))
	}

	lock := e.lockFor(contributionID)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := e.store.FindByContribution(ctx, contributionID); err == nil {
		e.metrics.IncrementIdempotentHit()
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to check existing allocation")
	}

	epoch, amount, err := e.reserve(ctx, tier)
	if err != nil {
		return nil, err
	}

	alloc := &TokenAllocation{
		ContributionID: contributionID,
		EpochIndex:     epoch.Index,
		Tier:           tier,
		Amount:         amount,
		AllocatedAt:    requestcontext.Now(ctx),
	}
	if err := e.store.CreateIfAbsent(ctx, alloc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			existing, findErr := e.store.FindByContribution(ctx, contributionID)
			if findErr != nil {
				return nil, domainerrors.Wrap(findErr, domainerrors.CodeInternal, "failed to load winning allocation")
			}
			e.metrics.IncrementIdempotentHit()
			return existing, nil
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to persist allocation")
	}

	e.logger.InfoContext(ctx, "tokens allocated",
		"contribution_id", contributionID.String(),
		"tier", tier.String(),
		"amount", amount,
		"epoch", epoch.Index,
	)
	e.metrics.IncrementAllocation(tier.String(), amount)
	return alloc, nil
}

// reserve debits the active epoch, bridging the exhaustion boundary with a
// single advance-and-retry.
func (e *Engine) reserve(ctx context.Context, tier classifier.Tier) (*epochmodels.Epoch, int64, error) {
	current, err := e.ledger.Current(ctx)
	if err != nil {
		return nil, 0, err
	}

	amount := e.amountFor(tier, current)
	epoch, err := e.ledger.Reserve(ctx, current.Index, amount)
	if err == nil {
		return epoch, amount, nil
	}
	if !errors.Is(err, sentinel.ErrInsufficient) {
		return nil, 0, err
	}

	next, err := e.ledger.Advance(ctx, epochservice.TriggerExhaustion)
	if err != nil {
		return nil, 0, err
	}
	e.metrics.IncrementBoundaryRetry()
	e.logger.InfoContext(ctx, "epoch exhausted, retrying against successor",
		"tier", tier.String(),
		"from", current.Index,
		"to", next.Index,
	)

	amount = e.amountFor(tier, next)
	epoch, err = e.ledger.Reserve(ctx, next.Index, amount)
	if err != nil {
		if errors.Is(err, sentinel.ErrInsufficient) {
			return nil, 0, domainerrors.Wrap(err, domainerrors.CodeUnavailable,
				"epoch budget exhausted even after advance, try again")
		}
		return nil, 0, err
	}
	return epoch, amount, nil
}

// TotalAllocated sums every token debit across epochs.
func (e *Engine) TotalAllocated(ctx context.Context) (int64, error) {
	total, err := e.store.TotalAllocated(ctx)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to sum allocations")
	}
	return total, nil
}

// Lookup returns the allocation for a contribution.
func (e *Engine) Lookup(ctx context.Context, contributionID domain.ContributionID) (*TokenAllocation, error) {
	alloc, err := e.store.FindByContribution(ctx, contributionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "no allocation for contribution")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load allocation")
	}
	return alloc, nil
}

// amountFor scales the tier's base reward by the epoch's decay-adjusted
// unit value. Amounts never decay below one token.
func (e *Engine) amountFor(tier classifier.Tier, epoch *epochmodels.Epoch) int64 {
	base := e.rewards[tier]
	unit := math.Pow(epoch.DecayFactor, float64(epoch.Index))
	amount := int64(math.Round(float64(base) * unit))
	if amount < 1 {
		amount = 1
	}
	return amount
}

func (e *Engine) lockFor(contributionID domain.ContributionID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(contributionID.String()))
	return &e.locks[h.Sum32()%lockShards]
}
