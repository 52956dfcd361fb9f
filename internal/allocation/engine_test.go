package allocation_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"laurel/internal/allocation"
	allocmemory "laurel/internal/allocation/store/memory"
	"laurel/internal/classifier"
	epochservice "laurel/internal/epoch/service"
	epochmemory "laurel/internal/epoch/store/memory"
	"laurel/pkg/domain"
	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	engine *allocation.Engine
	ledger *epochservice.Ledger
	ctx    context.Context
}

func (s *EngineSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger, err := epochservice.NewLedger(epochmemory.NewInMemoryStore(), epochservice.Policy{
		FounderBudget: 1000,
		BaseBudget:    500,
		DecayFactor:   0.85,
		Escalation:    0.05,
		FounderThresholds: classifier.ThresholdTable{
			classifier.TierBronze:  0.05,
			classifier.TierSilver:  0.10,
			classifier.TierGold:    0.20,
			classifier.TierFounder: 0.30,
		},
		EpochThresholds: classifier.ThresholdTable{
			classifier.TierBronze: 0.30,
			classifier.TierSilver: 0.50,
			classifier.TierGold:   0.75,
		},
	}, epochservice.WithLogger(logger))
	s.Require().NoError(err)
	s.ledger = ledger

	s.ctx = requestcontext.WithRole(context.Background(), requestcontext.RoleCoordinator)
	_, err = ledger.EnsureGenesis(s.ctx)
	s.Require().NoError(err)

	engine, err := allocation.NewEngine(ledger, allocmemory.NewInMemoryStore(), allocation.RewardTable{
		classifier.TierBronze:  100,
		classifier.TierSilver:  250,
		classifier.TierGold:    500,
		classifier.TierFounder: 1000,
	}, allocation.WithLogger(logger))
	s.Require().NoError(err)
	s.engine = engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) contribution(seed string) domain.ContributionID {
	return domain.DeriveContributionID([]byte(seed))
}

func (s *EngineSuite) TestAllocate() {
	s.Run("debits the founder epoch at full unit value", func() {
		alloc, err := s.engine.Allocate(s.ctx, s.contribution("paper-1"), classifier.TierGold)
		s.Require().NoError(err)
		s.Equal(int64(500), alloc.Amount)
		s.Equal(uint64(0), alloc.EpochIndex)

		current, err := s.ledger.Current(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(500), current.EmissionBudget)
	})

	s.Run("same contribution allocates exactly once", func() {
		id := s.contribution("paper-1")
		again, err := s.engine.Allocate(s.ctx, id, classifier.TierGold)
		s.Require().NoError(err)
		s.Equal(int64(500), again.Amount)
		s.Equal(uint64(0), again.EpochIndex)

		// Budget unchanged by the replay.
		current, err := s.ledger.Current(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(500), current.EmissionBudget)
	})

	s.Run("rejected tier never reaches the ledger", func() {
		_, err := s.engine.Allocate(s.ctx, s.contribution("paper-2"), classifier.TierRejected)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeInvariantViolation))
	})

	s.Run("requires the coordinator capability", func() {
		_, err := s.engine.Allocate(context.Background(), s.contribution("paper-3"), classifier.TierBronze)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
	})
}

func (s *EngineSuite) TestExhaustionBoundary() {
	// Drain the founder epoch with a single founder-tier allocation.
	alloc, err := s.engine.Allocate(s.ctx, s.contribution("genesis-paper"), classifier.TierFounder)
	s.Require().NoError(err)
	s.Equal(int64(1000), alloc.Amount)
	s.Equal(uint64(0), alloc.EpochIndex)

	// The next allocation must land in epoch 1, never epoch 0.
	next, err := s.engine.Allocate(s.ctx, s.contribution("follow-up"), classifier.TierBronze)
	s.Require().NoError(err)
	s.Equal(uint64(1), next.EpochIndex)
	// 100 * 0.85 decay-adjusted unit value.
	s.Equal(int64(85), next.Amount)

	// Exactly one advance happened.
	epochs, err := s.ledger.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(epochs, 2)
	s.Equal(int64(0), epochs[0].EmissionBudget)
	s.Equal(int64(500-85), epochs[1].EmissionBudget)
}

func (s *EngineSuite) TestConcurrentAllocateSameContribution() {
	id := s.contribution("contended-paper")

	var wg sync.WaitGroup
	results := make([]*allocation.TokenAllocation, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			alloc, err := s.engine.Allocate(s.ctx, id, classifier.TierSilver)
			if err == nil {
				results[slot] = alloc
			}
		}(i)
	}
	wg.Wait()

	for _, alloc := range results {
		s.Require().NotNil(alloc)
		s.Equal(int64(250), alloc.Amount)
		s.Equal(uint64(0), alloc.EpochIndex)
	}

	// One debit total.
	current, err := s.ledger.Current(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(750), current.EmissionBudget)

	total, err := s.engine.TotalAllocated(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(250), total)
}

func (s *EngineSuite) TestTotalAllocated() {
	for i := 0; i < 3; i++ {
		_, err := s.engine.Allocate(s.ctx, s.contribution(fmt.Sprintf("paper-%d", i)), classifier.TierBronze)
		s.Require().NoError(err)
	}

	total, err := s.engine.TotalAllocated(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(300), total)
}

func (s *EngineSuite) TestLookup() {
	id := s.contribution("lookup-paper")

	_, err := s.engine.Lookup(s.ctx, id)
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))

	_, err = s.engine.Allocate(s.ctx, id, classifier.TierBronze)
	s.Require().NoError(err)

	alloc, err := s.engine.Lookup(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(int64(100), alloc.Amount)
}
