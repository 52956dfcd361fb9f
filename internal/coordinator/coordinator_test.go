package coordinator

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"laurel/internal/allocation"
	allocmemory "laurel/internal/allocation/store/memory"
	certservice "laurel/internal/certificate/service"
	certmemory "laurel/internal/certificate/store/memory"
	"laurel/internal/classifier"
	"laurel/internal/coordinator/mocks"
	epochservice "laurel/internal/epoch/service"
	epochmemory "laurel/internal/epoch/store/memory"
	"laurel/pkg/domain"
	dErrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/audit"
	"laurel/pkg/platform/audit/publisher"
	auditmemory "laurel/pkg/platform/audit/store/memory"
	"laurel/pkg/requestcontext"
)

type CoordinatorSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	scorer     *mocks.MockScorerPort
	anchors    *mocks.MockAnchorQueue
	ledger     *epochservice.Ledger
	service    *Service
	auditStore *auditmemory.InMemoryStore
	ctx        context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctrl = gomock.NewController(s.T())
	s.scorer = mocks.NewMockScorerPort(s.ctrl)
	s.anchors = mocks.NewMockAnchorQueue(s.ctrl)

	ledger, err := epochservice.NewLedger(epochmemory.NewInMemoryStore(), epochservice.Policy{
		FounderBudget: 10_000,
		BaseBudget:    5_000,
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

	s.auditStore = auditmemory.NewInMemoryStore()
	registry := certservice.NewRegistry(certmemory.NewInMemoryStore(), certservice.WithLogger(logger))

	s.service = New(
		classifier.New(classifier.DefaultWeights),
		ledger,
		engine,
		registry,
		s.scorer,
		WithLogger(logger),
		WithAuditEmitter(publisher.NewPublisher(s.auditStore, publisher.WithLogger(logger))),
		WithAnchorQueue(s.anchors),
	)
}

func (s *CoordinatorSuite) request(seed string, metrics *classifier.MetricVector) SubmitRequest {
	contributor, err := domain.ParseContributorID(uuid.NewString())
	s.Require().NoError(err)
	return SubmitRequest{
		ContributionID: domain.DeriveContributionID([]byte(seed)),
		ContributorID:  contributor,
		Metrics:        metrics,
	}
}

// 0.4*1 + 0.3*1 + 0.3*1 - 0.2*1 = 0.8, founder tier in epoch 0.
var founderMetrics = classifier.MetricVector{Coherence: 1, Density: 1, Novelty: 1, Redundancy: 1}

func (s *CoordinatorSuite) TestSubmitInlineMetrics() {
	s.anchors.EXPECT().EnqueueRegistered(gomock.Any(), gomock.Any()).Return(nil)

	req := s.request("paper-1", &founderMetrics)
	result, err := s.service.Submit(s.ctx, req)
	s.Require().NoError(err)

	s.Equal(StatusCertified, result.Status)
	s.InDelta(0.8, result.Score, 1e-9)
	s.Equal(classifier.TierFounder, result.Tier)
	s.Require().NotNil(result.Certificate)
	s.Equal(int64(1000), result.Certificate.Amount)
	s.Empty(result.Certificate.OnChainRef)

	current, err := s.ledger.Current(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(9_000), current.EmissionBudget)

	events, err := s.auditStore.ListByContribution(s.ctx, req.ContributionID.String())
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, event := range events {
		actions = append(actions, event.Action)
	}
	s.Contains(actions, string(audit.EventCertificateRegistered))
	s.Contains(actions, string(audit.EventAllocationMade))
}

func (s *CoordinatorSuite) TestSubmitReplay() {
	s.anchors.EXPECT().EnqueueRegistered(gomock.Any(), gomock.Any()).Return(nil)

	req := s.request("paper-replay", &founderMetrics)
	first, err := s.service.Submit(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(StatusCertified, first.Status)

	second, err := s.service.Submit(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(StatusAlreadyCertified, second.Status)
	s.Equal(first.Certificate.Amount, second.Certificate.Amount)

	// One debit only.
	current, err := s.ledger.Current(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(9_000), current.EmissionBudget)
}

func (s *CoordinatorSuite) TestSubmitRejected() {
	req := s.request("weak-paper", &classifier.MetricVector{})
	result, err := s.service.Submit(s.ctx, req)
	s.Require().NoError(err)

	s.Equal(StatusRejected, result.Status)
	s.Equal(classifier.TierRejected, result.Tier)
	s.Nil(result.Certificate)
	s.Nil(result.Allocation)
	s.NotEmpty(result.Justification)

	// No tokens moved and nothing was recorded.
	current, err := s.ledger.Current(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(10_000), current.EmissionBudget)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Zero(stats.TotalCertified)
	s.Zero(stats.TokensAllocated)

	events, err := s.auditStore.ListByContribution(s.ctx, req.ContributionID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventCertificationRejected), events[0].Action)
}

func (s *CoordinatorSuite) TestSubmitScorerPath() {
	req := s.request("scored-paper", nil)

	s.Run("fetches metrics from the scorer", func() {
		s.scorer.EXPECT().Score(gomock.Any(), req.ContributionID).Return(founderMetrics, nil)
		s.anchors.EXPECT().EnqueueRegistered(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.Submit(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(StatusCertified, result.Status)
		s.Equal(classifier.TierFounder, result.Tier)
	})

	s.Run("short-circuits when already certified", func() {
		s.scorer.EXPECT().Score(gomock.Any(), req.ContributionID).Return(founderMetrics, nil).AnyTimes()

		result, err := s.service.Submit(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(StatusAlreadyCertified, result.Status)
	})
}

func (s *CoordinatorSuite) TestSubmitScorerUnavailable() {
	req := s.request("unscored-paper", nil)
	s.scorer.EXPECT().Score(gomock.Any(), req.ContributionID).
		Return(classifier.MetricVector{}, dErrors.New(dErrors.CodeUnavailable, "metric scorer unreachable"))

	_, err := s.service.Submit(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *CoordinatorSuite) TestSubmitValidation() {
	s.Run("requires the coordinator capability", func() {
		_, err := s.service.Submit(context.Background(), s.request("paper", &founderMetrics))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects out of range metrics", func() {
		_, err := s.service.Submit(s.ctx, s.request("paper", &classifier.MetricVector{Coherence: 1.2}))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects a zero contribution id", func() {
		req := s.request("paper", &founderMetrics)
		req.ContributionID = domain.ContributionID{}
		_, err := s.service.Submit(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CoordinatorSuite) TestStats() {
	s.anchors.EXPECT().EnqueueRegistered(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := s.service.Submit(s.ctx, s.request("paper-a", &founderMetrics))
	s.Require().NoError(err)
	_, err = s.service.Submit(s.ctx, s.request("paper-b", &founderMetrics))
	s.Require().NoError(err)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), stats.TotalCertified)
	s.Equal(int64(2000), stats.TokensAllocated)
}
