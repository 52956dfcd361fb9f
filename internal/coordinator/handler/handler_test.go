package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"laurel/internal/allocation"
	allocmemory "laurel/internal/allocation/store/memory"
	certservice "laurel/internal/certificate/service"
	certmemory "laurel/internal/certificate/store/memory"
	"laurel/internal/classifier"
	"laurel/internal/coordinator"
	epochservice "laurel/internal/epoch/service"
	epochmemory "laurel/internal/epoch/store/memory"
	"laurel/pkg/domain"
	dErrors "laurel/pkg/domain-errors"
	"laurel/pkg/requestcontext"
	"laurel/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router *chi.Mux
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

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

	genesisCtx := requestcontext.WithRole(context.Background(), requestcontext.RoleCoordinator)
	_, err = ledger.EnsureGenesis(genesisCtx)
	s.Require().NoError(err)

	engine, err := allocation.NewEngine(ledger, allocmemory.NewInMemoryStore(), allocation.RewardTable{
		classifier.TierBronze:  100,
		classifier.TierSilver:  250,
		classifier.TierGold:    500,
		classifier.TierFounder: 1000,
	}, allocation.WithLogger(logger))
	s.Require().NoError(err)

	registry := certservice.NewRegistry(certmemory.NewInMemoryStore(), certservice.WithLogger(logger))
	service := coordinator.New(classifier.New(classifier.DefaultWeights), ledger, engine, registry, nil,
		coordinator.WithLogger(logger))

	s.router = chi.NewRouter()
	New(service, registry, logger).Register(s.router)
}

func (s *HandlerSuite) submitBody(seed string) map[string]any {
	return map[string]any{
		"contribution_id": domain.DeriveContributionID([]byte(seed)).String(),
		"contributor_id":  uuid.NewString(),
		"metrics": map[string]float64{
			"coherence":  1,
			"density":    1,
			"novelty":    1,
			"redundancy": 1,
		},
	}
}

func (s *HandlerSuite) TestSubmit() {
	s.Run("certifies a scoring contribution", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("paper-1"))
		req = testutil.WithRole(req, requestcontext.RoleCoordinator)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[SubmitResponse](s.T(), rr)
		s.Equal(string(coordinator.StatusCertified), resp.Status)
		s.Equal("founder", resp.Tier)
		s.Require().NotNil(resp.Certificate)
		s.Equal(int64(1000), resp.Certificate.Amount)
	})

	s.Run("replays with 200 and the original certificate", func() {
		body := s.submitBody("paper-replay")
		first := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", body), requestcontext.RoleCoordinator)
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, first), http.StatusCreated)

		second := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", body), requestcontext.RoleCoordinator)
		rr := testutil.DoRequest(s.router, second)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[SubmitResponse](s.T(), rr)
		s.Equal(string(coordinator.StatusAlreadyCertified), resp.Status)
	})

	s.Run("rejects a sub-threshold contribution with 200", func() {
		body := s.submitBody("weak-paper")
		body["metrics"] = map[string]float64{}
		req := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", body), requestcontext.RoleCoordinator)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[SubmitResponse](s.T(), rr)
		s.Equal(string(coordinator.StatusRejected), resp.Status)
		s.Nil(resp.Certificate)
	})

	s.Run("rejects a malformed contribution id", func() {
		body := s.submitBody("paper")
		body["contribution_id"] = "not-a-cid"
		req := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", body), requestcontext.RoleCoordinator)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("requires the coordinator capability", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("paper"))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})
}

func (s *HandlerSuite) TestLookupAndAnchor() {
	body := s.submitBody("anchored-paper")
	contributionID := body["contribution_id"].(string)
	submit := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", body), requestcontext.RoleCoordinator)
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, submit), http.StatusCreated)

	s.Run("lookup is public", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/certifications/"+contributionID)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[CertificateResponse](s.T(), rr)
		s.Equal(contributionID, resp.ContributionID)
		s.Empty(resp.OnChainRef)
	})

	s.Run("anchorer attaches the ref", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications/"+contributionID+"/anchor", map[string]string{"ref": "0xabc"})
		req = testutil.WithRole(req, requestcontext.RoleAnchorer)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[CertificateResponse](s.T(), rr)
		s.Equal("0xabc", resp.OnChainRef)
	})

	s.Run("conflicting ref returns 409", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications/"+contributionID+"/anchor", map[string]string{"ref": "0xdef"})
		req = testutil.WithRole(req, requestcontext.RoleAnchorer)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("anchoring an unknown certificate returns 404", func() {
		ghost := domain.DeriveContributionID([]byte("ghost")).String()
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications/"+ghost+"/anchor", map[string]string{"ref": "0xabc"})
		req = testutil.WithRole(req, requestcontext.RoleAnchorer)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("missing certificate lookup returns 404", func() {
		ghost := domain.DeriveContributionID([]byte("never-submitted")).String()
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/certifications/"+ghost)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}

func (s *HandlerSuite) TestStats() {
	req := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("stat-paper")), requestcontext.RoleCoordinator)
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusCreated)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/stats"))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[StatsResponse](s.T(), rr)
	s.Equal(int64(1), resp.TotalCertified)
	s.Equal(int64(1000), resp.TokensAllocated)
}
