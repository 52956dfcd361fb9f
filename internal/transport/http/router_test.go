package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"laurel/internal/allocation"
	allocmemory "laurel/internal/allocation/store/memory"
	certservice "laurel/internal/certificate/service"
	certmemory "laurel/internal/certificate/store/memory"
	"laurel/internal/classifier"
	"laurel/internal/coordinator"
	coordhandler "laurel/internal/coordinator/handler"
	epochhandler "laurel/internal/epoch/handler"
	epochservice "laurel/internal/epoch/service"
	epochmemory "laurel/internal/epoch/store/memory"
	"laurel/internal/platform/middleware"
	"laurel/internal/ratelimit"
	"laurel/pkg/domain"
	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/audit"
	"laurel/pkg/platform/audit/publisher"
	auditmemory "laurel/pkg/platform/audit/store/memory"
	"laurel/pkg/requestcontext"
	"laurel/pkg/testutil"
)

const testSigningKey = "router-test-key"

type RouterSuite struct {
	suite.Suite
	handler    http.Handler
	certH      *coordhandler.Handler
	epochH     *epochhandler.Handler
	auditStore audit.Store
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

// newTestStack wires an in-memory certification pipeline and returns its
// HTTP handlers plus the audit store backing it.
func newTestStack(t *testing.T) (*coordhandler.Handler, *epochhandler.Handler, audit.Store) {
	t.Helper()

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
	require.NoError(t, err)

	genesisCtx := requestcontext.WithRole(context.Background(), requestcontext.RoleCoordinator)
	_, err = ledger.EnsureGenesis(genesisCtx)
	require.NoError(t, err)

	engine, err := allocation.NewEngine(ledger, allocmemory.NewInMemoryStore(), allocation.RewardTable{
		classifier.TierBronze:  100,
		classifier.TierSilver:  250,
		classifier.TierGold:    500,
		classifier.TierFounder: 1000,
	}, allocation.WithLogger(logger))
	require.NoError(t, err)

	auditStore := auditmemory.NewInMemoryStore()
	auditPub := publisher.NewPublisher(auditStore, publisher.WithLogger(logger))

	registry := certservice.NewRegistry(certmemory.NewInMemoryStore(),
		certservice.WithLogger(logger), certservice.WithAuditPublisher(auditPub))
	service := coordinator.New(classifier.New(classifier.DefaultWeights), ledger, engine, registry, nil,
		coordinator.WithLogger(logger), coordinator.WithAuditEmitter(auditPub))

	return coordhandler.New(service, registry, logger), epochhandler.New(ledger, logger), auditStore
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.certH, s.epochH, s.auditStore = newTestStack(s.T())
	s.handler = NewRouter(Deps{
		Logger:         logger,
		Validator:      middleware.NewTokenValidator(testSigningKey),
		Certifications: s.certH,
		Epochs:         s.epochH,
		Audit:          s.auditStore,
		SubmitLimiter:  ratelimit.NewSlidingWindow(100, time.Minute),
	})
}

func (s *RouterSuite) bearer(role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSigningKey))
	s.Require().NoError(err)
	return "Bearer " + signed
}

func (s *RouterSuite) submitBody(seed string) map[string]any {
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

func (s *RouterSuite) TestPublicEndpoints() {
	s.Run("health is open", func() {
		rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("current epoch is open", func() {
		rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/v1/epochs/current"))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("metrics endpoint is mounted", func() {
		rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *RouterSuite) TestSubmissionAuth() {
	s.Run("no token is rejected", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("paper"))
		rr := testutil.DoRequest(s.handler, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("anchorer token cannot submit", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("paper"))
		req.Header.Set("Authorization", s.bearer("anchorer"))
		rr := testutil.DoRequest(s.handler, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("coordinator token certifies", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("paper"))
		req.Header.Set("Authorization", s.bearer("coordinator"))
		rr := testutil.DoRequest(s.handler, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})
}

func (s *RouterSuite) TestFullPipelineOverHTTP() {
	body := s.submitBody("pipeline-paper")
	contributionID := body["contribution_id"].(string)

	submit := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", body)
	submit.Header.Set("Authorization", s.bearer("coordinator"))
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.handler, submit), http.StatusCreated)

	anchor := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications/"+contributionID+"/anchor", map[string]string{"ref": "0xabc"})
	anchor.Header.Set("Authorization", s.bearer("anchorer"))
	testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.handler, anchor))

	lookup := testutil.NewRequest(s.T(), http.MethodGet, "/v1/certifications/"+contributionID)
	rr := testutil.DoRequest(s.handler, lookup)
	testutil.AssertStatusOK(s.T(), rr)
	cert := testutil.UnmarshalResponse[coordhandler.CertificateResponse](s.T(), rr)
	s.Equal("0xabc", cert.OnChainRef)

	advance := testutil.NewRequest(s.T(), http.MethodPost, "/v1/epochs/advance")
	advance.Header.Set("Authorization", s.bearer("operator"))
	rr = testutil.DoRequest(s.handler, advance)
	testutil.AssertStatusOK(s.T(), rr)
	epoch := testutil.UnmarshalResponse[epochhandler.EpochResponse](s.T(), rr)
	s.Equal(uint64(1), epoch.Index)
}

func (s *RouterSuite) TestAuditTrail() {
	submit := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("audited-paper"))
	submit.Header.Set("Authorization", s.bearer("coordinator"))
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.handler, submit), http.StatusCreated)

	s.Run("operator reads recent events", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/audit/events")
		req.Header.Set("Authorization", s.bearer("operator"))
		rr := testutil.DoRequest(s.handler, req)
		testutil.AssertStatusOK(s.T(), rr)
		events := testutil.UnmarshalResponse[[]audit.Event](s.T(), rr)
		s.Require().NotEmpty(*events)

		var actions []string
		for _, event := range *events {
			actions = append(actions, event.Action)
		}
		s.Contains(actions, string(audit.EventCertificateRegistered))
	})

	s.Run("anchorer cannot read the trail", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/audit/events")
		req.Header.Set("Authorization", s.bearer("anchorer"))
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.handler, req), http.StatusUnauthorized)
	})

	s.Run("limit is validated", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/audit/events?limit=0")
		req.Header.Set("Authorization", s.bearer("operator"))
		rr := testutil.DoRequest(s.handler, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(domainerrors.CodeValidation))
	})
}

func (s *RouterSuite) TestSubmissionRateLimit() {
	limiter := ratelimit.NewSlidingWindow(1, time.Minute)
	deps := Deps{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator:      middleware.NewTokenValidator(testSigningKey),
		Certifications: s.certH,
		Epochs:         s.epochH,
		SubmitLimiter:  limiter,
	}
	handler := NewRouter(deps)

	first := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("limited-a"))
	first.Header.Set("Authorization", s.bearer("coordinator"))
	first.RemoteAddr = "10.1.1.1:5000"
	testutil.AssertStatus(s.T(), testutil.DoRequest(handler, first), http.StatusCreated)

	second := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/certifications", s.submitBody("limited-b"))
	second.Header.Set("Authorization", s.bearer("coordinator"))
	second.RemoteAddr = "10.1.1.1:5001"
	testutil.AssertStatus(s.T(), testutil.DoRequest(handler, second), http.StatusTooManyRequests)
}
