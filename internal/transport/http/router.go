// Package httptransport assembles the HTTP surface: routes, the middleware
// chain, and operational endpoints. Business logic stays in the domain
// handlers it mounts.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coordhandler "laurel/internal/coordinator/handler"
	epochhandler "laurel/internal/epoch/handler"
	platformmetrics "laurel/internal/platform/metrics"
	"laurel/internal/platform/middleware"
	"laurel/internal/ratelimit"
	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/audit"
	"laurel/pkg/platform/httputil"
	"laurel/pkg/requestcontext"
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger         *slog.Logger
	Validator      *middleware.TokenValidator
	HTTPMetrics    *platformmetrics.HTTP
	Certifications *coordhandler.Handler
	Epochs         *epochhandler.Handler
	SubmitLimiter  *ratelimit.SlidingWindow

	// Audit, when set, exposes the operator audit trail read.
	Audit audit.Store

	// Health pings the storage layer. nil means no dependency to check.
	Health func(ctx context.Context) error
}

// NewRouter wires all endpoints. Reads are public; writes sit behind the
// bearer-token middleware with per-route capability checks.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/v1/certifications/{contributionID}", deps.Certifications.HandleLookup)
	r.Get("/v1/stats", deps.Certifications.HandleStats)
	r.Get("/v1/epochs/current", deps.Epochs.HandleCurrent)
	r.Get("/v1/epochs", deps.Epochs.HandleList)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Authenticate(deps.Validator, deps.Logger))

		submit := pr.With(middleware.RequireRole(requestcontext.RoleCoordinator))
		if deps.SubmitLimiter != nil {
			submit = submit.With(ratelimit.Middleware(deps.SubmitLimiter, deps.Logger))
		}
		submit.Post("/v1/certifications", deps.Certifications.HandleSubmit)

		pr.With(middleware.RequireRole(requestcontext.RoleAnchorer)).
			Post("/v1/certifications/{contributionID}/anchor", deps.Certifications.HandleAnchor)
		operator := pr.With(middleware.RequireRole(requestcontext.RoleOperator))
		operator.Post("/v1/epochs/advance", deps.Epochs.HandleAdvance)
		if deps.Audit != nil {
			operator.Get("/v1/audit/events", handleAuditEvents(deps.Audit))
		}
	})

	return r
}

func handleHealth(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"reason": err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleAuditEvents serves the most recent audit events, newest last.
func handleAuditEvents(store audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 1000 {
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "limit must be an integer between 1 and 1000"))
				return
			}
			limit = parsed
		}
		events, err := store.ListRecent(r.Context(), limit)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, events)
	}
}
