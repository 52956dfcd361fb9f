package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	certmodels "laurel/internal/certificate/models"
	"laurel/internal/coordinator"
	"laurel/pkg/domain"
	"laurel/pkg/platform/httputil"
	"laurel/pkg/requestcontext"
)

// Service defines the coordinator operations the handler exposes.
type Service interface {
	Submit(ctx context.Context, req coordinator.SubmitRequest) (*coordinator.CertificationResult, error)
	Lookup(ctx context.Context, contributionID domain.ContributionID) (*certmodels.Certificate, error)
	Stats(ctx context.Context) (*coordinator.Stats, error)
}

// Anchors defines the anchor attachment operation, served by the
// certificate registry.
type Anchors interface {
	AttachAnchor(ctx context.Context, contributionID domain.ContributionID, ref string) (*certmodels.Certificate, error)
}

// Handler wires certification endpoints to the coordinator.
type Handler struct {
	service Service
	anchors Anchors
	logger  *slog.Logger
}

// New constructs a certification handler with its dependencies.
func New(service Service, anchors Anchors, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		anchors: anchors,
		logger:  logger,
	}
}

// Register mounts certification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/certifications", h.HandleSubmit)
	r.Get("/v1/certifications/{contributionID}", h.HandleLookup)
	r.Post("/v1/certifications/{contributionID}/anchor", h.HandleAnchor)
	r.Get("/v1/stats", h.HandleStats)
}

// HandleSubmit handles POST /v1/certifications requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Submit(ctx, coordinator.SubmitRequest{
		ContributionID: req.ParsedContributionID(),
		ContributorID:  req.ParsedContributorID(),
		Metrics:        req.MetricVector(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "submission failed",
			"request_id", requestID,
			"contribution_id", req.ContributionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "submission finished",
		"request_id", requestID,
		"contribution_id", req.ContributionID,
		"status", result.Status,
		"tier", result.Tier.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusCreated
	if result.Status != coordinator.StatusCertified {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, FromResult(result))
}

// HandleLookup handles GET /v1/certifications/{contributionID} requests.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contributionID, ok := h.pathContributionID(w, r)
	if !ok {
		return
	}

	cert, err := h.service.Lookup(ctx, contributionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCertificate(cert))
}

// HandleAnchor handles POST /v1/certifications/{contributionID}/anchor requests.
func (h *Handler) HandleAnchor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	contributionID, ok := h.pathContributionID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[AnchorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cert, err := h.anchors.AttachAnchor(ctx, contributionID, req.Ref)
	if err != nil {
		h.logger.ErrorContext(ctx, "anchor attach failed",
			"request_id", requestID,
			"contribution_id", contributionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromCertificate(cert))
}

// HandleStats handles GET /v1/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &StatsResponse{
		TotalCertified:  stats.TotalCertified,
		TokensAllocated: stats.TokensAllocated,
	})
}

func (h *Handler) pathContributionID(w http.ResponseWriter, r *http.Request) (domain.ContributionID, bool) {
	contributionID, err := domain.ParseContributionID(chi.URLParam(r, "contributionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ContributionID{}, false
	}
	return contributionID, true
}
