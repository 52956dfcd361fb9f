package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"laurel/internal/epoch/models"
	"laurel/internal/epoch/service"
	"laurel/pkg/platform/httputil"
	"laurel/pkg/requestcontext"
)

// Service defines the epoch operations the handler exposes.
type Service interface {
	Current(ctx context.Context) (*models.Epoch, error)
	List(ctx context.Context) ([]*models.Epoch, error)
	Advance(ctx context.Context, trigger service.Trigger) (*models.Epoch, error)
}

// Handler wires epoch endpoints to the ledger.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an epoch handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts epoch endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/epochs/current", h.HandleCurrent)
	r.Get("/v1/epochs", h.HandleList)
	r.Post("/v1/epochs/advance", h.HandleAdvance)
}

// HandleCurrent handles GET /v1/epochs/current requests.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	epoch, err := h.service.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEpoch(epoch))
}

// HandleList handles GET /v1/epochs requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	epochs, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEpochs(epochs))
}

// HandleAdvance handles POST /v1/epochs/advance requests. The governance
// trigger closes the active epoch regardless of remaining budget.
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	epoch, err := h.service.Advance(ctx, service.TriggerGovernance)
	if err != nil {
		h.logger.ErrorContext(ctx, "governance epoch advance failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "epoch advanced by governance",
		"request_id", requestID,
		"epoch", epoch.Index,
	)
	httputil.WriteJSON(w, http.StatusOK, FromEpoch(epoch))
}
