package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miriesgo/internal/dashboard/models"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/request"
)

type Service interface {
	Dashboard(ctx context.Context) (*models.Dashboard, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard", h.HandleDashboard)
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	dash, err := h.service.Dashboard(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "build dashboard failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dash)
}
