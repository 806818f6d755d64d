package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"miriesgo/internal/report/models"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/request"
)

type Service interface {
	BuildReport(ctx context.Context, identifier string) (*models.CreditReport, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/{identifier}", h.HandleGetReport)
}

func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	identifier := strings.TrimSpace(chi.URLParam(r, "identifier"))
	if identifier == "" || len(identifier) > 20 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identifier"))
		return
	}

	report, err := h.service.BuildReport(ctx, identifier)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.InfoContext(ctx, "credit report not found", "request_id", requestID)
		} else {
			h.logger.ErrorContext(ctx, "build report failed", "error", err, "request_id", requestID)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
