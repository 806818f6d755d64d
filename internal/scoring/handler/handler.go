package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miriesgo/internal/scoring/models"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/request"
)

type Service interface {
	ScoreReport(ctx context.Context, in models.ReportInput) (*models.RiskScore, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/risk-score", h.HandleRiskScore)
}

// ScoreRequest wraps a credit report. The report is whatever the report
// endpoint returned, so unknown fields are tolerated.
type ScoreRequest struct {
	Report *models.ReportInput `json:"report"`
}

func (h *Handler) HandleRiskScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode request body", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Report == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "report is required"))
		return
	}

	score, err := h.service.ScoreReport(ctx, *req.Report)
	if err != nil {
		h.logger.ErrorContext(ctx, "risk score failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}
