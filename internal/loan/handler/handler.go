package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miriesgo/internal/loan/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/auth"
	"miriesgo/pkg/platform/middleware/request"
)

// Service defines the loan operations exposed over HTTP.
type Service interface {
	UpdateLoan(ctx context.Context, loanID id.LoanID, patch models.LoanPatch) (*models.Loan, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(h.logger, id.RoleAdmin, id.RoleManager)).Put("/loans/{id}", h.HandleUpdate)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	loanID, err := id.ParseLoanID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateLoanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	loan, err := h.service.UpdateLoan(ctx, loanID, patch)
	if err != nil {
		h.logger.ErrorContext(ctx, "update loan failed",
			"error", err,
			"request_id", requestID,
			"loan_id", loanID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLoanResponse(loan))
}
