package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"miriesgo/internal/company/models"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/auth"
	"miriesgo/pkg/platform/middleware/request"
)

type Service interface {
	List(ctx context.Context, f models.ListFilter) (*models.Page, error)
	Get(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	Create(ctx context.Context, nc models.NewCompany) (*models.Company, error)
	Update(ctx context.Context, companyID id.CompanyID, patch models.Patch) (*models.Company, error)
	Deactivate(ctx context.Context, companyID id.CompanyID) error
	Users(ctx context.Context, companyID id.CompanyID) (*models.Roster, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the company routes. Everything is admin-only except
// reading one's own company and its users.
func (h *Handler) Register(r chi.Router) {
	admin := auth.RequireRole(h.logger, id.RoleAdmin)
	r.With(admin).Get("/companies", h.HandleList)
	r.Get("/companies/{id}", h.HandleGet)
	r.Get("/companies/{id}/users", h.HandleUsers)
	r.With(admin).Post("/companies", h.HandleCreate)
	r.With(admin).Put("/companies/{id}", h.HandleUpdate)
	r.With(admin).Delete("/companies/{id}", h.HandleDelete)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	f, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.service.List(ctx, f)
	if err != nil {
		h.logger.ErrorContext(ctx, "list companies failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(page))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.authorize(ctx, requestID, companyID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.Get(ctx, companyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get company failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCompanyResponse(c))
}

func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.authorize(ctx, requestID, companyID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	roster, err := h.service.Users(ctx, companyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list company users failed",
			"error", err,
			"request_id", requestID,
			"company_id", companyID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUsersResponse(roster))
}

// authorize lets admins read any company and everyone else only their own.
func (h *Handler) authorize(ctx context.Context, requestID string, companyID id.CompanyID) error {
	principal, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		return err
	}
	if principal.Role != id.RoleAdmin && (principal.CompanyID == nil || *principal.CompanyID != companyID) {
		h.logger.WarnContext(ctx, "company access denied",
			"request_id", requestID,
			"company_id", companyID.String(),
		)
		return dErrors.New(dErrors.CodeForbidden, "not allowed to view this company")
	}
	return nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateCompanyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Create(ctx, req.ToNewCompany())
	if err != nil {
		h.logger.ErrorContext(ctx, "create company failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCompanyResponse(c))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateCompanyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Update(ctx, companyID, req.ToPatch())
	if err != nil {
		h.logger.ErrorContext(ctx, "update company failed",
			"error", err,
			"request_id", requestID,
			"company_id", companyID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCompanyResponse(c))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	companyID, err := id.ParseCompanyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Deactivate(ctx, companyID); err != nil {
		h.logger.ErrorContext(ctx, "deactivate company failed",
			"error", err,
			"request_id", requestID,
			"company_id", companyID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "company deactivated"})
}

// parseListFilter reads page, size, search and status. Without an explicit
// status only active companies are listed unless active_only=false.
func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	f := models.ListFilter{Search: q.Get("search")}

	var err error
	if f.Page, err = intParam(q.Get("page")); err != nil {
		return f, dErrors.New(dErrors.CodeBadRequest, "page must be a number")
	}
	if f.Size, err = intParam(q.Get("size")); err != nil {
		return f, dErrors.New(dErrors.CodeBadRequest, "size must be a number")
	}

	if raw := q.Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, err.Error())
		}
		f.Status = &st
	} else if q.Get("active_only") != "false" {
		active := models.StatusActive
		f.Status = &active
	}
	return f, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
