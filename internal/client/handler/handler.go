package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miriesgo/internal/client/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/auth"
	"miriesgo/pkg/platform/middleware/request"
)

// Service defines the client operations exposed over HTTP.
type Service interface {
	Reconcile(ctx context.Context, clientID id.ClientID, payload models.UpdatePayload) (*models.Client, error)
	Get(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	Delete(ctx context.Context, clientID id.ClientID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the client routes. Reads are open to any authenticated
// user; writes need manager or admin, deletion admin.
func (h *Handler) Register(r chi.Router) {
	r.Get("/clients", h.HandleList)
	r.Get("/clients/{id}", h.HandleGet)
	r.With(auth.RequireRole(h.logger, id.RoleAdmin, id.RoleManager)).Put("/clients/{id}", h.HandleUpdate)
	r.With(auth.RequireRole(h.logger, id.RoleAdmin)).Delete("/clients/{id}", h.HandleDelete)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	clients, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list clients failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	res := make([]*ClientResponse, 0, len(clients))
	for _, c := range clients {
		res = append(res, toClientResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	clientID, err := id.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.service.Get(ctx, clientID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get client failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClientResponse(c))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	clientID, err := id.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateClientRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Reconcile(ctx, clientID, req.ToPayload())
	if err != nil {
		h.logger.ErrorContext(ctx, "update client failed",
			"error", err,
			"request_id", requestID,
			"client_id", clientID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClientResponse(c))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	clientID, err := id.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, clientID); err != nil {
		h.logger.ErrorContext(ctx, "delete client failed",
			"error", err,
			"request_id", requestID,
			"client_id", clientID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
