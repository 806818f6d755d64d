package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miriesgo/internal/auth/models"
	"miriesgo/internal/auth/service"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/httputil"
	"miriesgo/pkg/platform/middleware/auth"
	"miriesgo/pkg/platform/middleware/request"
)

type Service interface {
	Login(ctx context.Context, email, password string) (*models.Token, error)
	Me(ctx context.Context) (*models.User, error)
	Refresh(ctx context.Context) (*models.Token, error)
	Logout(ctx context.Context) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
	CreateUser(ctx context.Context, in service.CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, userID id.UserID, patch models.UserPatch, password *string) (*models.User, error)
	DeleteUser(ctx context.Context, userID id.UserID) error
	ResetPassword(ctx context.Context, userID id.UserID, password string) error
	Sessions(ctx context.Context) ([]*models.Session, error)
	UserSessions(ctx context.Context, userID id.UserID) ([]*models.Session, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the routes that need no token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// Register mounts the authenticated session and user administration routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/me", h.HandleMe)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/sessions", h.HandleSessions)
	r.Get("/users/{id}/sessions", h.HandleUserSessions)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(h.logger, id.RoleAdmin))
		r.Get("/users", h.HandleListUsers)
		r.Get("/users/{id}", h.HandleGetUser)
		r.Post("/users", h.HandleCreateUser)
		r.Put("/users/{id}", h.HandleUpdateUser)
		r.Delete("/users/{id}", h.HandleDeleteUser)
		r.Post("/users/{id}/reset-password", h.HandleResetPassword)
	})
}

// HandleLogin accepts a JSON body or the OAuth2 password form.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	var req *LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
			return
		}
		req = &LoginRequest{Username: r.PostFormValue("username"), Password: r.PostFormValue("password")}
		if err := httputil.PrepareRequest(req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	} else {
		var ok bool
		if req, ok = httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID); !ok {
			return
		}
	}

	token, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "login failed", "error", err, "request_id", requestID)
		} else {
			h.logger.InfoContext(ctx, "login rejected", "error", err, "request_id", requestID)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTokenResponse(token))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	user, err := h.service.Me(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "load current user failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	token, err := h.service.Refresh(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "token refresh failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTokenResponse(token))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	if err := h.service.Logout(ctx); err != nil {
		h.logger.ErrorContext(ctx, "logout failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	users, err := h.service.ListUsers(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list users failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	res := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		res = append(res, toUserResponse(u))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.GetUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get user failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.CreateUser(ctx, req.ToInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "create user failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.UpdateUser(ctx, userID, req.ToPatch(), req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "update user failed",
			"error", err,
			"request_id", requestID,
			"user_id", userID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteUser(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "delete user failed",
			"error", err,
			"request_id", requestID,
			"user_id", userID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResetPasswordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.ResetPassword(ctx, userID, req.NewPassword); err != nil {
		h.logger.ErrorContext(ctx, "reset password failed",
			"error", err,
			"request_id", requestID,
			"user_id", userID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	sessions, err := h.service.Sessions(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list sessions failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionsResponse(sessions))
}

// HandleUserSessions is open to every role; the service limits non-admins to
// their own sessions.
func (h *Handler) HandleUserSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessions, err := h.service.UserSessions(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list user sessions failed",
			"error", err,
			"request_id", requestID,
			"user_id", userID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	res := &UserSessionsResponse{UserID: int64(userID), SessionsResponse: toSessionsResponse(sessions)}
	httputil.WriteJSON(w, http.StatusOK, res)
}
