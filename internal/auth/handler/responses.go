package handler

import (
	"time"

	"miriesgo/internal/auth/models"
)

type UserResponse struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	CompanyID   *int64     `json:"company_id"`
	CompanyName *string    `json:"company_name"`
	LastLogin   *time.Time `json:"last_login"`
}

type TokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	User        *UserResponse `json:"user"`
}

func toUserResponse(u *models.User) *UserResponse {
	res := &UserResponse{
		ID:        int64(u.ID),
		FullName:  u.FullName,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role.String(),
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
	}
	if u.CompanyID != nil {
		c := int64(*u.CompanyID)
		res.CompanyID = &c
	}
	if u.CompanyName != "" {
		name := u.CompanyName
		res.CompanyName = &name
	}
	return res
}

func toTokenResponse(t *models.Token) *TokenResponse {
	return &TokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(t.ExpiresIn / time.Second),
		User:        toUserResponse(t.User),
	}
}

type SessionResponse struct {
	ID           int64     `json:"id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type SessionsResponse struct {
	ActiveSessions int                `json:"active_sessions"`
	Sessions       []*SessionResponse `json:"sessions"`
}

type UserSessionsResponse struct {
	UserID int64 `json:"user_id"`
	*SessionsResponse
}

func toSessionsResponse(sessions []*models.Session) *SessionsResponse {
	res := &SessionsResponse{
		ActiveSessions: len(sessions),
		Sessions:       make([]*SessionResponse, 0, len(sessions)),
	}
	for _, sess := range sessions {
		res.Sessions = append(res.Sessions, &SessionResponse{
			ID:           int64(sess.ID),
			IPAddress:    sess.IPAddress,
			UserAgent:    sess.UserAgent,
			LastActivity: sess.LastActivity,
			ExpiresAt:    sess.ExpiresAt,
			CreatedAt:    sess.CreatedAt,
		})
	}
	return res
}
