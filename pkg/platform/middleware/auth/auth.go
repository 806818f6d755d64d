package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	id "miriesgo/pkg/domain"
	"miriesgo/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID    string
	Email     string
	Role      string
	CompanyID string // empty for users not attached to a company
	JTI       string
	ExpiresAt time.Time
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

type revocationResult int

const (
	revocationOK revocationResult = iota
	revocationMissingJTI
	revocationRevoked
	revocationError
)

func checkRevocation(ctx context.Context, checker TokenRevocationChecker, jti string, logger *slog.Logger) revocationResult {
	if checker == nil {
		return revocationOK
	}
	requestID := requestcontext.RequestID(ctx)

	if jti == "" {
		logger.WarnContext(ctx, "unauthorized access - missing token jti",
			"request_id", requestID,
		)
		return revocationMissingJTI
	}

	revoked, err := checker.IsTokenRevoked(ctx, jti)
	if err != nil {
		logger.ErrorContext(ctx, "failed to check token revocation",
			"error", err,
			"request_id", requestID,
		)
		return revocationError
	}
	if revoked {
		logger.WarnContext(ctx, "unauthorized access - token revoked",
			"jti", jti,
			"request_id", requestID,
		)
		return revocationRevoked
	}
	return revocationOK
}

// toPrincipal converts string claims into typed identifiers.
func toPrincipal(claims *JWTClaims) (requestcontext.Principal, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return requestcontext.Principal{}, fmt.Errorf("invalid user_id: %w", err)
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return requestcontext.Principal{}, fmt.Errorf("invalid role: %w", err)
	}

	var companyID *id.CompanyID
	if claims.CompanyID != "" {
		c, err := id.ParseCompanyID(claims.CompanyID)
		if err != nil {
			return requestcontext.Principal{}, fmt.Errorf("invalid company_id: %w", err)
		}
		companyID = &c
	}

	return requestcontext.Principal{
		UserID:    userID,
		Email:     claims.Email,
		Role:      role,
		CompanyID: companyID,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// RequireAuth returns middleware that validates bearer tokens, rejects revoked
// ones and stores the resolved Principal in the request context.
func RequireAuth(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			switch checkRevocation(ctx, revocationChecker, claims.JTI, logger) {
			case revocationMissingJTI, revocationRevoked:
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Token has been revoked")
				return
			case revocationError:
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to validate token")
				return
			}

			principal, err := toPrincipal(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed token claims",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

// RequireRole admits only principals holding one of roles. It must run after
// RequireAuth.
func RequireRole(logger *slog.Logger, roles ...id.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := requestcontext.GetPrincipal(ctx)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !slices.Contains(roles, principal.Role) {
				logger.WarnContext(ctx, "forbidden - insufficient role",
					"user_id", principal.UserID,
					"role", principal.Role,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
