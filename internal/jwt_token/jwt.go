package jwttoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
)

// AccessTokenClaims are the claims carried by access tokens. Subject holds
// the user's email, which is also the login username.
type AccessTokenClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// Subject identifies who a token is issued for.
type Subject struct {
	UserID    id.UserID
	Email     string
	Role      id.Role
	CompanyID *id.CompanyID
}

// IssuedToken is a signed token together with the values the caller needs
// for responses and revocation.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
	TTL       time.Duration
}

// JWTService handles HS256 token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
}

func NewJWTService(signingKey, issuer, audience string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
	}
}

// TokenTTL is the lifetime of issued access tokens.
func (s *JWTService) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *JWTService) GenerateAccessToken(ctx context.Context, sub Subject) (*IssuedToken, error) {
	if sub.UserID.IsNil() || sub.Email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "token subject is incomplete")
	}
	if !sub.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "token subject has no valid role")
	}

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(s.tokenTTL)
	jti := uuid.NewString()

	claims := AccessTokenClaims{
		UserID: sub.UserID.String(),
		Role:   sub.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.Email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	}
	if sub.CompanyID != nil {
		claims.CompanyID = sub.CompanyID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt, TTL: s.tokenTTL}, nil
}

// ValidateToken checks signature, algorithm, expiry, issuer and audience.
func (s *JWTService) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
