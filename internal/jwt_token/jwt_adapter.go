package jwttoken

import (
	"miriesgo/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *AccessTokenClaims) *auth.JWTClaims {
	out := &auth.JWTClaims{
		UserID:    claims.UserID,
		Email:     claims.Subject,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
		JTI:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out
}

// JWTServiceAdapter exposes JWTService through the auth middleware's
// JWTValidator interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
