package jwttoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
)

const signingKey = "test-signing-key-0123456789"

func newService(ttl time.Duration) *JWTService {
	return NewJWTService(signingKey, "miriesgo", "miriesgo-api", ttl)
}

func managerSubject() Subject {
	company := id.CompanyID(2)
	return Subject{UserID: 5, Email: "gerente@finexpress.co", Role: id.RoleManager, CompanyID: &company}
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newService(8 * time.Hour)

	issued, err := svc.GenerateAccessToken(context.Background(), managerSubject())
	require.NoError(t, err)
	require.NotEmpty(t, issued.JTI)
	assert.Equal(t, 8*time.Hour, issued.TTL)

	claims, err := svc.ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "5", claims.UserID)
	assert.Equal(t, "gerente@finexpress.co", claims.Subject)
	assert.Equal(t, "manager", claims.Role)
	assert.Equal(t, "2", claims.CompanyID)
	assert.Equal(t, issued.JTI, claims.ID)

	mw := ToMiddlewareClaims(claims)
	assert.Equal(t, issued.JTI, mw.JTI)
	assert.WithinDuration(t, issued.ExpiresAt, mw.ExpiresAt, time.Second)
}

func TestEachTokenGetsAFreshJTI(t *testing.T) {
	svc := newService(time.Hour)
	a, err := svc.GenerateAccessToken(context.Background(), managerSubject())
	require.NoError(t, err)
	b, err := svc.GenerateAccessToken(context.Background(), managerSubject())
	require.NoError(t, err)
	assert.NotEqual(t, a.JTI, b.JTI)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := newService(time.Minute)
	ctx := requestcontext.WithTime(context.Background(), time.Now().Add(-2*time.Hour))

	issued, err := svc.GenerateAccessToken(ctx, managerSubject())
	require.NoError(t, err)

	_, err = svc.ValidateToken(issued.Token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.ErrorContains(t, err, "token expired")
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	svc := newService(time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorContains(t, err, "invalid token")
	})

	t.Run("other audience", func(t *testing.T) {
		other := NewJWTService(signingKey, "miriesgo", "someone-else", time.Hour)
		issued, err := other.GenerateAccessToken(context.Background(), managerSubject())
		require.NoError(t, err)
		_, err = svc.ValidateToken(issued.Token)
		assert.Error(t, err)
	})

	t.Run("other signing key", func(t *testing.T) {
		other := NewJWTService("another-signing-key-987654", "miriesgo", "miriesgo-api", time.Hour)
		issued, err := other.GenerateAccessToken(context.Background(), managerSubject())
		require.NoError(t, err)
		_, err = svc.ValidateToken(issued.Token)
		assert.Error(t, err)
	})

	t.Run("alg none", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{UserID: "1", Role: "admin"})
		signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(signed)
		assert.Error(t, err)
	})
}

func TestGenerateRejectsIncompleteSubject(t *testing.T) {
	svc := newService(time.Hour)
	_, err := svc.GenerateAccessToken(context.Background(), Subject{UserID: 1, Email: "a@b.co", Role: "root"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
