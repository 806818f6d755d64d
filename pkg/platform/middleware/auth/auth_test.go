package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "miriesgo/pkg/domain"
	"miriesgo/pkg/requestcontext"
)

type MockJWTValidator struct {
	mock.Mock
}

func (m *MockJWTValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*JWTClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTokenRevocationChecker struct {
	mock.Mock
}

func (m *MockTokenRevocationChecker) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

// recordingHandler captures whether it ran and with which context.
type recordingHandler struct {
	called  bool
	context context.Context
}

func (m *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareTestSuite struct {
	suite.Suite
	validator   *MockJWTValidator
	revoker     *MockTokenRevocationChecker
	logger      *slog.Logger
	nextHandler *recordingHandler
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	s.validator = new(MockJWTValidator)
	s.revoker = new(MockTokenRevocationChecker)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.nextHandler = &recordingHandler{}
}

func (s *AuthMiddlewareTestSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
	s.revoker.AssertExpectations(s.T())
}

func (s *AuthMiddlewareTestSuite) serve(checker TokenRevocationChecker, authHeader string) *httptest.ResponseRecorder {
	handler := RequireAuth(s.validator, checker, s.logger)(s.nextHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func analystClaims() *JWTClaims {
	return &JWTClaims{
		UserID:    "7",
		Email:     "ana@miriesgo.co",
		Role:      "analyst",
		CompanyID: "3",
		JTI:       "jti-123",
		ExpiresAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *AuthMiddlewareTestSuite) TestValidTokenPopulatesPrincipal() {
	s.validator.On("ValidateToken", "valid-token").Return(analystClaims(), nil)
	s.revoker.On("IsTokenRevoked", mock.Anything, "jti-123").Return(false, nil)

	w := s.serve(s.revoker, "Bearer valid-token")

	s.Require().True(s.nextHandler.called)
	s.Equal(http.StatusOK, w.Code)

	p, ok := requestcontext.GetPrincipal(s.nextHandler.context)
	s.Require().True(ok)
	s.Equal(id.UserID(7), p.UserID)
	s.Equal(id.RoleAnalyst, p.Role)
	s.Equal("ana@miriesgo.co", p.Email)
	s.Require().NotNil(p.CompanyID)
	s.Equal(id.CompanyID(3), *p.CompanyID)
	s.Equal("jti-123", p.JTI)
}

func (s *AuthMiddlewareTestSuite) TestAdminWithoutCompany() {
	claims := analystClaims()
	claims.Role = "admin"
	claims.CompanyID = ""
	s.validator.On("ValidateToken", "valid-token").Return(claims, nil)

	s.serve(nil, "Bearer valid-token")

	p, ok := requestcontext.GetPrincipal(s.nextHandler.context)
	s.Require().True(ok)
	s.Nil(p.CompanyID)
	s.Equal(id.RoleAdmin, p.Role)
}

func (s *AuthMiddlewareTestSuite) TestRevokedToken() {
	s.validator.On("ValidateToken", "valid-token").Return(analystClaims(), nil)
	s.revoker.On("IsTokenRevoked", mock.Anything, "jti-123").Return(true, nil)

	w := s.serve(s.revoker, "Bearer valid-token")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"error":"unauthorized","error_description":"Token has been revoked"}`, w.Body.String())
}

func (s *AuthMiddlewareTestSuite) TestMissingJTIIsTreatedAsRevoked() {
	claims := analystClaims()
	claims.JTI = ""
	s.validator.On("ValidateToken", "valid-token").Return(claims, nil)

	w := s.serve(s.revoker, "Bearer valid-token")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *AuthMiddlewareTestSuite) TestRevocationStoreFailure() {
	s.validator.On("ValidateToken", "valid-token").Return(analystClaims(), nil)
	s.revoker.On("IsTokenRevoked", mock.Anything, "jti-123").Return(false, errors.New("redis: connection refused"))

	w := s.serve(s.revoker, "Bearer valid-token")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.JSONEq(`{"error":"internal_error","error_description":"Failed to validate token"}`, w.Body.String())
}

func (s *AuthMiddlewareTestSuite) TestMalformedClaims() {
	cases := map[string]func(c *JWTClaims){
		"user id not numeric": func(c *JWTClaims) { c.UserID = "abc" },
		"unknown role":        func(c *JWTClaims) { c.Role = "root" },
		"bad company id":      func(c *JWTClaims) { c.CompanyID = "-1" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			s.SetupTest()
			claims := analystClaims()
			mutate(claims)
			s.validator.On("ValidateToken", "valid-token").Return(claims, nil)

			w := s.serve(nil, "Bearer valid-token")

			s.False(s.nextHandler.called)
			s.Equal(http.StatusUnauthorized, w.Code)
			s.JSONEq(`{"error":"unauthorized","error_description":"Invalid or expired token"}`, w.Body.String())
		})
	}
}

func (s *AuthMiddlewareTestSuite) TestInvalidToken() {
	s.validator.On("ValidateToken", "expired").Return(nil, errors.New("token expired"))

	w := s.serve(nil, "Bearer expired")

	s.False(s.nextHandler.called)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("application/json", w.Header().Get("Content-Type"))
}

func (s *AuthMiddlewareTestSuite) TestMalformedAuthorizationHeader() {
	for _, header := range []string{"", "token-without-bearer", "Basic dXNlcjpwYXNz", "bearer token", "Bearer "} {
		s.Run(header, func() {
			s.nextHandler = &recordingHandler{}
			w := s.serve(nil, header)

			s.False(s.nextHandler.called)
			s.Equal(http.StatusUnauthorized, w.Code)
			s.JSONEq(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`, w.Body.String())
		})
	}
}

func TestRequireRole(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := RequireRole(logger, id.RoleAdmin, id.RoleManager)

	serve := func(ctx context.Context) (*httptest.ResponseRecorder, bool) {
		called := false
		handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		req := httptest.NewRequest(http.MethodPut, "/api/loans/1", nil).WithContext(ctx)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w, called
	}

	t.Run("allowed role passes", func(t *testing.T) {
		ctx := requestcontext.WithPrincipal(context.Background(), requestcontext.Principal{UserID: 1, Role: id.RoleManager})
		_, called := serve(ctx)
		assert.True(t, called)
	})

	t.Run("analyst is forbidden", func(t *testing.T) {
		ctx := requestcontext.WithPrincipal(context.Background(), requestcontext.Principal{UserID: 1, Role: id.RoleAnalyst})
		w, called := serve(ctx)
		require.False(t, called)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		w, called := serve(context.Background())
		require.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
