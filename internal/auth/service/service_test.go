package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"miriesgo/internal/audit"
	"miriesgo/internal/auth/models"
	"miriesgo/internal/auth/store/revocation"
	"miriesgo/internal/auth/store/session"
	"miriesgo/internal/auth/store/user"
	jwttoken "miriesgo/internal/jwt_token"
	"miriesgo/internal/platform/metrics"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
	"miriesgo/pkg/secrets"
)

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type AuthServiceSuite struct {
	suite.Suite
	users    *user.InMemoryUserStore
	sessions *session.InMemoryStore
	revoked  *revocation.InMemoryList
	audit    *audit.InMemoryStore
	metrics  *metrics.Metrics
	jwt      *jwttoken.JWTService
	svc      *Service
	now      time.Time
	ctx      context.Context
	ana      *models.User
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.users = user.NewInMemoryUserStore()
	s.sessions = session.NewInMemory()
	s.revoked = revocation.NewInMemoryList()
	s.audit = audit.NewInMemoryStore()
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.jwt = jwttoken.NewJWTService("test-signing-key-0123456789", "miriesgo", "miriesgo-api", time.Hour)
	s.svc = New(s.users, s.jwt, s.revoked,
		WithLogger(logger),
		WithMetrics(s.metrics),
		WithAuditor(audit.NewPublisher(s.audit, audit.WithPublisherLogger(logger))),
		WithSessions(s.sessions),
	)

	s.now = time.Now().UTC().Truncate(time.Second)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithClientMetadata(s.ctx, "10.1.2.3", "Mozilla/5.0")

	hash, err := secrets.Hash("correct-horse")
	s.Require().NoError(err)
	s.ana, err = s.users.Create(s.ctx, models.NewUser{
		FullName: "Ana Analista", NationalIdentifier: "1001", Email: "ana@miriesgo.co",
		PasswordHash: hash, Role: id.RoleAnalyst,
	})
	s.Require().NoError(err)
}

func (s *AuthServiceSuite) principalCtx(tok *models.Token) context.Context {
	claims, err := s.jwt.ValidateToken(tok.AccessToken)
	s.Require().NoError(err)
	return requestcontext.WithPrincipal(s.ctx, requestcontext.Principal{
		UserID:    s.ana.ID,
		Email:     claims.Subject,
		Role:      id.RoleAnalyst,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func (s *AuthServiceSuite) TestLoginSuccess() {
	tok, err := s.svc.Login(s.ctx, " ANA@miriesgo.co ", "correct-horse")
	s.Require().NoError(err)
	s.NotEmpty(tok.AccessToken)
	s.Equal(time.Hour, tok.ExpiresIn)

	claims, err := s.jwt.ValidateToken(tok.AccessToken)
	s.Require().NoError(err)
	s.Equal("ana@miriesgo.co", claims.Subject)
	s.Equal("analyst", claims.Role)

	stored, err := s.users.FindByID(s.ctx, s.ana.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.LastLogin)
	s.Equal(s.now, *stored.LastLogin)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Logins))
}

func (s *AuthServiceSuite) TestLockoutAfterFiveFailures() {
	for i := range 4 {
		_, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "wrong")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "attempt %d", i+1)
	}
	_, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "wrong")
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))

	_, err = s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.True(dErrors.HasCode(err, dErrors.CodeLocked), "correct password is refused while locked")

	later := requestcontext.WithTime(s.ctx, s.now.Add(31*time.Minute))
	_, err = s.svc.Login(later, "ana@miriesgo.co", "correct-horse")
	s.NoError(err)

	stored, err := s.users.FindByID(s.ctx, s.ana.ID)
	s.Require().NoError(err)
	s.Zero(stored.FailedLoginAttempts)
	s.Nil(stored.LockedUntil)

	entries, err := s.audit.ListByUser(s.ctx, s.ana.ID, 0)
	s.Require().NoError(err)
	var locked int
	for _, e := range entries {
		if e.Action == audit.ActionAccountLocked {
			locked++
		}
	}
	s.Equal(1, locked)
}

func (s *AuthServiceSuite) TestConcurrentFailuresStillLock() {
	var (
		wg     sync.WaitGroup
		locked atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "wrong")
			if dErrors.HasCode(err, dErrors.CodeLocked) {
				locked.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Positive(locked.Load())
	stored, err := s.users.FindByID(s.ctx, s.ana.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.LockedUntil)

	_, err = s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
}

func (s *AuthServiceSuite) TestSuccessResetsCounter() {
	for range 3 {
		_, _ = s.svc.Login(s.ctx, "ana@miriesgo.co", "wrong")
	}
	_, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)
	for range 4 {
		_, err = s.svc.Login(s.ctx, "ana@miriesgo.co", "wrong")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	}
}

func (s *AuthServiceSuite) TestUnknownAndInactive() {
	_, err := s.svc.Login(s.ctx, "ghost@miriesgo.co", "whatever")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	inactive := false
	_, err = s.svc.UpdateUser(s.ctx, s.ana.ID, models.UserPatch{IsActive: &inactive}, nil)
	s.Require().NoError(err)
	_, err = s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AuthServiceSuite) TestRateLimited() {
	svc := New(s.users, s.jwt, s.revoked, WithLimiter(denyAll{}))
	_, err := svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
}

func (s *AuthServiceSuite) TestLogoutRevokes() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)
	ctx := s.principalCtx(tok)
	p, _ := requestcontext.GetPrincipal(ctx)

	revoked, err := s.svc.IsTokenRevoked(ctx, p.JTI)
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.svc.Logout(ctx))
	revoked, err = s.svc.IsTokenRevoked(ctx, p.JTI)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *AuthServiceSuite) TestRefreshRotates() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)
	ctx := s.principalCtx(tok)
	old, _ := requestcontext.GetPrincipal(ctx)

	fresh, err := s.svc.Refresh(ctx)
	s.Require().NoError(err)
	s.NotEqual(tok.AccessToken, fresh.AccessToken)

	revoked, err := s.svc.IsTokenRevoked(ctx, old.JTI)
	s.Require().NoError(err)
	s.True(revoked)

	me, err := s.svc.Me(ctx)
	s.Require().NoError(err)
	s.Equal("ana@miriesgo.co", me.Email)
}

func (s *AuthServiceSuite) TestUserAdmin() {
	company := id.CompanyID(2)
	created, err := s.svc.CreateUser(s.ctx, CreateUserInput{
		CompanyID: &company, FullName: "Gabriel Gerente", NationalIdentifier: "2002",
		Email: "Gabriel@Miriesgo.co", Password: "s3cret-pass", Role: id.RoleManager,
	})
	s.Require().NoError(err)
	s.Equal("gabriel@miriesgo.co", created.Email)
	s.NotEqual("s3cret-pass", created.PasswordHash)

	_, err = s.svc.CreateUser(s.ctx, CreateUserInput{
		FullName: "Dup", NationalIdentifier: "9", Email: "gabriel@miriesgo.co", Password: "s3cret-pass", Role: id.RoleAnalyst,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.svc.CreateUser(s.ctx, CreateUserInput{Email: "x@y.co", Password: "short", Role: id.RoleAnalyst})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	admin := id.RoleAdmin
	newPwd := "another-pass"
	updated, err := s.svc.UpdateUser(s.ctx, created.ID, models.UserPatch{Role: &admin, ClearCompany: true}, &newPwd)
	s.Require().NoError(err)
	s.Equal(id.RoleAdmin, updated.Role)
	s.Nil(updated.CompanyID)

	_, err = s.svc.Login(s.ctx, "gabriel@miriesgo.co", "another-pass")
	s.NoError(err)

	_, err = s.svc.UpdateUser(s.ctx, 99, models.UserPatch{Role: &admin}, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	all, err := s.svc.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *AuthServiceSuite) adminCtx() context.Context {
	hash, err := secrets.Hash("admin-pass")
	s.Require().NoError(err)
	admin, err := s.users.Create(s.ctx, models.NewUser{
		FullName: "Adela Admin", NationalIdentifier: "3003", Email: "adela@miriesgo.co",
		PasswordHash: hash, Role: id.RoleAdmin,
	})
	s.Require().NoError(err)
	return requestcontext.WithPrincipal(s.ctx, requestcontext.Principal{
		UserID: admin.ID, Email: admin.Email, Role: id.RoleAdmin,
	})
}

func (s *AuthServiceSuite) isRevoked(tok *models.Token) bool {
	claims, err := s.jwt.ValidateToken(tok.AccessToken)
	s.Require().NoError(err)
	revoked, err := s.svc.IsTokenRevoked(s.ctx, claims.ID)
	s.Require().NoError(err)
	return revoked
}

func (s *AuthServiceSuite) TestLoginRecordsSession() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)

	open, err := s.svc.Sessions(s.principalCtx(tok))
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(tok.JTI, open[0].JTI)
	s.Equal("10.1.2.3", open[0].IPAddress)
	s.NotEmpty(open[0].UserAgent)
	s.Equal(s.now, open[0].CreatedAt)
	s.Equal(tok.ExpiresAt, open[0].ExpiresAt)
}

func (s *AuthServiceSuite) TestExpiredSessionsAreHidden() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)

	later := requestcontext.WithTime(s.principalCtx(tok), s.now.Add(2*time.Hour))
	open, err := s.svc.Sessions(later)
	s.Require().NoError(err)
	s.Empty(open)
}

func (s *AuthServiceSuite) TestLogoutClosesEverySession() {
	first, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)
	second, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)

	open, err := s.svc.Sessions(s.principalCtx(first))
	s.Require().NoError(err)
	s.Len(open, 2)

	s.Require().NoError(s.svc.Logout(s.principalCtx(first)))
	s.True(s.isRevoked(first))
	s.True(s.isRevoked(second), "tokens of other sessions are revoked too")

	open, err = s.svc.Sessions(s.principalCtx(second))
	s.Require().NoError(err)
	s.Empty(open)
}

func (s *AuthServiceSuite) TestRefreshMovesSession() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)

	fresh, err := s.svc.Refresh(s.principalCtx(tok))
	s.Require().NoError(err)

	open, err := s.svc.Sessions(s.principalCtx(fresh))
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(fresh.JTI, open[0].JTI)
}

func (s *AuthServiceSuite) TestUserSessionsAccess() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)
	anaCtx := s.principalCtx(tok)

	own, err := s.svc.UserSessions(anaCtx, s.ana.ID)
	s.Require().NoError(err)
	s.Len(own, 1)

	adminCtx := s.adminCtx()
	_, err = s.svc.UserSessions(anaCtx, s.ana.ID+1)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	viewed, err := s.svc.UserSessions(adminCtx, s.ana.ID)
	s.Require().NoError(err)
	s.Len(viewed, 1)

	_, err = s.svc.UserSessions(adminCtx, 99)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AuthServiceSuite) TestDeleteUser() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)
	adminCtx := s.adminCtx()
	admin, _ := requestcontext.GetPrincipal(adminCtx)

	err = s.svc.DeleteUser(adminCtx, admin.UserID)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	err = s.svc.DeleteUser(adminCtx, 99)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Require().NoError(s.svc.DeleteUser(adminCtx, s.ana.ID))

	stored, err := s.users.FindByID(s.ctx, s.ana.ID)
	s.Require().NoError(err)
	s.False(stored.IsActive)
	s.True(s.isRevoked(tok))

	_, err = s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	entries, err := s.audit.ListByUser(s.ctx, admin.UserID, 0)
	s.Require().NoError(err)
	s.Require().NotEmpty(entries)
	s.Equal(audit.ActionUserDeleted, entries[0].Action)
	s.Equal(s.ana.ID.String(), entries[0].RecordID)
}

func (s *AuthServiceSuite) TestResetPassword() {
	tok, err := s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.Require().NoError(err)
	adminCtx := s.adminCtx()

	err = s.svc.ResetPassword(adminCtx, s.ana.ID, "short")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = s.svc.ResetPassword(adminCtx, 99, "brand-new-pass")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Require().NoError(s.svc.ResetPassword(adminCtx, s.ana.ID, "brand-new-pass"))
	s.True(s.isRevoked(tok))

	open, err := s.svc.UserSessions(adminCtx, s.ana.ID)
	s.Require().NoError(err)
	s.Empty(open)

	_, err = s.svc.Login(s.ctx, "ana@miriesgo.co", "correct-horse")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = s.svc.Login(s.ctx, "ana@miriesgo.co", "brand-new-pass")
	s.NoError(err)
}
