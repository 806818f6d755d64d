package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"miriesgo/internal/audit"
	"miriesgo/internal/auth/models"
	"miriesgo/internal/auth/store/revocation"
	"miriesgo/internal/auth/store/session"
	companymodels "miriesgo/internal/company/models"
	jwttoken "miriesgo/internal/jwt_token"
	"miriesgo/internal/platform/metrics"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/platform/tx"
	"miriesgo/pkg/requestcontext"
	"miriesgo/pkg/secrets"
)

// UserStore persists operators.
//   - FindByID, FindByEmail, Update and SaveLoginState return sentinel.ErrNotFound
//   - Create returns sentinel.ErrAlreadyUsed for a taken email or identifier
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, nu models.NewUser) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	SaveLoginState(ctx context.Context, userID id.UserID, state models.LoginState) error
	// RecordLoginFailure counts one failed attempt against the stored counter
	// atomically and locks the account when the policy threshold is reached.
	RecordLoginFailure(ctx context.Context, userID id.UserID, policy models.LockoutPolicy, now time.Time) (models.LoginState, bool, error)
}

// SessionStore records one session per issued token.
//   - CloseByUser deactivates every active session and returns those it closed
//   - CloseByJTI ignores an unknown jti
type SessionStore interface {
	Create(ctx context.Context, ns models.NewSession) (*models.Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	CloseByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	CloseByJTI(ctx context.Context, jti string) error
}

type TokenIssuer interface {
	GenerateAccessToken(ctx context.Context, sub jwttoken.Subject) (*jwttoken.IssuedToken, error)
}

// CompanyDirectory resolves company names for user views.
type CompanyDirectory interface {
	FindByID(ctx context.Context, companyID id.CompanyID) (*companymodels.Company, error)
}

type Limiter interface {
	Allow(key string) bool
}

type Option func(*Service)

type Service struct {
	users    UserStore
	sessions SessionStore
	tokens   TokenIssuer
	revoked  revocation.List
	limiter  Limiter
	company  CompanyDirectory
	lockout  models.LockoutPolicy
	tx       tx.Runner
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(users UserStore, tokens TokenIssuer, revoked revocation.List, opts ...Option) *Service {
	svc := &Service{
		users:    users,
		sessions: session.NewInMemory(),
		tokens:   tokens,
		revoked:  revoked,
		lockout:  models.DefaultLockoutPolicy,
		tx:       tx.NewInMemory(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithSessions(store SessionStore) Option {
	return func(s *Service) { s.sessions = store }
}

func WithCompanyDirectory(d CompanyDirectory) Option {
	return func(s *Service) { s.company = d }
}

func WithLockoutPolicy(p models.LockoutPolicy) Option {
	return func(s *Service) {
		if p.MaxAttempts > 0 && p.Duration > 0 {
			s.lockout = p
		}
	}
}

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "incorrect username or password")

// Login authenticates by email and password. Failed attempts count towards
// the lockout policy and are persisted even though the call fails.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := requestcontext.Now(ctx)

	if s.limiter != nil && !s.limiter.Allow(requestcontext.ClientIP(ctx)) {
		s.metrics.IncrementLoginFailures("rate_limited")
		return nil, dErrors.New(dErrors.CodeRateLimited, "too many login attempts, try again later")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			secrets.Burn(password)
			s.metrics.IncrementLoginFailures("unknown_user")
			s.emit(ctx, audit.Entry{Action: audit.ActionLoginFailed, TableName: "users", Detail: "unknown user"})
			return nil, errInvalidCredentials
		}
		return nil, translate(err, "failed to load user")
	}

	if user.IsLocked(now) {
		s.metrics.IncrementLoginFailures("locked")
		return nil, dErrors.New(dErrors.CodeLocked, "account locked, try again later")
	}
	if !user.IsActive {
		s.metrics.IncrementLoginFailures("inactive")
		return nil, dErrors.New(dErrors.CodeForbidden, "account is inactive")
	}

	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, translate(err, "failed to verify password")
		}
		return nil, s.recordFailure(ctx, user, now)
	}

	if err := s.users.SaveLoginState(ctx, user.ID, s.lockout.RecordSuccess(now)); err != nil {
		return nil, translate(err, "failed to record login")
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	token, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.openSession(ctx, user.ID, token); err != nil {
		return nil, err
	}
	s.metrics.IncrementLogins()
	s.emit(ctx, audit.Entry{UserID: &user.ID, Action: audit.ActionLogin, TableName: "users", RecordID: user.ID.String()})
	return token, nil
}

func (s *Service) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	state, locked, err := s.users.RecordLoginFailure(ctx, user.ID, s.lockout, now)
	if err != nil {
		return translate(err, "failed to record login failure")
	}
	s.emit(ctx, audit.Entry{UserID: &user.ID, Action: audit.ActionLoginFailed, TableName: "users", RecordID: user.ID.String()})
	if locked {
		s.metrics.IncrementLoginFailures("locked")
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			"user_id", user.ID.String(),
			"locked_until", state.LockedUntil,
		)
		s.emit(ctx, audit.Entry{UserID: &user.ID, Action: audit.ActionAccountLocked, TableName: "users", RecordID: user.ID.String()})
		return dErrors.New(dErrors.CodeLocked, "account locked after too many failed attempts")
	}
	s.metrics.IncrementLoginFailures("bad_password")
	return errInvalidCredentials
}

// Me returns the authenticated user.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	user, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, translate(err, "failed to load user")
	}
	s.resolveCompany(ctx, user)
	return user, nil
}

// Refresh issues a new token for a still-valid one and revokes the old JTI.
func (s *Service) Refresh(ctx context.Context) (*models.Token, error) {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	user, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, translate(err, "failed to load user")
	}
	if !user.IsActive || user.IsLocked(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account can no longer sign in")
	}

	token, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, p); err != nil {
		return nil, err
	}
	if err := s.sessions.CloseByJTI(ctx, p.JTI); err != nil {
		return nil, translate(err, "failed to close session")
	}
	if err := s.openSession(ctx, user.ID, token); err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Entry{Action: audit.ActionTokenRefresh, TableName: "users", RecordID: user.ID.String()})
	return token, nil
}

// Logout revokes the caller's token and closes every open session of the
// user, revoking their tokens too.
func (s *Service) Logout(ctx context.Context) error {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	if err := s.revoke(ctx, p); err != nil {
		return err
	}
	closed, err := s.sessions.CloseByUser(ctx, p.UserID)
	if err != nil {
		return translate(err, "failed to close sessions")
	}
	if err := s.revokeSessions(ctx, closed); err != nil {
		return err
	}
	s.emit(ctx, audit.Entry{Action: audit.ActionLogout, TableName: "users", RecordID: p.UserID.String()})
	return nil
}

// IsTokenRevoked backs the auth middleware's revocation check.
func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.revoked.IsRevoked(ctx, jti)
}

func (s *Service) revoke(ctx context.Context, p requestcontext.Principal) error {
	if p.JTI == "" {
		return nil
	}
	ttl := p.ExpiresAt.Sub(requestcontext.Now(ctx))
	if err := s.revoked.RevokeToken(ctx, p.JTI, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	return nil
}

// resolveCompany fills CompanyName. A missing directory or company leaves it empty.
func (s *Service) resolveCompany(ctx context.Context, user *models.User) {
	if s.company == nil || user.CompanyID == nil {
		return
	}
	c, err := s.company.FindByID(ctx, *user.CompanyID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve company name", "error", err, "user_id", user.ID.String())
		return
	}
	user.CompanyName = c.Name
}

func (s *Service) issue(ctx context.Context, user *models.User) (*models.Token, error) {
	issued, err := s.tokens.GenerateAccessToken(ctx, jwttoken.Subject{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	})
	if err != nil {
		return nil, translate(err, "failed to issue token")
	}
	s.resolveCompany(ctx, user)
	return &models.Token{
		AccessToken: issued.Token,
		JTI:         issued.JTI,
		ExpiresAt:   issued.ExpiresAt,
		ExpiresIn:   issued.TTL,
		User:        user,
	}, nil
}

func (s *Service) emit(ctx context.Context, entry audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to write audit entry", "error", err, "action", entry.Action)
	}
}

func translate(err error, msg string) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "a user with that email or identifier already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
