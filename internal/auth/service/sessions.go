package service

import (
	"context"
	"errors"
	"slices"

	"miriesgo/internal/auth/models"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/privacy"
	"miriesgo/pkg/requestcontext"
)

// Sessions lists the caller's open sessions, most recently active first.
func (s *Service) Sessions(ctx context.Context) ([]*models.Session, error) {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	return s.openSessions(ctx, p.UserID)
}

// UserSessions lists another user's open sessions. Admins see anyone, other
// roles only themselves.
func (s *Service) UserSessions(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	if p.Role != id.RoleAdmin && p.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to view these sessions")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, translate(err, "failed to load user")
	}
	return s.openSessions(ctx, userID)
}

func (s *Service) openSessions(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	all, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "failed to list sessions")
	}
	now := requestcontext.Now(ctx)
	open := make([]*models.Session, 0, len(all))
	for _, sess := range all {
		if sess.IsOpen(now) {
			open = append(open, sess)
		}
	}
	slices.SortStableFunc(open, func(a, b *models.Session) int {
		return b.LastActivity.Compare(a.LastActivity)
	})
	return open, nil
}

// openSession records the token just issued to userID.
func (s *Service) openSession(ctx context.Context, userID id.UserID, token *models.Token) error {
	_, err := s.sessions.Create(ctx, models.NewSession{
		UserID:    userID,
		JTI:       token.JTI,
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: privacy.DeviceLabel(requestcontext.UserAgent(ctx)),
		CreatedAt: requestcontext.Now(ctx),
		ExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		return translate(err, "failed to record session")
	}
	return nil
}

// revokeSessions puts the tokens of closed sessions on the revocation list
// until they would have expired anyway.
func (s *Service) revokeSessions(ctx context.Context, closed []*models.Session) error {
	now := requestcontext.Now(ctx)
	var errs []error
	for _, sess := range closed {
		if sess.JTI == "" || !now.Before(sess.ExpiresAt) {
			continue
		}
		if err := s.revoked.RevokeToken(ctx, sess.JTI, sess.ExpiresAt.Sub(now)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session tokens")
	}
	return nil
}
