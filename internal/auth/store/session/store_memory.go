package session

import (
	"context"
	"slices"
	"sync"

	"miriesgo/internal/auth/models"
	id "miriesgo/pkg/domain"
)

// InMemoryStore keeps sessions for tests and the development server.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[id.SessionID]*models.Session
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemoryStore) Create(_ context.Context, ns models.NewSession) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sess := &models.Session{
		ID:           id.SessionID(s.nextID),
		UserID:       ns.UserID,
		JTI:          ns.JTI,
		IPAddress:    ns.IPAddress,
		UserAgent:    ns.UserAgent,
		CreatedAt:    ns.CreatedAt,
		LastActivity: ns.CreatedAt,
		ExpiresAt:    ns.ExpiresAt,
		IsActive:     true,
	}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

// ListByUser returns every session of the user, newest first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Session) int { return int(b.ID - a.ID) })
	return out, nil
}

// CloseByUser deactivates the user's active sessions and returns them.
func (s *InMemoryStore) CloseByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := make([]*models.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.IsActive {
			sess.IsActive = false
			cp := *sess
			closed = append(closed, &cp)
		}
	}
	return closed, nil
}

// CloseByJTI deactivates the session carrying jti. An unknown jti is a no-op.
func (s *InMemoryStore) CloseByJTI(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.JTI == jti {
			sess.IsActive = false
		}
	}
	return nil
}
