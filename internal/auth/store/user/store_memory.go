package user

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"miriesgo/internal/auth/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
)

type InMemoryUserStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[id.UserID]*models.User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*models.User)}
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return clone(u), nil
}

// FindByEmail matches case-insensitively.
func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, clone(u))
	}
	slices.SortFunc(out, func(a, b *models.User) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *InMemoryUserStore) Create(_ context.Context, nu models.NewUser) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, nu.Email) || u.NationalIdentifier == nu.NationalIdentifier {
			return nil, fmt.Errorf("user %s: %w", nu.Email, sentinel.ErrAlreadyUsed)
		}
	}
	s.nextID++
	now := time.Now()
	u := &models.User{
		ID:                 id.UserID(s.nextID),
		CompanyID:          nu.CompanyID,
		FullName:           nu.FullName,
		NationalIdentifier: nu.NationalIdentifier,
		Email:              nu.Email,
		Phone:              nu.Phone,
		PasswordHash:       nu.PasswordHash,
		Role:               nu.Role,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.users[u.ID] = u
	return clone(u), nil
}

// Update writes the admin-editable fields of u.
func (s *InMemoryUserStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, sentinel.ErrNotFound)
	}
	existing.FullName = u.FullName
	existing.Phone = u.Phone
	existing.Role = u.Role
	existing.IsActive = u.IsActive
	existing.CompanyID = u.CompanyID
	existing.PasswordHash = u.PasswordHash
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryUserStore) SaveLoginState(_ context.Context, userID id.UserID, state models.LoginState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	u.FailedLoginAttempts = state.FailedLoginAttempts
	u.LockedUntil = state.LockedUntil
	u.LastLogin = state.LastLogin
	return nil
}

func (s *InMemoryUserStore) RecordLoginFailure(_ context.Context, userID id.UserID, policy models.LockoutPolicy, now time.Time) (models.LoginState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.LoginState{}, false, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	state, locked := policy.RecordFailure(u, now)
	u.FailedLoginAttempts = state.FailedLoginAttempts
	if locked {
		u.LockedUntil = state.LockedUntil
	}
	state.LockedUntil = u.LockedUntil
	return state, locked, nil
}

func (s *InMemoryUserStore) CountActiveByCompany(_ context.Context, companyID id.CompanyID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.IsActive && u.CompanyID != nil && *u.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

// ListActiveByCompany returns the company's active users ordered by name.
func (s *InMemoryUserStore) ListActiveByCompany(_ context.Context, companyID id.CompanyID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0)
	for _, u := range s.users {
		if u.IsActive && u.CompanyID != nil && *u.CompanyID == companyID {
			out = append(out, clone(u))
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int {
		if c := strings.Compare(a.FullName, b.FullName); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func clone(u *models.User) *models.User {
	cp := *u
	if u.CompanyID != nil {
		c := *u.CompanyID
		cp.CompanyID = &c
	}
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		cp.LockedUntil = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}
