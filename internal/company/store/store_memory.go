package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"miriesgo/internal/company/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	companies map[id.CompanyID]*models.Company
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{companies: make(map[id.CompanyID]*models.Company)}
}

func (s *InMemoryStore) FindByID(_ context.Context, companyID id.CompanyID) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("company %s: %w", companyID, sentinel.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// FindByNIT returns nil, nil when no company has the NIT.
func (s *InMemoryStore) FindByNIT(_ context.Context, nit string) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.companies {
		if c.NIT == nit {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) List(_ context.Context, f models.ListFilter) ([]*models.Company, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(f.Search)
	var matched []*models.Company
	for _, c := range s.companies {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.NIT), search) &&
			!strings.Contains(strings.ToLower(c.TransUnionCode), search) {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	sortByName(matched)

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.Size, total)
	return matched[start:end], total, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Company, 0, len(s.companies))
	for _, c := range s.companies {
		cp := *c
		out = append(out, &cp)
	}
	sortByName(out)
	return out, nil
}

func (s *InMemoryStore) Create(_ context.Context, nc models.NewCompany) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.NIT == nc.NIT || c.TransUnionCode == nc.TransUnionCode {
			return nil, fmt.Errorf("company %s: %w", nc.NIT, sentinel.ErrAlreadyUsed)
		}
	}
	s.nextID++
	now := time.Now()
	c := &models.Company{
		ID:             id.CompanyID(s.nextID),
		Name:           nc.Name,
		NIT:            nc.NIT,
		TransUnionCode: nc.TransUnionCode,
		Address:        nc.Address,
		Phone:          nc.Phone,
		Email:          nc.Email,
		Status:         models.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.companies[c.ID] = c
	cp := *c
	return &cp, nil
}

// Update writes the mutable fields of c.
func (s *InMemoryStore) Update(_ context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.companies[c.ID]
	if !ok {
		return fmt.Errorf("company %s: %w", c.ID, sentinel.ErrNotFound)
	}
	existing.Name = c.Name
	existing.Address = c.Address
	existing.Phone = c.Phone
	existing.Email = c.Email
	existing.Status = c.Status
	existing.UpdatedAt = time.Now()
	return nil
}

func sortByName(cs []*models.Company) {
	slices.SortFunc(cs, func(a, b *models.Company) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
}
