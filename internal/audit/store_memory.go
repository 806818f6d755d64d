package audit

import (
	"context"
	"slices"
	"sync"

	id "miriesgo/pkg/domain"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []*Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	stored := *entry
	stored.ID = s.nextID
	entry.ID = stored.ID
	s.entries = append(s.entries, &stored)
	return nil
}

// ListByUser returns the newest entries first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range slices.Backward(s.entries) {
		if e.UserID == nil || *e.UserID != userID {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
