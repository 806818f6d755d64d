package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"miriesgo/internal/client/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
)

// InMemoryStore keeps clients in maps. Returned aggregates are copies.
type InMemoryStore struct {
	mu            sync.RWMutex
	nextClientID  int64
	nextHistoryID int64
	nextFlagID    int64
	clients       map[id.ClientID]*models.Client
	byIdentifier  map[string]id.ClientID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		clients:      make(map[id.ClientID]*models.Client),
		byIdentifier: make(map[string]id.ClientID),
	}
}

func (s *InMemoryStore) FindByIdentifier(_ context.Context, identifier string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cid, ok := s.byIdentifier[identifier]
	if !ok {
		return nil, nil
	}
	return cloneClient(s.clients[cid]), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, clientID id.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	return cloneClient(c), nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, cloneClient(c))
	}
	slices.SortFunc(out, func(a, b *models.Client) int {
		if c := strings.Compare(a.FullName, b.FullName); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (s *InMemoryStore) Create(_ context.Context, nc models.NewClient) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byIdentifier[nc.NationalIdentifier]; exists {
		return nil, fmt.Errorf("client %s: %w", nc.NationalIdentifier, sentinel.ErrAlreadyUsed)
	}
	s.nextClientID++
	c := &models.Client{
		ID:                 id.ClientID(s.nextClientID),
		NationalIdentifier: nc.NationalIdentifier,
		FullName:           nc.FullName,
		BirthDate:          nc.BirthDate,
		CreatedAt:          time.Now().UTC(),
	}
	s.clients[c.ID] = c
	s.byIdentifier[c.NationalIdentifier] = c.ID
	return cloneClient(c), nil
}

func (s *InMemoryStore) UpdateFullName(_ context.Context, clientID id.ClientID, fullName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	c.FullName = fullName
	return nil
}

func (s *InMemoryStore) AppendHistory(_ context.Context, clientID id.ClientID, kind models.HistoryKind, value string, recordedAt time.Time) (*models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	s.nextHistoryID++
	e := models.HistoryEntry{
		ID:         s.nextHistoryID,
		ClientID:   clientID,
		Kind:       kind,
		Value:      value,
		RecordedAt: recordedAt,
	}
	c.History = append(c.History, e)
	return &e, nil
}

func (s *InMemoryStore) AddFlags(_ context.Context, clientID id.ClientID, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	for _, tag := range tags {
		if slices.ContainsFunc(c.Flags, func(f models.Flag) bool { return f.Tag == tag }) {
			continue
		}
		s.nextFlagID++
		c.Flags = append(c.Flags, models.Flag{ID: s.nextFlagID, ClientID: clientID, Tag: tag})
	}
	return nil
}

func (s *InMemoryStore) RemoveFlags(_ context.Context, clientID id.ClientID, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	c.Flags = slices.DeleteFunc(c.Flags, func(f models.Flag) bool {
		return slices.Contains(tags, f.Tag)
	})
	return nil
}

// Delete drops the client together with its history and flags.
func (s *InMemoryStore) Delete(_ context.Context, clientID id.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	delete(s.byIdentifier, c.NationalIdentifier)
	delete(s.clients, clientID)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), nil
}

// Snapshot lets tx.InMemory roll the store back when a unit of work fails.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	nextClient, nextHistory, nextFlag := s.nextClientID, s.nextHistoryID, s.nextFlagID
	clients := make(map[id.ClientID]*models.Client, len(s.clients))
	for k, c := range s.clients {
		clients[k] = cloneClient(c)
	}
	byIdentifier := maps.Clone(s.byIdentifier)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextClientID, s.nextHistoryID, s.nextFlagID = nextClient, nextHistory, nextFlag
		s.clients = clients
		s.byIdentifier = byIdentifier
	}
}

func cloneClient(c *models.Client) *models.Client {
	out := *c
	out.History = slices.Clone(c.History)
	out.Flags = slices.Clone(c.Flags)
	if c.BirthDate != nil {
		bd := *c.BirthDate
		out.BirthDate = &bd
	}
	return &out
}
