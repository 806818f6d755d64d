// Package revocation keeps the JTIs of logged-out access tokens until the
// tokens would have expired anyway.
package revocation

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// List is a token revocation list.
type List interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// InMemoryList keeps revocations in a go-cache with per-entry expiry.
type InMemoryList struct {
	entries *cache.Cache
}

func NewInMemoryList() *InMemoryList {
	return &InMemoryList{entries: cache.New(cache.NoExpiration, 5*time.Minute)}
}

func (l *InMemoryList) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	l.entries.Set(jti, struct{}{}, ttl)
	return nil
}

func (l *InMemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, found := l.entries.Get(jti)
	return found, nil
}
