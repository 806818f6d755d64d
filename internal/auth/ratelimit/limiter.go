// Package ratelimit throttles login attempts per client IP.
package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// LoginLimiter hands out one token bucket per key. Buckets idle for longer
// than the cache expiry are dropped.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewLoginLimiter allows perMinute attempts per key with a burst of the same size.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &LoginLimiter{
		limiters: cache.New(10*time.Minute, 5*time.Minute),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

// Allow consumes one attempt for key.
func (l *LoginLimiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

func (l *LoginLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.limiters.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.limiters.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.SetDefault(key, lim)
	return lim
}
