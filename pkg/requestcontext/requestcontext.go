// Package requestcontext carries request-scoped values (request id, client
// metadata, clock, authenticated principal) through context.Context.
package requestcontext

import (
	"context"
	"time"

	id "miriesgo/pkg/domain"
)

type (
	requestIDKey struct{}
	clientIPKey  struct{}
	userAgentKey struct{}
	nowKey       struct{}
	principalKey struct{}
)

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	UserID    id.UserID
	Email     string
	Role      id.Role
	CompanyID *id.CompanyID
	JTI       string
	ExpiresAt time.Time
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins the clock for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, t)
}

// Now returns the request-scoped time, falling back to time.Now() for
// workers, CLI commands and tests that did not pin one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns the authenticated caller, if any.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserID is a shortcut for the authenticated user id; zero when anonymous.
func UserID(ctx context.Context) id.UserID {
	p, _ := GetPrincipal(ctx)
	return p.UserID
}
