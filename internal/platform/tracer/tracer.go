// Package tracer is a thin tracing abstraction over OpenTelemetry so services
// depend on a two-method interface instead of the otel API surface.
//
// Implementations:
//   - NoopTracer for tests
//   - OTelTracer backed by the global otel TracerProvider
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, "report.build", tracer.String("client", tracer.HashIdentifier(nid)))
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records d in milliseconds.
func Duration(key string, d time.Duration) Attribute {
	return Attribute{Key: key, Value: d.Milliseconds()}
}

// HashIdentifier returns a short, stable digest of a national identifier so
// spans can be correlated without carrying the identifier itself.
func HashIdentifier(nationalID string) string {
	if nationalID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(nationalID))
	return hex.EncodeToString(sum[:8])
}
