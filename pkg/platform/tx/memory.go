package tx

import (
	"context"
	"sync"
	"time"

	dErrors "miriesgo/pkg/domain-errors"
)

// DefaultTimeout bounds a transaction whose context carries no deadline.
const DefaultTimeout = 5 * time.Second

// Runner provides a transactional boundary for a unit of work. Implementations
// wrap a database transaction or an in-memory lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Snapshotter is an in-memory store that can capture its state. The returned
// func puts the captured state back.
type Snapshotter interface {
	Snapshot() (restore func())
}

// InMemory serializes units of work against in-memory stores. Participants
// are snapshotted before each unit and restored when it fails, so a failed
// unit leaves them as they were.
type InMemory struct {
	mu           sync.Mutex
	timeout      time.Duration
	participants []Snapshotter
}

func NewInMemory(participants ...Snapshotter) *InMemory {
	return &InMemory{participants: participants}
}

type inMemoryKey struct{}

func (t *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// nested calls join the outer unit of work
	if ctx.Value(inMemoryKey{}) == t {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	restores := make([]func(), 0, len(t.participants))
	for _, p := range t.participants {
		restores = append(restores, p.Snapshot())
	}
	if err := fn(context.WithValue(ctx, inMemoryKey{}, t)); err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		return err
	}
	return nil
}
