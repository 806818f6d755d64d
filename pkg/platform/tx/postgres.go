package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "miriesgo/pkg/domain-errors"
)

// Postgres runs units of work inside a database/sql transaction and publishes
// it through ctx for stores built with Exec.
type Postgres struct {
	db       *sql.DB
	timeout  time.Duration
	readOnly bool
}

// PostgresOption configures a Postgres runner.
type PostgresOption func(*Postgres)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) PostgresOption {
	return func(p *Postgres) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// ReadOnly opens transactions with READ ONLY, used by report aggregation.
func ReadOnly() PostgresOption {
	return func(p *Postgres) {
		p.readOnly = true
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: p.readOnly})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
