package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresList persists revoked JTIs in revoked_tokens.
type PostgresList struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresList(db *sql.DB) *PostgresList {
	return &PostgresList{db: db, now: time.Now}
}

func (l *PostgresList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, jti, l.now().Add(ttl))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (l *PostgresList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var expiresAt time.Time
	err := l.db.QueryRowContext(ctx, `SELECT expires_at FROM revoked_tokens WHERE jti = $1`, jti).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return l.now().Before(expiresAt), nil
}

// PurgeExpired deletes rows whose tokens have expired.
func (l *PostgresList) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, l.now())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return res.RowsAffected()
}
