package session

import (
	"context"
	"database/sql"
	"fmt"

	"miriesgo/internal/auth/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, user_id, jti, ip_address, user_agent, created_at, last_activity, expires_at, is_active`

func (s *PostgresStore) Create(ctx context.Context, ns models.NewSession) (*models.Session, error) {
	sess, err := scanSession(tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO user_sessions (user_id, jti, ip_address, user_agent, created_at, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		RETURNING `+sessionColumns,
		int64(ns.UserID), ns.JTI, ns.IPAddress, ns.UserAgent, ns.CreatedAt, ns.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE user_id = $1 ORDER BY id DESC`, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) CloseByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		UPDATE user_sessions SET is_active = FALSE
		WHERE user_id = $1 AND is_active
		RETURNING `+sessionColumns, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("close sessions: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) CloseByJTI(ctx context.Context, jti string) error {
	if _, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE jti = $1`, jti); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func collect(rows *sql.Rows) ([]*models.Session, error) {
	defer rows.Close()
	out := make([]*models.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var (
		sess      models.Session
		sessionID int64
		userID    int64
	)
	if err := row.Scan(&sessionID, &userID, &sess.JTI, &sess.IPAddress, &sess.UserAgent,
		&sess.CreatedAt, &sess.LastActivity, &sess.ExpiresAt, &sess.IsActive); err != nil {
		return nil, err
	}
	sess.ID = id.SessionID(sessionID)
	sess.UserID = id.UserID(userID)
	return &sess, nil
}
