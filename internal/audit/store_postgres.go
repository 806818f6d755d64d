package audit

import (
	"context"
	"database/sql"
	"fmt"

	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/tx"
)

// PostgresStore persists audit entries in the audit_logs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	var userID sql.NullInt64
	if entry.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*entry.UserID), Valid: true}
	}
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO audit_logs (user_id, action, table_name, record_id, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, userID, string(entry.Action), entry.TableName, entry.RecordID, entry.Detail,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, user_id, action, table_name, record_id, detail, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, int64(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e   Entry
			uid sql.NullInt64
			act string
		)
		if err := rows.Scan(&e.ID, &uid, &act, &e.TableName, &e.RecordID, &e.Detail,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if uid.Valid {
			u := id.UserID(uid.Int64)
			e.UserID = &u
		}
		e.Action = Action(act)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
