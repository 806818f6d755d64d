package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"miriesgo/internal/client/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/platform/tx"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore persists clients, their contact history and flags.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const clientColumns = `id, national_identifier, full_name, birth_date, created_at`

func (s *PostgresStore) FindByIdentifier(ctx context.Context, identifier string) (*models.Client, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE national_identifier = $1`, identifier)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find client by identifier: %w", err)
	}
	if err := s.loadRelations(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, int64(clientID))
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find client by id: %w", err)
	}
	if err := s.loadRelations(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListAll loads every client ordered by name. History and flags are fetched
// with one query each and stitched in memory.
func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Client, error) {
	exec := tx.Exec(ctx, s.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY full_name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*models.Client, 0)
	byID := make(map[id.ClientID]*models.Client)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}

	history, err := s.queryHistory(ctx, `SELECT id, client_id, kind, value, recorded_at
		FROM client_history ORDER BY client_id, id`)
	if err != nil {
		return nil, err
	}
	for _, e := range history {
		if c, ok := byID[e.ClientID]; ok {
			c.History = append(c.History, e)
		}
	}

	flags, err := s.queryFlags(ctx, `SELECT id, client_id, tag FROM client_flags ORDER BY client_id, id`)
	if err != nil {
		return nil, err
	}
	for _, f := range flags {
		if c, ok := byID[f.ClientID]; ok {
			c.Flags = append(c.Flags, f)
		}
	}
	return clients, nil
}

func (s *PostgresStore) Create(ctx context.Context, nc models.NewClient) (*models.Client, error) {
	var birth sql.NullTime
	if nc.BirthDate != nil {
		birth = sql.NullTime{Time: *nc.BirthDate, Valid: true}
	}
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO clients (national_identifier, full_name, birth_date)
		VALUES ($1, $2, $3)
		RETURNING `+clientColumns,
		nc.NationalIdentifier, nc.FullName, birth)
	c, err := scanClient(row)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, fmt.Errorf("client %s: %w", nc.NationalIdentifier, sentinel.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateFullName(ctx context.Context, clientID id.ClientID, fullName string) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE clients SET full_name = $2, updated_at = NOW() WHERE id = $1`, int64(clientID), fullName)
	if err != nil {
		return fmt.Errorf("update client name: %w", err)
	}
	return requireAffected(res, clientID)
}

func (s *PostgresStore) AppendHistory(ctx context.Context, clientID id.ClientID, kind models.HistoryKind, value string, recordedAt time.Time) (*models.HistoryEntry, error) {
	e := models.HistoryEntry{ClientID: clientID, Kind: kind, Value: value, RecordedAt: recordedAt}
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO client_history (client_id, kind, value, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, int64(clientID), string(kind), value, recordedAt).Scan(&e.ID)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return nil, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("append client history: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) AddFlags(ctx context.Context, clientID id.ClientID, tags []string) error {
	exec := tx.Exec(ctx, s.db)
	for _, tag := range tags {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO client_flags (client_id, tag) VALUES ($1, $2)
			ON CONFLICT (client_id, tag) DO NOTHING
		`, int64(clientID), tag)
		if err != nil {
			if isPgCode(err, pgForeignKeyViolation) {
				return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
			}
			return fmt.Errorf("add client flag: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) RemoveFlags(ctx context.Context, clientID id.ClientID, tags []string) error {
	exec := tx.Exec(ctx, s.db)
	for _, tag := range tags {
		if _, err := exec.ExecContext(ctx,
			`DELETE FROM client_flags WHERE client_id = $1 AND tag = $2`, int64(clientID), tag); err != nil {
			return fmt.Errorf("remove client flag: %w", err)
		}
	}
	return nil
}

// Delete removes the client; history and flags cascade. Loans reference
// clients with ON DELETE RESTRICT and surface as sentinel.ErrInUse.
func (s *PostgresStore) Delete(ctx context.Context, clientID id.ClientID) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, int64(clientID))
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return fmt.Errorf("client %s: %w", clientID, sentinel.ErrInUse)
		}
		return fmt.Errorf("delete client: %w", err)
	}
	return requireAffected(res, clientID)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) loadRelations(ctx context.Context, c *models.Client) error {
	history, err := s.queryHistory(ctx, `SELECT id, client_id, kind, value, recorded_at
		FROM client_history WHERE client_id = $1 ORDER BY id`, int64(c.ID))
	if err != nil {
		return err
	}
	c.History = history

	flags, err := s.queryFlags(ctx, `SELECT id, client_id, tag FROM client_flags WHERE client_id = $1 ORDER BY id`, int64(c.ID))
	if err != nil {
		return err
	}
	c.Flags = flags
	return nil
}

func (s *PostgresStore) queryHistory(ctx context.Context, query string, args ...any) ([]models.HistoryEntry, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query client history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var (
			entryID, clientID int64
			kind, value       string
			recordedAt        time.Time
		)
		if err := rows.Scan(&entryID, &clientID, &kind, &value, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan client history: %w", err)
		}
		e, err := historyEntry(entryID, clientID, kind, value, recordedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client history: %w", err)
	}
	return out, nil
}

func historyEntry(entryID, clientID int64, kind, value string, recordedAt time.Time) (models.HistoryEntry, error) {
	k, err := models.ParseHistoryKind(kind)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("client history %d: %w", entryID, err)
	}
	return models.HistoryEntry{
		ID:         entryID,
		ClientID:   id.ClientID(clientID),
		Kind:       k,
		Value:      value,
		RecordedAt: recordedAt,
	}, nil
}

func (s *PostgresStore) queryFlags(ctx context.Context, query string, args ...any) ([]models.Flag, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query client flags: %w", err)
	}
	defer rows.Close()

	var out []models.Flag
	for rows.Next() {
		var (
			f        models.Flag
			clientID int64
		)
		if err := rows.Scan(&f.ID, &clientID, &f.Tag); err != nil {
			return nil, fmt.Errorf("scan client flag: %w", err)
		}
		f.ClientID = id.ClientID(clientID)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client flags: %w", err)
	}
	return out, nil
}

func scanClient(row interface{ Scan(...any) error }) (*models.Client, error) {
	var (
		c     models.Client
		cid   int64
		birth sql.NullTime
	)
	if err := row.Scan(&cid, &c.NationalIdentifier, &c.FullName, &birth, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ID = id.ClientID(cid)
	if birth.Valid {
		bd := birth.Time
		c.BirthDate = &bd
	}
	return &c, nil
}

func requireAffected(res sql.Result, clientID id.ClientID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	return nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
