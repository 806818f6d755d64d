package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"miriesgo/internal/auth/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, company_id, full_name, national_identifier, email, phone, password_hash,
	role, is_active, failed_login_attempts, locked_until, last_login, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	u, err := scanUser(tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, int64(userID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.User, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, nu models.NewUser) (*models.User, error) {
	u, err := scanUser(tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO users (company_id, full_name, national_identifier, email, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		companyArg(nu.CompanyID), nu.FullName, nu.NationalIdentifier, nu.Email, nu.Phone, nu.PasswordHash, nu.Role.String()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, fmt.Errorf("user %s: %w", nu.Email, sentinel.ErrAlreadyUsed)
			case "23503":
				return nil, fmt.Errorf("company for user %s: %w", nu.Email, sentinel.ErrNotFound)
			}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE users
		SET full_name = $2, phone = $3, role = $4, is_active = $5, company_id = $6,
			password_hash = $7, updated_at = NOW()
		WHERE id = $1
	`, int64(u.ID), u.FullName, u.Phone, u.Role.String(), u.IsActive, companyArg(u.CompanyID), u.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("company for user %s: %w", u.ID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res, u.ID)
}

func (s *PostgresStore) SaveLoginState(ctx context.Context, userID id.UserID, state models.LoginState) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE users SET failed_login_attempts = $2, locked_until = $3, last_login = $4
		WHERE id = $1
	`, int64(userID), state.FailedLoginAttempts, nullTime(state.LockedUntil), nullTime(state.LastLogin))
	if err != nil {
		return fmt.Errorf("save login state: %w", err)
	}
	return requireAffected(res, userID)
}

// RecordLoginFailure increments in SQL so concurrent failures on one account
// each count; the row lock serialises them.
func (s *PostgresStore) RecordLoginFailure(ctx context.Context, userID id.UserID, policy models.LockoutPolicy, now time.Time) (models.LoginState, bool, error) {
	until := now.Add(policy.Duration).Truncate(time.Microsecond)
	var (
		state       models.LoginState
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		UPDATE users SET
			failed_login_attempts = CASE WHEN failed_login_attempts + 1 >= $2 THEN 0
				ELSE failed_login_attempts + 1 END,
			locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE locked_until END
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until, last_login
	`, int64(userID), policy.MaxAttempts, until).Scan(&state.FailedLoginAttempts, &lockedUntil, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LoginState{}, false, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.LoginState{}, false, fmt.Errorf("record login failure: %w", err)
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		state.LockedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		state.LastLogin = &t
	}
	locked := state.FailedLoginAttempts == 0 && state.LockedUntil != nil && state.LockedUntil.Equal(until)
	return state, locked, nil
}

func (s *PostgresStore) CountActiveByCompany(ctx context.Context, companyID id.CompanyID) (int, error) {
	var n int
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE company_id = $1 AND is_active`, int64(companyID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count company users: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListActiveByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.User, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = $1 AND is_active ORDER BY full_name, id`, int64(companyID))
	if err != nil {
		return nil, fmt.Errorf("list company users: %w", err)
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company users: %w", err)
	}
	return out, nil
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u          models.User
		uid        int64
		companyID  sql.NullInt64
		role       string
		lockedTill sql.NullTime
		lastLogin  sql.NullTime
	)
	if err := row.Scan(&uid, &companyID, &u.FullName, &u.NationalIdentifier, &u.Email, &u.Phone,
		&u.PasswordHash, &role, &u.IsActive, &u.FailedLoginAttempts, &lockedTill, &lastLogin,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.UserID(uid)
	u.Role = id.Role(role)
	if companyID.Valid {
		c := id.CompanyID(companyID.Int64)
		u.CompanyID = &c
	}
	if lockedTill.Valid {
		t := lockedTill.Time
		u.LockedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func companyArg(c *id.CompanyID) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*c), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireAffected(res sql.Result, userID id.UserID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return nil
}
