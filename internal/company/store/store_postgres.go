package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"miriesgo/internal/company/models"
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

const companyColumns = `id, name, nit, transunion_code, address, phone, email, status, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	c, err := scanCompany(tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, int64(companyID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", companyID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByNIT(ctx context.Context, nit string) (*models.Company, error) {
	c, err := scanCompany(tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE nit = $1`, nit))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find company by nit: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) List(ctx context.Context, f models.ListFilter) ([]*models.Company, int, error) {
	var status any
	if f.Status != nil {
		status = string(*f.Status)
	}
	where := `WHERE ($1::text IS NULL OR status = $1)
		AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR nit ILIKE '%' || $2 || '%' OR transunion_code ILIKE '%' || $2 || '%')`
	exec := tx.Exec(ctx, s.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies `+where, status, f.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies `+where+`
		ORDER BY name ASC, id ASC LIMIT $3 OFFSET $4`, status, f.Search, f.Size, f.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()
	out, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Company, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (s *PostgresStore) Create(ctx context.Context, nc models.NewCompany) (*models.Company, error) {
	c, err := scanCompany(tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO companies (name, nit, transunion_code, address, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+companyColumns,
		nc.Name, nc.NIT, nc.TransUnionCode, nc.Address, nc.Phone, nc.Email))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("company %s: %w", nc.NIT, sentinel.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("insert company: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Company) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE companies
		SET name = $2, address = $3, phone = $4, email = $5, status = $6, updated_at = NOW()
		WHERE id = $1
	`, int64(c.ID), c.Name, c.Address, c.Phone, c.Email, string(c.Status))
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("company %s: %w", c.ID, sentinel.ErrNotFound)
	}
	return nil
}

func collect(rows *sql.Rows) ([]*models.Company, error) {
	out := make([]*models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	return out, nil
}

func scanCompany(row interface{ Scan(...any) error }) (*models.Company, error) {
	var (
		c      models.Company
		cid    int64
		status string
	)
	if err := row.Scan(&cid, &c.Name, &c.NIT, &c.TransUnionCode, &c.Address, &c.Phone, &c.Email,
		&status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CompanyID(cid)
	c.Status = models.Status(status)
	return &c, nil
}
