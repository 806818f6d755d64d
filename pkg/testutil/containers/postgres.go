//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"miriesgo/internal/platform/database"
	id "miriesgo/pkg/domain"
)

// PostgresContainer wraps a testcontainers Postgres instance with the
// schema migrated to the latest version.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("miriesgo_test"),
		postgres.WithUsername("miriesgo"),
		postgres.WithPassword("miriesgo_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := database.Migrate(db, database.Up); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// The container is shared by the Manager; Ryuk reaps it when the test
	// process exits.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables clears the given tables with CASCADE and resets their sequences.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateAll empties every application table.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx,
		"audit_logs",
		"revoked_tokens",
		"user_sessions",
		"payments",
		"loans",
		"client_flags",
		"client_history",
		"clients",
		"users",
		"companies",
	)
}

func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

func (p *PostgresContainer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}

// CreateTestCompany inserts an active company with unique NIT and code.
func (p *PostgresContainer) CreateTestCompany(ctx context.Context, t testing.TB) id.CompanyID {
	t.Helper()
	suffix := uuid.NewString()[:8]
	var companyID int64
	err := p.QueryRow(ctx, `
		INSERT INTO companies (name, nit, transunion_code, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING id
	`, "Financiera "+suffix, "9"+suffix, suffix).Scan(&companyID)
	if err != nil {
		t.Fatalf("CreateTestCompany: %v", err)
	}
	return id.CompanyID(companyID)
}

// CreateTestClient inserts a client with the given national identifier.
func (p *PostgresContainer) CreateTestClient(ctx context.Context, t testing.TB, identifier string) id.ClientID {
	t.Helper()
	var clientID int64
	err := p.QueryRow(ctx, `
		INSERT INTO clients (national_identifier, full_name, birth_date)
		VALUES ($1, $2, '1985-03-14')
		RETURNING id
	`, identifier, "Cliente "+identifier).Scan(&clientID)
	if err != nil {
		t.Fatalf("CreateTestClient: %v", err)
	}
	return id.ClientID(clientID)
}

// CreateTestLoan inserts a Vigente loan with no payments.
func (p *PostgresContainer) CreateTestLoan(ctx context.Context, t testing.TB, clientID id.ClientID, companyID id.CompanyID, origination time.Time) id.LoanID {
	t.Helper()
	var loanID int64
	err := p.QueryRow(ctx, `
		INSERT INTO loans (client_id, company_id, origination_date, original_amount, current_balance,
			status, modality, interest_rate, installments, last_report_date)
		VALUES ($1, $2, $3, 1000000, 500000, 'Vigente', 'Mensual', 2.5, 12, $3)
		RETURNING id
	`, int64(clientID), int64(companyID), origination).Scan(&loanID)
	if err != nil {
		t.Fatalf("CreateTestLoan: %v", err)
	}
	return id.LoanID(loanID)
}
