package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"miriesgo/internal/loan/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// PostgresStore persists loans and their payment schedules.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const loanColumns = `id, client_id, company_id, origination_date, original_amount, modality,
	interest_rate, installments, current_balance, status, last_report_date`

func (s *PostgresStore) FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, int64(loanID))
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", loanID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find loan: %w", err)
	}
	payments, err := s.queryPayments(ctx, `WHERE loan_id = $1`, int64(loanID))
	if err != nil {
		return nil, err
	}
	l.Payments = payments
	return l, nil
}

// ListByClient loads the client's loans and then all their payments in a
// second query.
func (s *PostgresStore) ListByClient(ctx context.Context, clientID id.ClientID) ([]*models.Loan, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE client_id = $1 ORDER BY origination_date, id`, int64(clientID))
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	loans := make([]*models.Loan, 0)
	byID := make(map[id.LoanID]*models.Loan)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	if len(loans) == 0 {
		return loans, nil
	}

	payments, err := s.queryPayments(ctx,
		`WHERE loan_id IN (SELECT id FROM loans WHERE client_id = $1)`, int64(clientID))
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if l, ok := byID[p.LoanID]; ok {
			l.Payments = append(l.Payments, p)
		}
	}
	return loans, nil
}

func (s *PostgresStore) FindByClientCompanyAndDate(ctx context.Context, clientID id.ClientID, companyID id.CompanyID, origination time.Time) (*models.Loan, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans
		WHERE client_id = $1 AND company_id = $2 AND origination_date = $3`,
		int64(clientID), int64(companyID), models.Date(origination))
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find loan by origination: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) Create(ctx context.Context, loan *models.Loan) error {
	exec := tx.Exec(ctx, s.db)
	var loanID int64
	err := exec.QueryRowContext(ctx, `
		INSERT INTO loans (client_id, company_id, origination_date, original_amount, modality,
			interest_rate, installments, current_balance, status, last_report_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, int64(loan.ClientID), int64(loan.CompanyID), models.Date(loan.OriginationDate), loan.OriginalAmount,
		string(loan.Modality), loan.InterestRate, loan.Installments, loan.CurrentBalance,
		string(loan.Status), models.Date(loan.LastReportDate),
	).Scan(&loanID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("loan for client %s: %w", loan.ClientID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	loan.ID = id.LoanID(loanID)

	for i := range loan.Payments {
		p := &loan.Payments[i]
		p.LoanID = loan.ID
		var (
			actual sql.NullTime
			amount decimal.NullDecimal
			payID  int64
		)
		if p.ActualPaymentDate != nil {
			actual = sql.NullTime{Time: *p.ActualPaymentDate, Valid: true}
		}
		if p.AmountPaid != nil {
			amount = decimal.NullDecimal{Decimal: *p.AmountPaid, Valid: true}
		}
		if err := exec.QueryRowContext(ctx, `
			INSERT INTO payments (loan_id, installment_number, expected_payment_date,
				actual_payment_date, amount_paid, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, loanID, p.InstallmentNumber, models.Date(p.ExpectedPaymentDate), actual, amount, string(p.Status)).Scan(&payID); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		p.ID = id.PaymentID(payID)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, loan *models.Loan) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE loans SET
			status = $2, current_balance = $3, interest_rate = $4, modality = $5,
			installments = $6, original_amount = $7, last_report_date = $8, updated_at = NOW()
		WHERE id = $1
	`, int64(loan.ID), string(loan.Status), loan.CurrentBalance, loan.InterestRate,
		string(loan.Modality), loan.Installments, loan.OriginalAmount, models.Date(loan.LastReportDate))
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("loan %s: %w", loan.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CountByClient(ctx context.Context, clientID id.ClientID) (int, error) {
	var n int
	if err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE client_id = $1`, int64(clientID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count loans: %w", err)
	}
	return n, nil
}

// Summaries projects every loan with the worst delay among its unpaid
// installments as of today.
func (s *PostgresStore) Summaries(ctx context.Context, today time.Time) ([]models.Summary, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT l.id, l.client_id, l.company_id, l.status,
			COALESCE(MAX(GREATEST(0, $1::date - p.expected_payment_date))
				FILTER (WHERE p.actual_payment_date IS NULL), 0)
		FROM loans l
		LEFT JOIN payments p ON p.loan_id = l.id
		GROUP BY l.id
		ORDER BY l.id
	`, models.Date(today))
	if err != nil {
		return nil, fmt.Errorf("loan summaries: %w", err)
	}
	defer rows.Close()

	out := make([]models.Summary, 0)
	for rows.Next() {
		var (
			sum                         models.Summary
			loanID, clientID, companyID int64
			status                      string
		)
		if err := rows.Scan(&loanID, &clientID, &companyID, &status, &sum.MaxDaysLateUnpaid); err != nil {
			return nil, fmt.Errorf("scan loan summary: %w", err)
		}
		sum.LoanID = id.LoanID(loanID)
		sum.ClientID = id.ClientID(clientID)
		sum.CompanyID = id.CompanyID(companyID)
		sum.Status = models.LoanStatus(status)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan summaries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) queryPayments(ctx context.Context, where string, args ...any) ([]models.Payment, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, loan_id, installment_number, expected_payment_date, actual_payment_date, amount_paid, status
		FROM payments `+where+`
		ORDER BY loan_id, installment_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var (
			p             models.Payment
			payID, loanID int64
			actual        sql.NullTime
			amount        decimal.NullDecimal
			status        string
		)
		if err := rows.Scan(&payID, &loanID, &p.InstallmentNumber, &p.ExpectedPaymentDate, &actual, &amount, &status); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.ID = id.PaymentID(payID)
		p.LoanID = id.LoanID(loanID)
		p.Status = models.PaymentStatus(status)
		if actual.Valid {
			t := actual.Time
			p.ActualPaymentDate = &t
		}
		if amount.Valid {
			a := amount.Decimal
			p.AmountPaid = &a
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func scanLoan(row interface{ Scan(...any) error }) (*models.Loan, error) {
	var (
		l                           models.Loan
		loanID, clientID, companyID int64
		modality, status            string
	)
	if err := row.Scan(&loanID, &clientID, &companyID, &l.OriginationDate, &l.OriginalAmount, &modality,
		&l.InterestRate, &l.Installments, &l.CurrentBalance, &status, &l.LastReportDate); err != nil {
		return nil, err
	}
	l.ID = id.LoanID(loanID)
	l.ClientID = id.ClientID(clientID)
	l.CompanyID = id.CompanyID(companyID)
	l.Modality = models.Modality(modality)
	l.Status = models.LoanStatus(status)
	return &l, nil
}
