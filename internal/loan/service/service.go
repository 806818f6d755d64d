package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"miriesgo/internal/audit"
	"miriesgo/internal/loan/models"
	"miriesgo/internal/platform/metrics"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/platform/tx"
	"miriesgo/pkg/requestcontext"
)

// Store is the loan ledger.
// FindByID and Update return sentinel.ErrNotFound for unknown loans.
type Store interface {
	FindByID(ctx context.Context, loanID id.LoanID) (*models.Loan, error)
	ListByClient(ctx context.Context, clientID id.ClientID) ([]*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
}

type Option func(*Service)

type Service struct {
	store   Store
	tx      tx.Runner
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store Store, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		tx:     tx.NewInMemory(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// UpdateLoan applies the set fields of patch and stamps last_report_date
// with today. Unknown loans leave the ledger untouched.
func (s *Service) UpdateLoan(ctx context.Context, loanID id.LoanID, patch models.LoanPatch) (*models.Loan, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *models.Loan
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		loan, err := s.store.FindByID(ctx, loanID)
		if err != nil {
			return err
		}
		patch.Apply(loan)
		loan.LastReportDate = models.Date(requestcontext.Now(ctx))
		if err := s.store.Update(ctx, loan); err != nil {
			return err
		}
		updated = loan
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to update loan")
	}

	s.metrics.IncrementLoansUpdated()
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Entry{
			Action:    audit.ActionLoanUpdated,
			TableName: "loans",
			RecordID:  loanID.String(),
			Detail:    describe(patch),
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to write audit entry", "error", err, "action", audit.ActionLoanUpdated)
		}
	}
	return updated, nil
}

// ListByClient returns the client's loans with payments ordered by installment.
func (s *Service) ListByClient(ctx context.Context, clientID id.ClientID) ([]*models.Loan, error) {
	loans, err := s.store.ListByClient(ctx, clientID)
	if err != nil {
		return nil, translate(err, "failed to list loans")
	}
	return loans, nil
}

func translate(err error, msg string) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "loan not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func describe(p models.LoanPatch) string {
	var fields []string
	if p.Status != nil {
		fields = append(fields, "status="+p.Status.String())
	}
	if p.CurrentBalance != nil {
		fields = append(fields, "current_balance="+p.CurrentBalance.StringFixed(2))
	}
	if p.InterestRate != nil {
		fields = append(fields, "interest_rate="+p.InterestRate.StringFixed(2))
	}
	if p.Modality != nil {
		fields = append(fields, "modality="+string(*p.Modality))
	}
	if p.Installments != nil {
		fields = append(fields, "installments")
	}
	if p.OriginalAmount != nil {
		fields = append(fields, "original_amount="+p.OriginalAmount.StringFixed(2))
	}
	return strings.Join(fields, " ")
}
