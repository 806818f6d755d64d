package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"miriesgo/internal/audit"
	clientmodels "miriesgo/internal/client/models"
	loanmodels "miriesgo/internal/loan/models"
	"miriesgo/internal/platform/metrics"
	"miriesgo/internal/platform/tracer"
	"miriesgo/internal/report/models"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/tx"
	"miriesgo/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

// ClientReader resolves a client by national identifier; nil, nil on a miss.
type ClientReader interface {
	FindByIdentifier(ctx context.Context, identifier string) (*clientmodels.Client, error)
}

// LoanReader lists a client's loans with payments ordered by installment.
type LoanReader interface {
	ListByClient(ctx context.Context, clientID id.ClientID) ([]*loanmodels.Loan, error)
}

type Option func(*Service)

// Service assembles credit reports. It only reads.
type Service struct {
	clients ClientReader
	loans   LoanReader
	tx      tx.Runner
	tracer  tracer.Tracer
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(clients ClientReader, loans LoanReader, opts ...Option) *Service {
	svc := &Service{
		clients: clients,
		loans:   loans,
		tx:      tx.NewInMemory(),
		tracer:  tracer.NewNoop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithTx should be given a read-only runner.
func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
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

// BuildReport resolves the client by national identifier and assembles its
// history, loans and debt summary.
func (s *Service) BuildReport(ctx context.Context, identifier string) (report *models.CreditReport, err error) {
	ctx, span := s.tracer.Start(ctx, "report.build",
		tracer.String("client.hash", tracer.HashIdentifier(identifier)))
	defer func() { span.End(err) }()

	if identifier == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identifier is required")
	}

	var (
		client *clientmodels.Client
		loans  []*loanmodels.Loan
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		client, err = s.clients.FindByIdentifier(ctx, identifier)
		if err != nil {
			return fmt.Errorf("find client: %w", err)
		}
		if client == nil {
			return dErrors.New(dErrors.CodeNotFound, "client not found")
		}
		loans, err = s.loans.ListByClient(ctx, client.ID)
		if err != nil {
			return fmt.Errorf("list loans: %w", err)
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.metrics.IncrementReportsBuilt("not_found")
			return nil, err
		}
		s.metrics.IncrementReportsBuilt("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build credit report")
	}

	report = Assemble(client, loans, requestcontext.Now(ctx))
	span.SetAttributes(tracer.Int("report.loans", len(report.Loans)))
	s.metrics.IncrementReportsBuilt("ok")

	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Entry{
			Action:    audit.ActionReportViewed,
			TableName: "clients",
			RecordID:  client.ID.String(),
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to write audit entry", "error", err, "action", audit.ActionReportViewed)
		}
	}
	return report, nil
}

// Assemble is the pure part of BuildReport.
func Assemble(client *clientmodels.Client, loans []*loanmodels.Loan, now time.Time) *models.CreditReport {
	report := &models.CreditReport{
		Client: models.ReportClient{
			ID:                 int64(client.ID),
			NationalIdentifier: client.NationalIdentifier,
			FullName:           client.FullName,
			Addresses:          historic(client, clientmodels.KindAddress),
			Phones:             historic(client, clientmodels.KindPhone),
			Emails:             historic(client, clientmodels.KindEmail),
			Flags:              client.Tags(),
		},
		Loans: make([]models.ReportLoan, 0, len(loans)),
	}
	if client.BirthDate != nil {
		bd := client.BirthDate.Format(dateLayout)
		report.Client.BirthDate = &bd
	}

	var totals models.Totals
	for _, l := range loans {
		totals.Add(!l.Status.IsTerminal(), l.OriginalAmount, l.CurrentBalance)
		report.Loans = append(report.Loans, reportLoan(l, now))
	}
	report.DebtSummary = totals.Summary()
	return report
}

func historic(c *clientmodels.Client, kind clientmodels.HistoryKind) []models.HistoricEntry {
	entries := clientmodels.HistoryOf(c, kind)
	out := make([]models.HistoricEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.HistoricEntry{Value: e.Value, DateModified: e.RecordedAt})
	}
	return out
}

func reportLoan(l *loanmodels.Loan, now time.Time) models.ReportLoan {
	rl := models.ReportLoan{
		ID:              int64(l.ID),
		ClientID:        int64(l.ClientID),
		CompanyID:       int64(l.CompanyID),
		OriginationDate: l.OriginationDate.Format(dateLayout),
		OriginalAmount:  l.OriginalAmount.StringFixed(2),
		Modality:        string(l.Modality),
		InterestRate:    l.InterestRate.StringFixed(2),
		Installments:    l.Installments,
		CurrentBalance:  l.CurrentBalance.StringFixed(2),
		Status:          string(l.Status),
		LastReportDate:  l.LastReportDate.Format(dateLayout),
		Payments:        make([]models.ReportPayment, 0, len(l.Payments)),
	}
	payments := sortedByInstallment(l.Payments)
	for _, p := range payments {
		rp := models.ReportPayment{
			ID:                  int64(p.ID),
			LoanID:              int64(p.LoanID),
			InstallmentNumber:   p.InstallmentNumber,
			ExpectedPaymentDate: p.ExpectedPaymentDate.Format(dateLayout),
			Status:              string(p.Status),
			DaysLate:            p.DaysLate(now),
		}
		if p.ActualPaymentDate != nil {
			d := p.ActualPaymentDate.Format(dateLayout)
			rp.ActualPaymentDate = &d
		}
		if p.AmountPaid != nil {
			a := p.AmountPaid.StringFixed(2)
			rp.AmountPaid = &a
		}
		rl.Payments = append(rl.Payments, rp)
	}
	return rl
}

func sortedByInstallment(in []loanmodels.Payment) []loanmodels.Payment {
	out := slices.Clone(in)
	slices.SortFunc(out, func(a, b loanmodels.Payment) int {
		return cmp.Compare(a.InstallmentNumber, b.InstallmentNumber)
	})
	return out
}
