package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	clientmodels "miriesgo/internal/client/models"
	companymodels "miriesgo/internal/company/models"
	loanmodels "miriesgo/internal/loan/models"
	"miriesgo/internal/platform/metrics"
	"miriesgo/internal/platform/tracer"
	"miriesgo/internal/upload/models"
	"miriesgo/internal/upload/parser"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/tx"
	"miriesgo/pkg/requestcontext"
)

// ClientStore finds clients by identifier (nil, nil on a miss) and creates them.
type ClientStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*clientmodels.Client, error)
	Create(ctx context.Context, nc clientmodels.NewClient) (*clientmodels.Client, error)
}

// CompanyFinder resolves a company by NIT, nil, nil on a miss.
type CompanyFinder interface {
	FindByNIT(ctx context.Context, nit string) (*companymodels.Company, error)
}

type LoanStore interface {
	FindByClientCompanyAndDate(ctx context.Context, clientID id.ClientID, companyID id.CompanyID, origination time.Time) (*loanmodels.Loan, error)
	Create(ctx context.Context, loan *loanmodels.Loan) error
	Update(ctx context.Context, loan *loanmodels.Loan) error
}

type ImporterOption func(*Importer)

func WithImporterTx(runner tx.Runner) ImporterOption {
	return func(i *Importer) { i.tx = runner }
}

func WithImporterLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) { i.logger = logger }
}

func WithImporterMetrics(m *metrics.Metrics) ImporterOption {
	return func(i *Importer) { i.metrics = m }
}

func WithImporterTracer(t tracer.Tracer) ImporterOption {
	return func(i *Importer) { i.tracer = t }
}

// Importer applies bureau files to the portfolio. Each record commits on
// its own so a bad line never rolls back the good ones.
type Importer struct {
	clients   ClientStore
	companies CompanyFinder
	loans     LoanStore
	tx        tx.Runner
	tracer    tracer.Tracer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewImporter(clients ClientStore, companies CompanyFinder, loans LoanStore, opts ...ImporterOption) *Importer {
	imp := &Importer{
		clients:   clients,
		companies: companies,
		loans:     loans,
		tx:        tx.NewInMemory(),
		tracer:    tracer.NewNoop(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

type recordOutcome struct {
	newClient   bool
	newLoan     bool
	updatedLoan bool
}

// errRecord marks a problem with the record's content rather than storage.
type errRecord struct{ msg string }

func (e errRecord) Error() string { return e.msg }

func (i *Importer) Import(ctx context.Context, fileName string, data []byte) (res *models.ProcessResult, err error) {
	ctx, span := i.tracer.Start(ctx, "upload.import", tracer.String("upload.file", fileName))
	defer func() { span.End(err) }()

	records, lineErrs, total, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	res = &models.ProcessResult{FileName: fileName, TotalRecords: total}
	for _, le := range lineErrs {
		res.Errors = append(res.Errors, le.Error())
	}

	today := loanmodels.Date(requestcontext.Now(ctx))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import interrupted at line %d: %w", rec.Line, err)
		}
		var out recordOutcome
		err := i.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			out, err = i.apply(ctx, rec, today)
			return err
		})
		if err != nil {
			msg := "error interno al guardar el registro"
			var bad errRecord
			if errors.As(err, &bad) {
				msg = bad.msg
			} else {
				i.logger.ErrorContext(ctx, "upload record failed", "line", rec.Line, "file_name", fileName, "error", err)
			}
			res.Errors = append(res.Errors, parser.LineError{Line: rec.Line, Msg: msg}.Error())
			continue
		}
		res.ProcessedRecords++
		if out.newClient {
			res.NewClients++
		}
		if out.newLoan {
			res.NewLoans++
		}
		if out.updatedLoan {
			res.UpdatedLoans++
		}
	}
	res.Finish()

	i.metrics.AddUploadRecords("processed", res.ProcessedRecords)
	i.metrics.AddUploadRecords("failed", len(res.Errors))
	span.SetAttributes(
		tracer.Int("upload.total", res.TotalRecords),
		tracer.Int("upload.processed", res.ProcessedRecords),
	)
	return res, nil
}

func (i *Importer) apply(ctx context.Context, rec models.Record, today time.Time) (recordOutcome, error) {
	var out recordOutcome

	company, err := i.companies.FindByNIT(ctx, rec.CompanyNIT)
	if err != nil {
		return out, fmt.Errorf("find company: %w", err)
	}
	if company == nil {
		return out, errRecord{"empresa no registrada: " + rec.CompanyNIT}
	}
	if company.Status != companymodels.StatusActive {
		return out, errRecord{"empresa inactiva: " + rec.CompanyNIT}
	}

	client, err := i.clients.FindByIdentifier(ctx, rec.NationalIdentifier)
	if err != nil {
		return out, fmt.Errorf("find client: %w", err)
	}
	if client == nil {
		client, err = i.clients.Create(ctx, clientmodels.NewClient{
			NationalIdentifier: rec.NationalIdentifier,
			FullName:           rec.FullName,
			BirthDate:          rec.BirthDate,
		})
		if err != nil {
			return out, fmt.Errorf("create client: %w", err)
		}
		out.newClient = true
	}

	loan, err := i.loans.FindByClientCompanyAndDate(ctx, client.ID, company.ID, rec.OriginationDate)
	if err != nil {
		return out, fmt.Errorf("find loan: %w", err)
	}
	if loan == nil {
		loan = &loanmodels.Loan{
			ClientID:        client.ID,
			CompanyID:       company.ID,
			OriginationDate: rec.OriginationDate,
		}
		fill(loan, rec, today)
		if err := i.loans.Create(ctx, loan); err != nil {
			return out, fmt.Errorf("create loan: %w", err)
		}
		out.newLoan = true
		return out, nil
	}

	fill(loan, rec, today)
	if err := i.loans.Update(ctx, loan); err != nil {
		return out, fmt.Errorf("update loan: %w", err)
	}
	out.updatedLoan = true
	return out, nil
}

func fill(l *loanmodels.Loan, rec models.Record, today time.Time) {
	l.OriginalAmount = rec.OriginalAmount
	l.Modality = rec.Modality
	l.InterestRate = rec.InterestRate
	l.Installments = rec.Installments
	l.CurrentBalance = rec.CurrentBalance
	l.Status = rec.Status
	l.LastReportDate = today
}
