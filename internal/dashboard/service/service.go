package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	companymodels "miriesgo/internal/company/models"
	"miriesgo/internal/dashboard/models"
	loanmodels "miriesgo/internal/loan/models"
	"miriesgo/internal/platform/tracer"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/tx"
	"miriesgo/pkg/requestcontext"
)

type LoanSummarizer interface {
	Summaries(ctx context.Context, today time.Time) ([]loanmodels.Summary, error)
}

type ClientCounter interface {
	Count(ctx context.Context) (int, error)
}

type CompanyLister interface {
	ListAll(ctx context.Context) ([]*companymodels.Company, error)
}

type Option func(*Service)

type Service struct {
	loans     LoanSummarizer
	clients   ClientCounter
	companies CompanyLister
	tx        tx.Runner
	tracer    tracer.Tracer
	logger    *slog.Logger
}

func New(loans LoanSummarizer, clients ClientCounter, companies CompanyLister, opts ...Option) *Service {
	svc := &Service{
		loans:     loans,
		clients:   clients,
		companies: companies,
		tx:        tx.NewInMemory(),
		tracer:    tracer.NewNoop(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Dashboard returns portfolio counters. Users bound to a company only see
// that company; admins see the whole portfolio.
func (s *Service) Dashboard(ctx context.Context) (dash *models.Dashboard, err error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.build")
	defer func() { span.End(err) }()

	var (
		summaries []loanmodels.Summary
		total     int
		companies []*companymodels.Company
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if summaries, err = s.loans.Summaries(ctx, requestcontext.Now(ctx)); err != nil {
			return fmt.Errorf("loan summaries: %w", err)
		}
		if total, err = s.clients.Count(ctx); err != nil {
			return fmt.Errorf("count clients: %w", err)
		}
		if companies, err = s.companies.ListAll(ctx); err != nil {
			return fmt.Errorf("list companies: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build dashboard")
	}

	if scope := scopedCompany(ctx); scope != nil {
		summaries = forCompany(summaries, *scope)
		total = models.DistinctClients(summaries)
		companies = slices.DeleteFunc(companies, func(c *companymodels.Company) bool { return c.ID != *scope })
	}

	dash = &models.Dashboard{
		General:   models.Tally(total, summaries),
		Companies: make([]models.CompanyCounters, 0, len(companies)),
	}
	for _, c := range companies {
		own := forCompany(summaries, c.ID)
		dash.Companies = append(dash.Companies, models.CompanyCounters{
			Company:   c.Name,
			CompanyID: int64(c.ID),
			Counters:  models.Tally(models.DistinctClients(own), own),
		})
	}
	span.SetAttributes(tracer.Int("dashboard.companies", len(dash.Companies)))
	return dash, nil
}

func scopedCompany(ctx context.Context) *id.CompanyID {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok || p.Role == id.RoleAdmin {
		return nil
	}
	return p.CompanyID
}

func forCompany(summaries []loanmodels.Summary, companyID id.CompanyID) []loanmodels.Summary {
	out := make([]loanmodels.Summary, 0, len(summaries))
	for _, sum := range summaries {
		if sum.CompanyID == companyID {
			out = append(out, sum)
		}
	}
	return out
}
