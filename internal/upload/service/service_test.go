package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"miriesgo/internal/audit"
	clientstore "miriesgo/internal/client/store"
	companymodels "miriesgo/internal/company/models"
	companystore "miriesgo/internal/company/store"
	loanmodels "miriesgo/internal/loan/models"
	loanstore "miriesgo/internal/loan/store"
	"miriesgo/internal/upload/jobs"
	"miriesgo/internal/upload/models"
	"miriesgo/internal/upload/worker"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
)

type UploadServiceSuite struct {
	suite.Suite
	ctx       context.Context
	clients   *clientstore.InMemoryStore
	companies *companystore.InMemoryStore
	loans     *loanstore.InMemoryStore
	importer  *Importer
	company   *companymodels.Company
	today     time.Time
}

func TestUploadServiceSuite(t *testing.T) {
	suite.Run(t, new(UploadServiceSuite))
}

func (s *UploadServiceSuite) SetupTest() {
	s.today = time.Date(2026, 4, 30, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.today)
	s.ctx = requestcontext.WithPrincipal(s.ctx, requestcontext.Principal{UserID: 9, Role: id.RoleManager})

	s.clients = clientstore.NewInMemory()
	s.companies = companystore.NewInMemory()
	s.loans = loanstore.NewInMemory()
	s.importer = NewImporter(s.clients, s.companies, s.loans)

	var err error
	s.company, err = s.companies.Create(s.ctx, companymodels.NewCompany{Name: "Financiera Andina", NIT: "900123456", TransUnionCode: "FA01"})
	s.Require().NoError(err)
}

func lines(ls ...string) []byte {
	return []byte(strings.Join(ls, "\n") + "\n")
}

func (s *UploadServiceSuite) TestImportCreatesAndUpdates() {
	first := lines(
		"# cartera abril",
		"123456780|Ana María Pérez|1985-04-12|900123456|2024-01-15|5000000|Mensual|2.1|12|3200000|Vigente",
		"987654321|Carlos Ruiz||900123456|2023-06-01|1200000|Quincenal|1.8|24|0|Pagado",
	)
	res, err := s.importer.Import(s.ctx, "abril.txt", first)
	s.Require().NoError(err)
	s.Equal(models.JobSuccess, res.Status)
	s.Equal(2, res.TotalRecords)
	s.Equal(2, res.ProcessedRecords)
	s.Equal(2, res.NewClients)
	s.Equal(2, res.NewLoans)
	s.Equal(0, res.UpdatedLoans)
	s.Empty(res.Errors)

	second := lines(
		"123456780|Ana María Pérez|1985-04-12|900123456|2024-01-15|5000000|Mensual|2.1|12|2900000|En Mora",
	)
	res, err = s.importer.Import(s.ctx, "mayo.txt", second)
	s.Require().NoError(err)
	s.Equal(0, res.NewClients)
	s.Equal(0, res.NewLoans)
	s.Equal(1, res.UpdatedLoans)

	client, err := s.clients.FindByIdentifier(s.ctx, "123456780")
	s.Require().NoError(err)
	s.Require().NotNil(client)
	loan, err := s.loans.FindByClientCompanyAndDate(s.ctx, client.ID, s.company.ID, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().NotNil(loan)
	s.Equal(loanmodels.StatusDelinquent, loan.Status)
	s.Equal("2900000", loan.CurrentBalance.String())
	s.Equal(loanmodels.Date(s.today), loan.LastReportDate)
}

func (s *UploadServiceSuite) TestImportCollectsLineErrors() {
	data := lines(
		"123456780|Ana María Pérez|1985-04-12|900123456|2024-01-15|5000000|Mensual|2.1|12|3200000|Vigente",
		"555|Sin Empresa||800000000|2024-01-15|100|Mensual|1|1|1|Vigente",
		"roto",
	)
	res, err := s.importer.Import(s.ctx, "mixto.txt", data)
	s.Require().NoError(err)
	s.Equal(models.JobPartial, res.Status)
	s.Equal(3, res.TotalRecords)
	s.Equal(1, res.ProcessedRecords)
	s.Require().Len(res.Errors, 2)
	s.Contains(res.Errors[0], "línea 3")
	s.Contains(res.Errors[1], "línea 2: empresa no registrada: 800000000")

	missing, err := s.clients.FindByIdentifier(s.ctx, "555")
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *UploadServiceSuite) TestImportEmptyFile() {
	res, err := s.importer.Import(s.ctx, "vacio.txt", lines("# nada"))
	s.Require().NoError(err)
	s.Equal(models.JobError, res.Status)
	s.Equal([]string{}, res.Errors)
}

func (s *UploadServiceSuite) TestSubmitRunsJobThroughPool() {
	registry := jobs.NewRegistry(time.Hour, nil)
	pool := worker.NewPool(Processor(s.importer, registry), worker.WithWorkers(1), worker.WithQueueSize(2))
	auditStore := audit.NewInMemoryStore()
	svc := New(pool, registry, WithAuditor(audit.NewPublisher(auditStore)))

	job, err := svc.Submit(s.ctx, "../cartera.txt", lines(
		"123456780|Ana María Pérez|1985-04-12|900123456|2024-01-15|5000000|Mensual|2.1|12|3200000|Vigente",
	))
	s.Require().NoError(err)
	s.Equal("cartera.txt", job.FileName)
	s.Equal(models.JobQueued, job.Status)
	s.Equal(int64(9), job.SubmittedBy)

	done := make(chan struct{})
	go func() {
		registry.Consume(context.Background(), pool.Results())
		close(done)
	}()
	go func() { _ = pool.Run(context.Background()) }()
	s.Require().NoError(pool.Close(context.Background()))
	<-done

	got, err := svc.Job(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobSuccess, got.Status)
	s.Require().NotNil(got.Result)
	s.Equal(1, got.Result.NewLoans)

	entries, err := auditStore.ListByUser(s.ctx, 9, 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionFileUploaded, entries[0].Action)
}

func (s *UploadServiceSuite) TestSubmitValidation() {
	registry := jobs.NewRegistry(time.Hour, nil)
	svc := New(worker.NewPool(Processor(s.importer, registry)), registry)

	_, err := svc.Submit(s.ctx, "cartera.csv", []byte("x"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Submit(s.ctx, "cartera.txt", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *UploadServiceSuite) TestSubmitQueueFull() {
	registry := jobs.NewRegistry(time.Hour, nil)
	pool := worker.NewPool(Processor(s.importer, registry), worker.WithQueueSize(1))
	svc := New(pool, registry)

	_, err := svc.Submit(s.ctx, "a.txt", []byte("x"))
	s.Require().NoError(err)
	_, err = svc.Submit(s.ctx, "b.txt", []byte("x"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
