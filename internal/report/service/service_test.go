package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	clientmodels "miriesgo/internal/client/models"
	clientstore "miriesgo/internal/client/store"
	loanmodels "miriesgo/internal/loan/models"
	loanstore "miriesgo/internal/loan/store"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
)

type BuildReportSuite struct {
	suite.Suite
	clients *clientstore.InMemoryStore
	loans   *loanstore.InMemoryStore
	svc     *Service
	ctx     context.Context
}

func TestBuildReportSuite(t *testing.T) {
	suite.Run(t, new(BuildReportSuite))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *BuildReportSuite) SetupTest() {
	s.clients = clientstore.NewInMemory()
	s.loans = loanstore.NewInMemory()
	s.svc = New(s.clients, s.loans)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC))
}

func (s *BuildReportSuite) createClient(identifier string) *clientmodels.Client {
	bd := day(1985, 3, 14)
	c, err := s.clients.Create(s.ctx, clientmodels.NewClient{NationalIdentifier: identifier, FullName: "Ana Gómez", BirthDate: &bd})
	s.Require().NoError(err)
	return c
}

func (s *BuildReportSuite) createLoan(clientID id.ClientID, status loanmodels.LoanStatus, orig time.Time, original, balance string, payments ...loanmodels.Payment) {
	s.Require().NoError(s.loans.Create(s.ctx, &loanmodels.Loan{
		ClientID:        clientID,
		CompanyID:       1,
		OriginationDate: orig,
		OriginalAmount:  decimal.RequireFromString(original),
		Modality:        loanmodels.ModalityMonthly,
		InterestRate:    decimal.RequireFromString("2.5"),
		Installments:    12,
		CurrentBalance:  decimal.RequireFromString(balance),
		Status:          status,
		LastReportDate:  orig,
		Payments:        payments,
	}))
}

func (s *BuildReportSuite) TestPaidAndCurrentLoans() {
	c := s.createClient("123456780")
	s.createLoan(c.ID, loanmodels.StatusPaid, day(2022, 1, 1), "1000000.10", "0")
	s.createLoan(c.ID, loanmodels.StatusCurrent, day(2023, 6, 1), "2500000.20", "1250000.05")

	report, err := s.svc.BuildReport(s.ctx, "123456780")
	s.Require().NoError(err)

	s.Equal(2, report.DebtSummary.TotalCredits)
	s.Equal(1, report.DebtSummary.ActiveCredits)
	s.Equal(1, report.DebtSummary.PaidCredits)
	s.Equal("3500000.30", report.DebtSummary.TotalOriginalAmount)
	s.Equal("1250000.05", report.DebtSummary.TotalCurrentBalance)
	s.Equal(report.DebtSummary.TotalCredits, report.DebtSummary.ActiveCredits+report.DebtSummary.PaidCredits)
	s.Len(report.Loans, 2)
	s.Equal("1985-03-14", *report.Client.BirthDate)
}

func (s *BuildReportSuite) TestNoLoans() {
	s.createClient("42")

	report, err := s.svc.BuildReport(s.ctx, "42")
	s.Require().NoError(err)
	s.NotNil(report.Loans)
	s.Empty(report.Loans)
	s.Equal(0, report.DebtSummary.TotalCredits)
	s.Equal("0.00", report.DebtSummary.TotalOriginalAmount)
	s.Equal("0.00", report.DebtSummary.TotalCurrentBalance)
}

func (s *BuildReportSuite) TestHistoryPartitionedNewestFirst() {
	c := s.createClient("7")
	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i, v := range []string{"Calle 1", "Calle 2", "Calle 3"} {
		_, err := s.clients.AppendHistory(s.ctx, c.ID, clientmodels.KindAddress, v, t0.Add(time.Duration(i)*time.Hour))
		s.Require().NoError(err)
	}
	_, err := s.clients.AppendHistory(s.ctx, c.ID, clientmodels.KindPhone, "3001234567", t0)
	s.Require().NoError(err)

	report, err := s.svc.BuildReport(s.ctx, "7")
	s.Require().NoError(err)
	s.Require().Len(report.Client.Addresses, 3)
	s.Equal("Calle 3", report.Client.Addresses[0].Value)
	s.Equal("Calle 1", report.Client.Addresses[2].Value)
	s.Len(report.Client.Phones, 1)
	s.NotNil(report.Client.Emails)
	s.Empty(report.Client.Emails)
}

func (s *BuildReportSuite) TestPaymentsOrderedWithDaysLate() {
	c := s.createClient("8")
	paidOn := day(2024, 2, 15)
	s.createLoan(c.ID, loanmodels.StatusDelinquent, day(2024, 1, 1), "100", "80",
		loanmodels.Payment{InstallmentNumber: 2, ExpectedPaymentDate: day(2024, 3, 1), Status: loanmodels.PaymentLate},
		loanmodels.Payment{InstallmentNumber: 1, ExpectedPaymentDate: day(2024, 2, 1), ActualPaymentDate: &paidOn, Status: loanmodels.PaymentPaid},
	)

	report, err := s.svc.BuildReport(s.ctx, "8")
	s.Require().NoError(err)
	payments := report.Loans[0].Payments
	s.Require().Len(payments, 2)
	s.Equal(1, payments[0].InstallmentNumber)
	s.Equal(14, payments[0].DaysLate)
	s.Equal(2, payments[1].InstallmentNumber)
	s.Equal(40, payments[1].DaysLate)
}

func (s *BuildReportSuite) TestUnknownClientIsNotFound() {
	_, err := s.svc.BuildReport(s.ctx, "000")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *BuildReportSuite) TestStorageFailureIsInternal() {
	svc := New(failingClients{}, s.loans)
	_, err := svc.BuildReport(s.ctx, "1")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

type failingClients struct{}

func (failingClients) FindByIdentifier(context.Context, string) (*clientmodels.Client, error) {
	return nil, errors.New("connection refused")
}
