package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	companymodels "miriesgo/internal/company/models"
	"miriesgo/internal/dashboard/models"
	loanmodels "miriesgo/internal/loan/models"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
)

type stubLoans struct {
	summaries []loanmodels.Summary
	err       error
}

func (s stubLoans) Summaries(context.Context, time.Time) ([]loanmodels.Summary, error) {
	return s.summaries, s.err
}

type stubClients int

func (s stubClients) Count(context.Context) (int, error) { return int(s), nil }

type stubCompanies []*companymodels.Company

func (s stubCompanies) ListAll(context.Context) ([]*companymodels.Company, error) { return s, nil }

func portfolio() (stubLoans, stubClients, stubCompanies) {
	loans := stubLoans{summaries: []loanmodels.Summary{
		{LoanID: 1, ClientID: 1, CompanyID: 1, Status: loanmodels.StatusCurrent},
		{LoanID: 2, ClientID: 2, CompanyID: 1, Status: loanmodels.StatusDelinquent, MaxDaysLateUnpaid: 45},
		{LoanID: 3, ClientID: 2, CompanyID: 2, Status: loanmodels.StatusChargedOff, MaxDaysLateUnpaid: 120},
		{LoanID: 4, ClientID: 3, CompanyID: 2, Status: loanmodels.StatusLegal, MaxDaysLateUnpaid: 10},
	}}
	companies := stubCompanies{
		{ID: 1, Name: "Financiera Andina"},
		{ID: 2, Name: "Crédito Caribe"},
	}
	return loans, stubClients(5), companies
}

func TestDashboardForAdmin(t *testing.T) {
	loans, clients, companies := portfolio()
	svc := New(loans, clients, companies)
	ctx := requestcontext.WithPrincipal(context.Background(), requestcontext.Principal{UserID: 1, Role: id.RoleAdmin})

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)

	g := dash.General
	assert.Equal(t, 5, g.TotalClients)
	assert.Equal(t, 1, g.ClientsWithArrears)
	assert.Equal(t, 1, g.ClientsInLegal)
	assert.Equal(t, 3, g.ActiveClientsUpToDate)
	assert.Equal(t, map[string]int{"1-30": 1, "31-60": 0, "61-90": 0, "91+": 1}, g.MoraDistribution)

	require.Len(t, dash.Companies, 2)
	andina := dash.Companies[0]
	assert.Equal(t, "Financiera Andina", andina.Company)
	assert.Equal(t, 2, andina.TotalClients)
	assert.Equal(t, 1, andina.ClientsWithArrears)
	assert.Equal(t, 1, andina.MoraDistribution["31-60"])

	caribe := dash.Companies[1]
	assert.Equal(t, 2, caribe.TotalClients)
	assert.Equal(t, 0, caribe.ActiveClientsUpToDate)
}

func TestDashboardScopedToCompany(t *testing.T) {
	loans, clients, companies := portfolio()
	svc := New(loans, clients, companies)
	company := id.CompanyID(1)
	ctx := requestcontext.WithPrincipal(context.Background(), requestcontext.Principal{
		UserID: 2, Role: id.RoleAnalyst, CompanyID: &company,
	})

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.General.TotalClients)
	require.Len(t, dash.Companies, 1)
	assert.Equal(t, int64(1), dash.Companies[0].CompanyID)
}

func TestDashboardStoreFailure(t *testing.T) {
	_, clients, companies := portfolio()
	svc := New(stubLoans{err: errors.New("connection refused")}, clients, companies)

	_, err := svc.Dashboard(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestUpToDateIsFloored(t *testing.T) {
	c := models.Tally(1, []loanmodels.Summary{
		{ClientID: 1, Status: loanmodels.StatusDelinquent},
		{ClientID: 2, Status: loanmodels.StatusSeized},
	})
	assert.Equal(t, 0, c.ActiveClientsUpToDate)
}

func TestBucket(t *testing.T) {
	cases := map[int]string{0: "", 1: "1-30", 30: "1-30", 31: "31-60", 60: "31-60", 61: "61-90", 90: "61-90", 91: "91+"}
	for days, want := range cases {
		assert.Equal(t, want, models.Bucket(days), "days=%d", days)
	}
}
