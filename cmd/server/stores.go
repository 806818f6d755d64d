package main

import (
	"context"
	"time"

	"miriesgo/internal/audit"
	authmodels "miriesgo/internal/auth/models"
	authservice "miriesgo/internal/auth/service"
	"miriesgo/internal/auth/store/revocation"
	"miriesgo/internal/auth/store/session"
	userstore "miriesgo/internal/auth/store/user"
	clientservice "miriesgo/internal/client/service"
	clientstore "miriesgo/internal/client/store"
	companymodels "miriesgo/internal/company/models"
	companyservice "miriesgo/internal/company/service"
	companystore "miriesgo/internal/company/store"
	loanmodels "miriesgo/internal/loan/models"
	loanservice "miriesgo/internal/loan/service"
	loanstore "miriesgo/internal/loan/store"
	"miriesgo/internal/platform/database"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/tx"
)

type loanStore interface {
	loanservice.Store
	FindByClientCompanyAndDate(ctx context.Context, clientID id.ClientID, companyID id.CompanyID, origination time.Time) (*loanmodels.Loan, error)
	Create(ctx context.Context, loan *loanmodels.Loan) error
	CountByClient(ctx context.Context, clientID id.ClientID) (int, error)
	Summaries(ctx context.Context, today time.Time) ([]loanmodels.Summary, error)
}

type companyStore interface {
	companyservice.Store
	ListAll(ctx context.Context) ([]*companymodels.Company, error)
}

type userStore interface {
	authservice.UserStore
	CountActiveByCompany(ctx context.Context, companyID id.CompanyID) (int, error)
	ListActiveByCompany(ctx context.Context, companyID id.CompanyID) ([]*authmodels.User, error)
}

// companyMembers presents operators as company members.
type companyMembers struct {
	users userStore
}

func (m companyMembers) CountActiveByCompany(ctx context.Context, companyID id.CompanyID) (int, error) {
	return m.users.CountActiveByCompany(ctx, companyID)
}

func (m companyMembers) ListActiveByCompany(ctx context.Context, companyID id.CompanyID) ([]companymodels.Member, error) {
	users, err := m.users.ListActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]companymodels.Member, 0, len(users))
	for _, u := range users {
		out = append(out, companymodels.Member{
			ID:        u.ID,
			FullName:  u.FullName,
			Email:     u.Email,
			Role:      u.Role,
			LastLogin: u.LastLogin,
			CreatedAt: u.CreatedAt,
		})
	}
	return out, nil
}

// stores is the persistence graph, Postgres-backed or in memory.
type stores struct {
	clients   clientservice.Store
	loans     loanStore
	companies companyStore
	users     userStore
	sessions  authservice.SessionStore
	audit     audit.Store
	revoked   revocation.List
	tx        tx.Runner
	readTx    tx.Runner
	// purge is set when revocations live in Postgres.
	purge *revocation.PostgresList
}

func postgresStores(pool *database.Pool) *stores {
	db := pool.DB()
	revoked := revocation.NewPostgresList(db)
	return &stores{
		clients:   clientstore.NewPostgres(db),
		loans:     loanstore.NewPostgres(db),
		companies: companystore.NewPostgres(db),
		users:     userstore.NewPostgres(db),
		sessions:  session.NewPostgres(db),
		audit:     audit.NewPostgresStore(db),
		revoked:   revoked,
		tx:        tx.NewPostgres(db),
		readTx:    tx.NewPostgres(db, tx.ReadOnly()),
		purge:     revoked,
	}
}

func memoryStores() *stores {
	clients := clientstore.NewInMemory()
	loans := loanstore.NewInMemory()
	return &stores{
		clients:   clients,
		loans:     loans,
		companies: companystore.NewInMemory(),
		users:     userstore.NewInMemoryUserStore(),
		sessions:  session.NewInMemory(),
		audit:     audit.NewInMemoryStore(),
		revoked:   revocation.NewInMemoryList(),
		tx:        tx.NewInMemory(clients, loans),
		readTx:    tx.NewInMemory(),
	}
}
