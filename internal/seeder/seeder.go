// Package seeder loads a demo portfolio: companies, clients with contact
// history, loans with payment schedules and an administrator account.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	authmodels "miriesgo/internal/auth/models"
	clientmodels "miriesgo/internal/client/models"
	companymodels "miriesgo/internal/company/models"
	loanmodels "miriesgo/internal/loan/models"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/platform/tx"
	"miriesgo/pkg/secrets"
)

const AdminEmail = "admin@miriesgo.co"

type CompanyStore interface {
	FindByNIT(ctx context.Context, nit string) (*companymodels.Company, error)
	Create(ctx context.Context, nc companymodels.NewCompany) (*companymodels.Company, error)
}

type ClientStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*clientmodels.Client, error)
	Create(ctx context.Context, nc clientmodels.NewClient) (*clientmodels.Client, error)
	AppendHistory(ctx context.Context, clientID id.ClientID, kind clientmodels.HistoryKind, value string, recordedAt time.Time) (*clientmodels.HistoryEntry, error)
	AddFlags(ctx context.Context, clientID id.ClientID, tags []string) error
}

type LoanStore interface {
	FindByClientCompanyAndDate(ctx context.Context, clientID id.ClientID, companyID id.CompanyID, origination time.Time) (*loanmodels.Loan, error)
	Create(ctx context.Context, loan *loanmodels.Loan) error
}

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*authmodels.User, error)
	Create(ctx context.Context, nu authmodels.NewUser) (*authmodels.User, error)
}

type Stores struct {
	Companies CompanyStore
	Clients   ClientStore
	Loans     LoanStore
	Users     UserStore
}

// Result reports what was created. AdminPassword is only set when the
// admin account was created by this run.
type Result struct {
	Companies     int
	Clients       int
	Loans         int
	AdminPassword string
}

type Seeder struct {
	stores Stores
	tx     tx.Runner
	now    func() time.Time
	logger *slog.Logger
}

func New(stores Stores, runner tx.Runner, logger *slog.Logger) *Seeder {
	if runner == nil {
		runner = tx.NewInMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{stores: stores, tx: runner, now: time.Now, logger: logger}
}

type demoClient struct {
	identifier string
	name       string
	birth      string
	address    string
	phone      string
	email      string
	flags      []string
	loans      []demoLoan
}

type demoLoan struct {
	companyNIT   string
	monthsAgo    int
	amount       int64
	modality     loanmodels.Modality
	rate         string
	installments int
	status       loanmodels.LoanStatus
	// paid installments; the rest stay unpaid and may be late
	paid int
}

var demoCompanies = []companymodels.NewCompany{
	{Name: "Financiera Andina", NIT: "900123456", TransUnionCode: "FA01", Address: "Cra 7 # 71-21, Bogotá", Phone: "6013456789", Email: "contacto@andina.co"},
	{Name: "Crédito Caribe", NIT: "900654321", TransUnionCode: "CC02", Address: "Calle 72 # 54-35, Barranquilla", Phone: "6053214567", Email: "info@creditocaribe.co"},
	{Name: "Cooperativa del Valle", NIT: "890987654", TransUnionCode: "CV03", Address: "Av 6N # 23-45, Cali", Phone: "6028889900", Email: "servicio@coovalle.co"},
}

var demoClients = []demoClient{
	{
		identifier: "123456780", name: "Ana María Pérez Gómez", birth: "1985-04-12",
		address: "Calle 45 # 12-30, Bogotá", phone: "3001234567", email: "ana.perez@correo.co",
		loans: []demoLoan{
			{companyNIT: "900123456", monthsAgo: 10, amount: 5000000, modality: loanmodels.ModalityMonthly, rate: "2.10", installments: 12, status: loanmodels.StatusCurrent, paid: 10},
			{companyNIT: "900654321", monthsAgo: 30, amount: 1200000, modality: loanmodels.ModalityMonthly, rate: "1.80", installments: 6, status: loanmodels.StatusPaid, paid: 6},
		},
	},
	{
		identifier: "79845123", name: "Carlos Andrés Ruiz", birth: "1978-11-02",
		address: "Cra 50 # 80-12, Barranquilla", phone: "3109876543", email: "carlos.ruiz@correo.co",
		flags: []string{"Reestructurado"},
		loans: []demoLoan{
			{companyNIT: "900654321", monthsAgo: 8, amount: 3000000, modality: loanmodels.ModalityMonthly, rate: "2.50", installments: 12, status: loanmodels.StatusDelinquent, paid: 6},
		},
	},
	{
		identifier: "1020304050", name: "Luisa Fernanda Ortiz", birth: "1992-07-21",
		address: "Av 3N # 10-50, Cali", phone: "3154567890", email: "luisa.ortiz@correo.co",
		flags: []string{"Proceso jurídico"},
		loans: []demoLoan{
			{companyNIT: "890987654", monthsAgo: 14, amount: 8000000, modality: loanmodels.ModalityMonthly, rate: "1.90", installments: 24, status: loanmodels.StatusLegal, paid: 9},
		},
	},
	{
		identifier: "52147896", name: "Jorge Iván Castaño",
		address: "Calle 10 # 43-20, Medellín", phone: "3012223344", email: "jorge.castano@correo.co",
		loans: []demoLoan{
			{companyNIT: "900123456", monthsAgo: 3, amount: 900000, modality: loanmodels.ModalityBiweekly, rate: "2.00", installments: 12, status: loanmodels.StatusCurrent, paid: 6},
		},
	},
}

// Seed is idempotent: rows that already exist are left alone.
func (s *Seeder) Seed(ctx context.Context) (*Result, error) {
	res := &Result{}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		companies, err := s.seedCompanies(ctx, res)
		if err != nil {
			return fmt.Errorf("seed companies: %w", err)
		}
		if err := s.seedClients(ctx, companies, res); err != nil {
			return fmt.Errorf("seed clients: %w", err)
		}
		if err := s.seedAdmin(ctx, res); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "demo data seeded",
		"companies", res.Companies,
		"clients", res.Clients,
		"loans", res.Loans,
		"admin_created", res.AdminPassword != "",
	)
	return res, nil
}

func (s *Seeder) seedCompanies(ctx context.Context, res *Result) (map[string]id.CompanyID, error) {
	byNIT := make(map[string]id.CompanyID, len(demoCompanies))
	for _, nc := range demoCompanies {
		c, err := s.stores.Companies.FindByNIT(ctx, nc.NIT)
		if err != nil {
			return nil, err
		}
		if c == nil {
			if c, err = s.stores.Companies.Create(ctx, nc); err != nil {
				return nil, err
			}
			res.Companies++
		}
		byNIT[nc.NIT] = c.ID
	}
	return byNIT, nil
}

func (s *Seeder) seedClients(ctx context.Context, companies map[string]id.CompanyID, res *Result) error {
	now := s.now()
	for _, dc := range demoClients {
		c, err := s.stores.Clients.FindByIdentifier(ctx, dc.identifier)
		if err != nil {
			return err
		}
		if c == nil {
			nc := clientmodels.NewClient{NationalIdentifier: dc.identifier, FullName: dc.name}
			if dc.birth != "" {
				bd, err := time.Parse("2006-01-02", dc.birth)
				if err != nil {
					return fmt.Errorf("client %s birth date: %w", dc.identifier, err)
				}
				nc.BirthDate = &bd
			}
			if c, err = s.stores.Clients.Create(ctx, nc); err != nil {
				return err
			}
			contact := map[clientmodels.HistoryKind]string{
				clientmodels.KindAddress: dc.address,
				clientmodels.KindPhone:   dc.phone,
				clientmodels.KindEmail:   dc.email,
			}
			for _, kind := range clientmodels.Kinds {
				if _, err := s.stores.Clients.AppendHistory(ctx, c.ID, kind, contact[kind], now); err != nil {
					return err
				}
			}
			if len(dc.flags) > 0 {
				if err := s.stores.Clients.AddFlags(ctx, c.ID, dc.flags); err != nil {
					return err
				}
			}
			res.Clients++
		}

		for _, dl := range dc.loans {
			companyID, ok := companies[dl.companyNIT]
			if !ok {
				return fmt.Errorf("unknown company %s", dl.companyNIT)
			}
			loan := buildLoan(c.ID, companyID, dl, now)
			existing, err := s.stores.Loans.FindByClientCompanyAndDate(ctx, c.ID, companyID, loan.OriginationDate)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			if err := s.stores.Loans.Create(ctx, loan); err != nil {
				return err
			}
			res.Loans++
		}
	}
	return nil
}

func buildLoan(clientID id.ClientID, companyID id.CompanyID, dl demoLoan, now time.Time) *loanmodels.Loan {
	origination := loanmodels.Date(now.AddDate(0, -dl.monthsAgo, 0))
	amount := decimal.NewFromInt(dl.amount)
	quota := amount.Div(decimal.NewFromInt(int64(dl.installments))).Round(2)

	loan := &loanmodels.Loan{
		ClientID:        clientID,
		CompanyID:       companyID,
		OriginationDate: origination,
		OriginalAmount:  amount,
		Modality:        dl.modality,
		InterestRate:    decimal.RequireFromString(dl.rate),
		Installments:    dl.installments,
		CurrentBalance:  amount.Sub(quota.Mul(decimal.NewFromInt(int64(dl.paid)))),
		Status:          dl.status,
		LastReportDate:  loanmodels.Date(now),
	}
	if loan.CurrentBalance.IsNegative() || dl.status == loanmodels.StatusPaid {
		loan.CurrentBalance = decimal.Zero
	}
	for n := 1; n <= dl.installments; n++ {
		p := loanmodels.Payment{
			InstallmentNumber:   n,
			ExpectedPaymentDate: dl.modality.InstallmentDate(origination, n),
			Status:              loanmodels.PaymentPending,
		}
		if n <= dl.paid {
			paidOn := p.ExpectedPaymentDate
			paidAmount := quota
			p.ActualPaymentDate = &paidOn
			p.AmountPaid = &paidAmount
			p.Status = loanmodels.PaymentPaid
		} else if p.ExpectedPaymentDate.Before(now) {
			p.Status = loanmodels.PaymentLate
		}
		loan.Payments = append(loan.Payments, p)
	}
	return loan
}

func (s *Seeder) seedAdmin(ctx context.Context, res *Result) error {
	_, err := s.stores.Users.FindByEmail(ctx, AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}

	password, err := secrets.Generate()
	if err != nil {
		return err
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return err
	}
	if _, err := s.stores.Users.Create(ctx, authmodels.NewUser{
		FullName:           "Administrador MIRIESGO",
		NationalIdentifier: "1000000001",
		Email:              AdminEmail,
		PasswordHash:       hash,
		Role:               id.RoleAdmin,
	}); err != nil {
		return err
	}
	res.AdminPassword = password
	return nil
}
