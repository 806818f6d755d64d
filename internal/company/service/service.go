package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"miriesgo/internal/audit"
	"miriesgo/internal/company/models"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/sentinel"
	"miriesgo/pkg/platform/tx"
)

// Store persists companies.
//   - FindByNIT returns nil, nil on a miss
//   - FindByID and Update return sentinel.ErrNotFound
//   - Create returns sentinel.ErrAlreadyUsed for a taken NIT or code
type Store interface {
	FindByID(ctx context.Context, companyID id.CompanyID) (*models.Company, error)
	FindByNIT(ctx context.Context, nit string) (*models.Company, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Company, int, error)
	Create(ctx context.Context, nc models.NewCompany) (*models.Company, error)
	Update(ctx context.Context, c *models.Company) error
}

// Members reports the active users attached to a company.
type Members interface {
	CountActiveByCompany(ctx context.Context, companyID id.CompanyID) (int, error)
	ListActiveByCompany(ctx context.Context, companyID id.CompanyID) ([]models.Member, error)
}

type Option func(*Service)

type Service struct {
	store   Store
	users   Members
	tx      tx.Runner
	auditor *audit.Publisher
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

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithMembers lists company users and blocks deactivating a company that
// still has active ones.
func WithMembers(m Members) Option {
	return func(s *Service) { s.users = m }
}

func (s *Service) List(ctx context.Context, f models.ListFilter) (*models.Page, error) {
	f.Normalize()
	f.Search = strings.TrimSpace(f.Search)
	companies, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, translate(err, "failed to list companies")
	}
	return models.NewPage(companies, total, f), nil
}

func (s *Service) Get(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	c, err := s.store.FindByID(ctx, companyID)
	if err != nil {
		return nil, translate(err, "failed to load company")
	}
	return c, nil
}

// Users returns the company with its active users. Without a member source
// the list is empty.
func (s *Service) Users(ctx context.Context, companyID id.CompanyID) (*models.Roster, error) {
	c, err := s.store.FindByID(ctx, companyID)
	if err != nil {
		return nil, translate(err, "failed to load company")
	}
	roster := &models.Roster{Company: c, Members: []models.Member{}}
	if s.users == nil {
		return roster, nil
	}
	members, err := s.users.ListActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, translate(err, "failed to list company users")
	}
	roster.Members = members
	return roster, nil
}

func (s *Service) Create(ctx context.Context, nc models.NewCompany) (*models.Company, error) {
	var created *models.Company
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.store.FindByNIT(ctx, nc.NIT)
		if err != nil {
			return err
		}
		if existing != nil {
			return dErrors.New(dErrors.CodeConflict, "a company with that NIT already exists")
		}
		created, err = s.store.Create(ctx, nc)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to create company")
	}

	s.emit(ctx, audit.Entry{
		Action:    audit.ActionCompanyChange,
		TableName: "companies",
		RecordID:  created.ID.String(),
		Detail:    "created " + created.NIT,
	})
	return created, nil
}

func (s *Service) Update(ctx context.Context, companyID id.CompanyID, patch models.Patch) (*models.Company, error) {
	var updated *models.Company
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.store.FindByID(ctx, companyID)
		if err != nil {
			return err
		}
		patch.Apply(c)
		if err := s.store.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to update company")
	}

	s.emit(ctx, audit.Entry{
		Action:    audit.ActionCompanyChange,
		TableName: "companies",
		RecordID:  companyID.String(),
		Detail:    "updated",
	})
	return updated, nil
}

// Deactivate is the soft delete: the company stays referenced by loans and
// users but is marked inactive.
func (s *Service) Deactivate(ctx context.Context, companyID id.CompanyID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.store.FindByID(ctx, companyID)
		if err != nil {
			return err
		}
		if s.users != nil {
			n, err := s.users.CountActiveByCompany(ctx, companyID)
			if err != nil {
				return err
			}
			if n > 0 {
				return dErrors.New(dErrors.CodeConflict,
					"company still has "+strconv.Itoa(n)+" active users")
			}
		}
		c.Status = models.StatusInactive
		return s.store.Update(ctx, c)
	})
	if err != nil {
		return translate(err, "failed to deactivate company")
	}

	s.emit(ctx, audit.Entry{
		Action:    audit.ActionCompanyChange,
		TableName: "companies",
		RecordID:  companyID.String(),
		Detail:    "deactivated",
	})
	return nil
}

func (s *Service) emit(ctx context.Context, entry audit.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to write audit entry", "error", err, "action", entry.Action)
	}
}

func translate(err error, msg string) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "company not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "a company with that NIT or code already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
