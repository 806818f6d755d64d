package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"miriesgo/internal/audit"
	"miriesgo/internal/client/models"
	"miriesgo/internal/platform/metrics"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/sentinel"
	s "miriesgo/pkg/platform/strings"
	"miriesgo/pkg/platform/tx"
	"miriesgo/pkg/requestcontext"
	"miriesgo/pkg/validation"
)

// Store is the client identity store.
// Error contract:
//   - FindByIdentifier returns nil, nil on a miss
//   - FindByID, UpdateFullName, AppendHistory and Delete return sentinel.ErrNotFound
//   - Create returns sentinel.ErrAlreadyUsed on a duplicate identifier
//   - Delete returns sentinel.ErrInUse while loans reference the client
type Store interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Client, error)
	FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	ListAll(ctx context.Context) ([]*models.Client, error)
	Create(ctx context.Context, nc models.NewClient) (*models.Client, error)
	UpdateFullName(ctx context.Context, clientID id.ClientID, fullName string) error
	AppendHistory(ctx context.Context, clientID id.ClientID, kind models.HistoryKind, value string, recordedAt time.Time) (*models.HistoryEntry, error)
	AddFlags(ctx context.Context, clientID id.ClientID, tags []string) error
	RemoveFlags(ctx context.Context, clientID id.ClientID, tags []string) error
	Delete(ctx context.Context, clientID id.ClientID) error
	Count(ctx context.Context) (int, error)
}

// LoanCounter reports how many loans reference a client.
type LoanCounter interface {
	CountByClient(ctx context.Context, clientID id.ClientID) (int, error)
}

type Option func(*Service)

// Service owns client identity: reconciliation of operator updates,
// lookups and deletion.
type Service struct {
	store   Store
	loans   LoanCounter
	tx      tx.Runner
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store Store, opts ...Option) *Service {
	var runner *tx.InMemory
	if snap, ok := store.(tx.Snapshotter); ok {
		runner = tx.NewInMemory(snap)
	} else {
		runner = tx.NewInMemory()
	}
	svc := &Service{
		store:  store,
		tx:     runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithLoanCounter makes Delete refuse clients that still own loans before
// touching the store.
func WithLoanCounter(lc LoanCounter) Option {
	return func(s *Service) {
		s.loans = lc
	}
}

// Reconcile applies an operator's desired state to a client in one
// transaction: the name is overwritten, a contact value is appended only when
// it differs from the current one, and flags are brought to exactly the
// submitted set.
func (svc *Service) Reconcile(ctx context.Context, clientID id.ClientID, payload models.UpdatePayload) (*models.Client, error) {
	payload, err := normalizePayload(payload)
	if err != nil {
		return nil, err
	}

	var (
		result   *models.Client
		appended = map[models.HistoryKind]int{}
		added    []string
		removed  []string
	)
	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		client, err := svc.store.FindByID(ctx, clientID)
		if err != nil {
			return err
		}
		if err := svc.store.UpdateFullName(ctx, clientID, payload.FullName); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		for _, kind := range models.Kinds {
			want := payload.ContactValue(kind)
			if current, ok := models.CurrentValueOf(client, kind); ok && current == want {
				continue
			}
			if _, err := svc.store.AppendHistory(ctx, clientID, kind, want, now); err != nil {
				return err
			}
			appended[kind]++
		}

		existing := client.Tags()
		removed = s.Difference(existing, payload.Flags)
		added = s.Difference(payload.Flags, existing)
		if len(removed) > 0 {
			if err := svc.store.RemoveFlags(ctx, clientID, removed); err != nil {
				return err
			}
		}
		if len(added) > 0 {
			if err := svc.store.AddFlags(ctx, clientID, added); err != nil {
				return err
			}
		}

		result, err = svc.store.FindByID(ctx, clientID)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to update client")
	}

	svc.metrics.IncrementReconciliations()
	for kind, n := range appended {
		svc.metrics.AddHistoryAppended(string(kind), n)
	}
	svc.metrics.AddFlagsChanged("add", len(added))
	svc.metrics.AddFlagsChanged("remove", len(removed))

	svc.emit(ctx, audit.Entry{
		Action:    audit.ActionClientUpdated,
		TableName: "clients",
		RecordID:  clientID.String(),
		Detail:    summarize(appended, added, removed),
	})
	return result, nil
}

func (svc *Service) Get(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	c, err := svc.store.FindByID(ctx, clientID)
	if err != nil {
		return nil, translate(err, "failed to load client")
	}
	return c, nil
}

// List returns every client ordered by full name.
func (svc *Service) List(ctx context.Context) ([]*models.Client, error) {
	clients, err := svc.store.ListAll(ctx)
	if err != nil {
		return nil, translate(err, "failed to list clients")
	}
	return clients, nil
}

// Delete removes a client with its history and flags. Clients that still
// own loans are a conflict.
func (svc *Service) Delete(ctx context.Context, clientID id.ClientID) error {
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		if svc.loans != nil {
			if _, err := svc.store.FindByID(ctx, clientID); err != nil {
				return err
			}
			n, err := svc.loans.CountByClient(ctx, clientID)
			if err != nil {
				return err
			}
			if n > 0 {
				return sentinel.ErrInUse
			}
		}
		return svc.store.Delete(ctx, clientID)
	})
	if err != nil {
		return translate(err, "failed to delete client")
	}

	svc.emit(ctx, audit.Entry{
		Action:    audit.ActionClientDeleted,
		TableName: "clients",
		RecordID:  clientID.String(),
	})
	return nil
}

func (svc *Service) emit(ctx context.Context, entry audit.Entry) {
	if svc.auditor == nil {
		return
	}
	if err := svc.auditor.Emit(ctx, entry); err != nil {
		svc.logger.ErrorContext(ctx, "failed to write audit entry",
			"error", err,
			"action", entry.Action,
		)
	}
}

func normalizePayload(p models.UpdatePayload) (models.UpdatePayload, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Address = strings.TrimSpace(p.Address)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	if p.FullName == "" {
		return p, dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if s.HasBlank(p.Flags) {
		return p, dErrors.New(dErrors.CodeValidation, "flags must not contain blank tags")
	}
	p.Flags = s.DedupeAndTrim(p.Flags)
	if err := validation.CheckSliceCount("flags", len(p.Flags), validation.MaxFlags); err != nil {
		return p, err
	}
	if err := validation.CheckEachStringLength("flags", p.Flags, validation.MaxFlagLength); err != nil {
		return p, err
	}
	return p, nil
}

// translate maps store sentinels onto domain errors exactly once.
func translate(err error, msg string) error {
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "client not found")
	case errors.Is(err, sentinel.ErrInUse):
		return dErrors.New(dErrors.CodeConflict, "client still has loans")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "client already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func summarize(appended map[models.HistoryKind]int, added, removed []string) string {
	var parts []string
	for _, kind := range models.Kinds {
		if appended[kind] > 0 {
			parts = append(parts, kind.String())
		}
	}
	if len(added) > 0 {
		parts = append(parts, "+flags:"+strings.Join(added, ","))
	}
	if len(removed) > 0 {
		parts = append(parts, "-flags:"+strings.Join(removed, ","))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, " ")
}
