package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"miriesgo/internal/audit"
	"miriesgo/internal/platform/metrics"
	"miriesgo/internal/upload/jobs"
	"miriesgo/internal/upload/models"
	"miriesgo/internal/upload/worker"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
)

// Submitter enqueues without blocking; a full queue is CodeUnavailable.
type Submitter interface {
	Submit(task worker.Task) error
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

type Service struct {
	pool    Submitter
	jobs    *jobs.Registry
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(pool Submitter, registry *jobs.Registry, opts ...Option) *Service {
	svc := &Service{
		pool:   pool,
		jobs:   registry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Processor adapts the importer to the worker pool, keeping the registry
// informed that a job started.
func Processor(imp *Importer, registry *jobs.Registry) worker.Processor {
	return func(ctx context.Context, task worker.Task) (*models.ProcessResult, error) {
		registry.MarkProcessing(task.JobID)
		return imp.Import(ctx, task.FileName, task.Data)
	}
}

// Submit registers the job and hands the file to the pool.
func (s *Service) Submit(ctx context.Context, fileName string, data []byte) (*models.Job, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if !strings.EqualFold(filepath.Ext(fileName), ".txt") {
		return nil, dErrors.New(dErrors.CodeValidation, "Formato de archivo no válido. Solo se aceptan archivos .txt.")
	}
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "el archivo está vacío")
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		FileName:    fileName,
		Status:      models.JobQueued,
		SubmittedAt: requestcontext.Now(ctx),
	}
	if uid := requestcontext.UserID(ctx); !uid.IsNil() {
		job.SubmittedBy = int64(uid)
	}
	s.jobs.Put(job)

	if err := s.pool.Submit(worker.Task{JobID: job.ID, FileName: fileName, Data: data}); err != nil {
		s.metrics.IncrementUploadJobs("rejected")
		s.jobs.Complete(worker.Outcome{JobID: job.ID, Err: err})
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "upload queue unavailable")
	}
	s.metrics.IncrementUploadJobs(string(models.JobQueued))

	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Entry{
			Action:    audit.ActionFileUploaded,
			TableName: "uploads",
			RecordID:  job.ID,
			Detail:    fmt.Sprintf("%s (%d bytes)", fileName, len(data)),
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to write audit entry", "error", err, "action", audit.ActionFileUploaded)
		}
	}
	return job, nil
}

func (s *Service) Job(_ context.Context, jobID string) (*models.Job, error) {
	return s.jobs.Get(jobID)
}
