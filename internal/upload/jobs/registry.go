// Package jobs keeps upload job state for polling.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"miriesgo/internal/upload/models"
	"miriesgo/internal/upload/worker"
	dErrors "miriesgo/pkg/domain-errors"
)

const DefaultTTL = 24 * time.Hour

// Registry holds jobs for DefaultTTL after their last update.
type Registry struct {
	mu     sync.Mutex
	cache  *cache.Cache
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cache:  cache.New(ttl, time.Hour),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (r *Registry) Put(job *models.Job) {
	cp := *job
	r.cache.Set(job.ID, &cp, r.ttl)
}

// Get returns a copy of the job.
func (r *Registry) Get(jobID string) (*models.Job, error) {
	v, ok := r.cache.Get(jobID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "job not found")
	}
	cp := *v.(*models.Job)
	return &cp, nil
}

// MarkProcessing moves a queued job forward. Unknown ids are ignored.
func (r *Registry) MarkProcessing(jobID string) {
	r.update(jobID, func(j *models.Job) { j.Status = models.JobProcessing })
}

func (r *Registry) Complete(o worker.Outcome) {
	r.update(o.JobID, func(j *models.Job) {
		now := r.now()
		j.FinishedAt = &now
		if o.Err != nil {
			j.Status = models.JobError
			j.Result = &models.ProcessResult{
				Status:   models.JobError,
				Message:  "no se pudo procesar el archivo",
				FileName: j.FileName,
				Errors:   []string{o.Err.Error()},
			}
			return
		}
		j.Status = o.Result.Status
		j.Result = o.Result
	})
}

// Consume records every outcome until results is closed or ctx ends.
func (r *Registry) Consume(ctx context.Context, results <-chan worker.Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-results:
			if !ok {
				return
			}
			r.Complete(o)
			r.logger.InfoContext(ctx, "upload job finished", "job_id", o.JobID, "failed", o.Err != nil)
		}
	}
}

func (r *Registry) update(jobID string, fn func(*models.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache.Get(jobID)
	if !ok {
		return
	}
	cp := *v.(*models.Job)
	fn(&cp)
	r.cache.Set(jobID, &cp, r.ttl)
}
