// Package worker runs upload jobs on a bounded pool.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"miriesgo/internal/platform/metrics"
	"miriesgo/internal/upload/models"
	dErrors "miriesgo/pkg/domain-errors"
)

// ErrQueueFull is returned by Submit when no slot is free.
var ErrQueueFull = dErrors.New(dErrors.CodeUnavailable, "upload queue is full, try again later")

// ErrClosed is returned by Submit once the pool is shutting down.
var ErrClosed = dErrors.New(dErrors.CodeUnavailable, "upload pool is shutting down")

type Task struct {
	JobID    string
	FileName string
	Data     []byte
}

// Processor imports one file. A returned error means the job failed as a
// whole; per-record problems belong in the result.
type Processor func(ctx context.Context, task Task) (*models.ProcessResult, error)

type Outcome struct {
	JobID  string
	Result *models.ProcessResult
	Err    error
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

type Pool struct {
	process   Processor
	workers   int
	queueSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	closed  bool
	queue   chan Task
	results chan Outcome
	done    chan struct{}
}

func NewPool(process Processor, opts ...Option) *Pool {
	p := &Pool{
		process:   process,
		workers:   4,
		queueSize: 32,
		logger:    slog.Default(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan Task, p.queueSize)
	p.results = make(chan Outcome, p.queueSize)
	return p
}

// Submit enqueues without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- task:
		p.metrics.SetUploadQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Results is closed after the pool has drained.
func (p *Pool) Results() <-chan Outcome {
	return p.results
}

// Run dispatches queued tasks until Close is called and the queue is empty.
// Cancelling ctx abandons the tasks still queued; tasks already running
// see the cancellation.
func (p *Pool) Run(ctx context.Context) error {
	defer close(p.done)
	defer close(p.results)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case task, ok := <-p.queue:
			if !ok {
				break loop
			}
			p.metrics.SetUploadQueueDepth(len(p.queue))
			g.Go(func() error {
				p.results <- p.runTask(gctx, task)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (p *Pool) runTask(ctx context.Context, task Task) (out Outcome) {
	out.JobID = task.JobID
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "upload job panicked", "job_id", task.JobID, "panic", r)
			out.Err = dErrors.New(dErrors.CodeInternal, "upload job panicked")
		}
	}()

	res, err := p.process(ctx, task)
	if err != nil {
		p.logger.ErrorContext(ctx, "upload job failed",
			"job_id", task.JobID,
			"file_name", task.FileName,
			"error", err,
		)
		p.metrics.IncrementUploadJobs(string(models.JobError))
		out.Err = err
		return out
	}
	p.metrics.IncrementUploadJobs(string(res.Status))
	out.Result = res
	return out
}

// Close stops accepting tasks and waits for the queued ones to finish, or
// for ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
