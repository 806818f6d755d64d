package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"miriesgo/internal/platform/metrics"
	"miriesgo/internal/platform/tracer"
	"miriesgo/internal/scoring/gemini"
	"miriesgo/internal/scoring/models"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/platform/circuit"
)

// Scorer is the outbound model call.
type Scorer interface {
	Score(ctx context.Context, report models.SimplifiedReport) (*models.RiskScore, error)
	Configured() bool
}

type Option func(*Service)

type Service struct {
	scorer  Scorer
	breaker *circuit.Breaker
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(scorer Scorer, opts ...Option) *Service {
	svc := &Service{
		scorer: scorer,
		breaker: circuit.New("gemini",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(3),
			circuit.WithCooldown(30*time.Second),
		),
		tracer: tracer.NewNoop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// ScoreReport simplifies a submitted credit report and asks the model for a
// risk score. Any collaborator failure surfaces as CodeUnavailable.
func (s *Service) ScoreReport(ctx context.Context, in models.ReportInput) (*models.RiskScore, error) {
	report, err := models.Simplify(in)
	if err != nil {
		return nil, err
	}
	if !s.scorer.Configured() {
		s.metrics.ObserveScoring("not_configured", 0)
		return nil, dErrors.New(dErrors.CodeUnavailable, "scoring not configured")
	}
	if !s.breaker.Allow() {
		s.metrics.ObserveScoring("circuit_open", 0)
		return nil, dErrors.New(dErrors.CodeUnavailable, "scoring temporarily unavailable")
	}

	ctx, span := s.tracer.Start(ctx, "scoring.gemini",
		tracer.Int("scoring.loans", len(report.Loans)),
		tracer.String("scoring.breaker_state", s.breaker.State().String()),
	)
	start := time.Now()
	score, err := s.scorer.Score(ctx, report)
	elapsed := time.Since(start)
	span.SetAttributes(tracer.Duration("scoring.duration", elapsed))
	span.End(err)

	if err != nil {
		outcome := outcomeOf(err)
		s.metrics.ObserveScoring(outcome, elapsed.Seconds())
		if change := s.breaker.RecordFailure(); change.Opened {
			s.metrics.SetCircuitOpen(s.breaker.Name(), true)
			s.logger.WarnContext(ctx, "scoring circuit opened", "breaker", s.breaker.Name())
		}
		s.logger.WarnContext(ctx, "scoring call failed", "outcome", outcome, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scoring service unavailable")
	}

	s.metrics.ObserveScoring("ok", elapsed.Seconds())
	if change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetCircuitOpen(s.breaker.Name(), false)
		s.logger.InfoContext(ctx, "scoring circuit closed", "breaker", s.breaker.Name())
	}
	return score, nil
}

func outcomeOf(err error) string {
	var gerr *gemini.Error
	if errors.As(err, &gerr) {
		return string(gerr.Category)
	}
	return "error"
}
