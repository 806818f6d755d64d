package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the domain-level Prometheus collectors. All methods are safe
// on a nil receiver so services can run without metrics in tests.
type Metrics struct {
	Logins              prometheus.Counter
	LoginFailures       *prometheus.CounterVec
	Reconciliations     prometheus.Counter
	HistoryAppended     *prometheus.CounterVec
	FlagsChanged        *prometheus.CounterVec
	LoansUpdated        prometheus.Counter
	ReportsBuilt        *prometheus.CounterVec
	ScoringRequests     *prometheus.CounterVec
	ScoringLatency      prometheus.Histogram
	UploadJobs          *prometheus.CounterVec
	UploadRecords       *prometheus.CounterVec
	UploadQueueDepth    prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg, which lets tests use a
// throwaway prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounter(prometheus.CounterOpts{
			Name: "miriesgo_logins_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "miriesgo_login_failures_total",
			Help: "Total number of rejected logins, labeled by reason",
		}, []string{"reason"}),
		Reconciliations: f.NewCounter(prometheus.CounterOpts{
			Name: "miriesgo_client_reconciliations_total",
			Help: "Total number of committed client reconciliations",
		}),
		HistoryAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "miriesgo_client_history_appended_total",
			Help: "History entries appended by reconciliation, labeled by kind",
		}, []string{"kind"}),
		FlagsChanged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "miriesgo_client_flags_changed_total",
			Help: "Flags added or removed by reconciliation",
		}, []string{"op"}),
		LoansUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "miriesgo_loans_updated_total",
			Help: "Total number of loan patches applied",
		}),
		ReportsBuilt: f.NewCounterVec(prometheus.CounterOpts{
			Name: "miriesgo_reports_built_total",
			Help: "Credit report lookups, labeled by outcome",
		}, []string{"outcome"}),
		ScoringRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "miriesgo_scoring_requests_total",
			Help: "Risk scoring calls, labeled by outcome",
		}, []string{"outcome"}),
		ScoringLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "miriesgo_scoring_latency_seconds",
			Help:    "Latency of the external scoring call",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		UploadJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "miriesgo_upload_jobs_total",
			Help: "Upload jobs, labeled by final status",
		}, []string{"status"}),
		UploadRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "miriesgo_upload_records_total",
			Help: "Upload records, labeled by result",
		}, []string{"result"}),
		UploadQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "miriesgo_upload_queue_depth",
			Help: "Upload jobs waiting for a worker",
		}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "miriesgo_circuit_breaker_open",
			Help: "1 when the named circuit breaker is open",
		}, []string{"name"}),
	}
}

func (m *Metrics) IncrementLogins() {
	if m == nil {
		return
	}
	m.Logins.Inc()
}

func (m *Metrics) IncrementLoginFailures(reason string) {
	if m == nil {
		return
	}
	m.LoginFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementReconciliations() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}

func (m *Metrics) AddHistoryAppended(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.HistoryAppended.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) AddFlagsChanged(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FlagsChanged.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) IncrementLoansUpdated() {
	if m == nil {
		return
	}
	m.LoansUpdated.Inc()
}

func (m *Metrics) IncrementReportsBuilt(outcome string) {
	if m == nil {
		return
	}
	m.ReportsBuilt.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveScoring(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ScoringRequests.WithLabelValues(outcome).Inc()
	m.ScoringLatency.Observe(durationSeconds)
}

func (m *Metrics) IncrementUploadJobs(status string) {
	if m == nil {
		return
	}
	m.UploadJobs.WithLabelValues(status).Inc()
}

func (m *Metrics) AddUploadRecords(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.UploadRecords.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) SetUploadQueueDepth(n int) {
	if m == nil {
		return
	}
	m.UploadQueueDepth.Set(float64(n))
}

func (m *Metrics) SetCircuitOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}
