package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	fraudAlerts *prometheus.CounterVec
	matches     *prometheus.CounterVec
	recurring   *prometheus.CounterVec
	breaches    *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddFraudAlerts counts alerts raised by the fraud scan.
func (m *Metrics) AddFraudAlerts(alertType, severity string, companyID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.fraudAlerts.WithLabelValues(alertType, severity, formatInt(companyID)).Add(float64(count))
}

// AddReconcileMatches counts bank lines matched by auto reconciliation.
func (m *Metrics) AddReconcileMatches(companyID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.matches.WithLabelValues(formatInt(companyID)).Add(float64(count))
}

// AddRecurringInvoices counts recurring profiles by outcome (created or failed).
func (m *Metrics) AddRecurringInvoices(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recurring.WithLabelValues(outcome).Add(float64(count))
}

// AddIntegrityBreach counts ledger integrity violations found for a company.
func (m *Metrics) AddIntegrityBreach(kind string, companyID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.breaches.WithLabelValues(kind, formatInt(companyID)).Add(float64(count))
}

func formatInt(v int64) string {
	if v <= 0 {
		return "0"
	}
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	fraudAlerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_fraud_alerts_total",
		Help: "Fraud alerts raised by scheduled scans grouped by type, severity and company.",
	}, []string{"type", "severity", "company"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_reconcile_matches_total",
		Help: "Bank lines matched by auto reconciliation per company.",
	}, []string{"company"})
	recurring := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_recurring_invoices_total",
		Help: "Recurring profiles processed grouped by outcome.",
	}, []string{"outcome"})
	breaches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_integrity_breaches_total",
		Help: "Ledger integrity violations found by the GL integrity job.",
	}, []string{"kind", "company"})
	registerer.MustRegister(runs, failures, duration, fraudAlerts, matches, recurring, breaches)
	return &Metrics{
		runs:        runs,
		failures:    failures,
		duration:    duration,
		fraudAlerts: fraudAlerts,
		matches:     matches,
		recurring:   recurring,
		breaches:    breaches,
	}
}
