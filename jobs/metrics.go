package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	drift    prometheus.Gauge
}

// NewMetrics registers job metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voyager_job_runs_total",
			Help: "Background job runs by task type.",
		}, []string{"task"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voyager_job_failures_total",
			Help: "Background job failures by task type.",
		}, []string{"task"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voyager_job_duration_seconds",
			Help:    "Background job duration by task type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voyager_ledger_drift_items",
			Help: "Items whose ledger total disagrees with master stock, per latest reconciliation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.failures, m.duration, m.drift)
	}
	return m
}

// ObserveRun records one job execution.
func (m *Metrics) ObserveRun(task string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(task).Inc()
	m.duration.WithLabelValues(task).Observe(took.Seconds())
	if err != nil {
		m.failures.WithLabelValues(task).Inc()
	}
}

// SetDriftItems records the item count in drift from the latest run.
func (m *Metrics) SetDriftItems(n int) {
	if m == nil {
		return
	}
	m.drift.Set(float64(n))
}
