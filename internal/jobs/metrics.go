package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for ledger generations.
const (
	OutcomeStored      = "stored"
	OutcomeGenerated   = "generated"
	OutcomeUnbalanced  = "unbalanced"
	OutcomePartial     = "partial"
	OutcomeCommonError = "common_error"
	OutcomeFailure     = "failure"
)

// Metrics exposes Prometheus collectors for background jobs and ledger generation.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	generations *prometheus.CounterVec
	records     *prometheus.HistogramVec
	residual    *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors against the provided registerer. When the
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

// Tracker provides lifecycle instrumentation helpers for a single run.
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

// ObserveGeneration records one ledger generation for a charge type.
func (m *Metrics) ObserveGeneration(chargeType, outcome string, records int, residual float64) {
	if m == nil {
		return
	}
	if chargeType == "" {
		chargeType = "unknown"
	}
	m.generations.WithLabelValues(chargeType, outcome).Inc()
	if records > 0 {
		m.records.WithLabelValues(chargeType).Observe(float64(records))
	}
	m.residual.WithLabelValues(chargeType).Set(residual)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeledger_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeledger_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chargeledger_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeledger_generations_total",
		Help: "Ledger generations partitioned by charge type and outcome.",
	}, []string{"charge_type", "outcome"})
	records := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chargeledger_generated_records",
		Help:    "Number of ledger records produced per generation.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
	}, []string{"charge_type"})
	residual := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chargeledger_last_residual",
		Help: "Global residual of the last generation per charge type.",
	}, []string{"charge_type"})
	registerer.MustRegister(runs, failures, duration, generations, records, residual)
	return &Metrics{
		runs:        runs,
		failures:    failures,
		duration:    duration,
		generations: generations,
		records:     records,
		residual:    residual,
	}
}
