// Package observability provides Prometheus metrics for monitoring batch runs.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seasonality-lab/internal/domain"
)

// Significance test outcomes used as the "outcome" label.
const (
	TestOutcomeUndefined   = "undefined"
	TestOutcomeNotSig      = "not_significant"
	TestOutcomeSignificant = "significant"
)

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Ingestion metrics
	RowsRead     prometheus.Counter
	RowsLoaded   prometheus.Counter
	RowsExcluded *prometheus.CounterVec

	// Engine metrics
	StageDuration     *prometheus.HistogramVec
	StageRows         *prometheus.GaugeVec
	SignificanceTests *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "seasonality_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RowsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_read_total",
			Help:      "Total number of raw input rows read from sources",
		}),
		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_loaded_total",
			Help:      "Total number of validated interval rows loaded",
		}),
		RowsExcluded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rows_dropped_total",
			Help:      "Total number of rows or strata excluded, by stage and reason",
		}, []string{"stage", "reason"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		StageRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stage_output_rows",
			Help:      "Rows produced by each stage in the last run",
		}, []string{"stage"}),
		SignificanceTests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "significance_tests_total",
			Help:      "Total number of season-vs-reference tests by outcome",
		}, []string{"outcome"}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Duration of complete pipeline runs",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler for a specific registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// DefaultMetrics is the metrics instance registered on the default registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer, "")

// RecordRowsRead adds raw rows read from a source.
func (m *Metrics) RecordRowsRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsRead.Add(float64(n))
}

// RecordRowsLoaded adds validated rows loaded.
func (m *Metrics) RecordRowsLoaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsLoaded.Add(float64(n))
}

// RecordExclusions adds n exclusions for a stage and reason.
func (m *Metrics) RecordExclusions(stage string, reason domain.ExclusionReason, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsExcluded.WithLabelValues(stage, string(reason)).Add(float64(n))
}

// ObserveStage records a stage duration measured from start and its output size.
func (m *Metrics) ObserveStage(stage string, start time.Time, rows int) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	m.StageRows.WithLabelValues(stage).Set(float64(rows))
}

// RecordTest counts one significance test outcome.
func (m *Metrics) RecordTest(outcome string) {
	if m == nil {
		return
	}
	m.SignificanceTests.WithLabelValues(outcome).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a finished pipeline run.
func (m *Metrics) RecordPipelineRun(status domain.RunStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(string(status)).Inc()
	m.PipelineDuration.Observe(duration.Seconds())
	if status == domain.RunStatusSucceeded {
		m.LastSuccessfulRun.SetToCurrentTime()
	}
}
