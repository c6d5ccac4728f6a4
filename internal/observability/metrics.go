package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "space_weather"

// Metrics holds the Prometheus collectors for ingestion, auditing and correlation.
type Metrics struct {
	// Fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: feed, outcome={success,http_error,network_error,decode_error}
	FetchDuration *prometheus.HistogramVec // labels: feed

	// Write-path metrics.
	RowsInserted     *prometheus.CounterVec // labels: table
	RowInsertErrors  *prometheus.CounterVec // labels: table
	RowsSkipped      *prometheus.CounterVec // labels: table
	RecordsRejected  *prometheus.CounterVec // labels: feed
	AuditFailures    prometheus.Counter
	NoticeFailures   prometheus.Counter
	IngestRuns       *prometheus.CounterVec // labels: feed, outcome={completed,no_data,aborted}
	IngestRunning    prometheus.Gauge
	IngestRunSeconds *prometheus.HistogramVec // labels: feed

	// Read-path metrics.
	CorrelationPoints *prometheus.GaugeVec // labels: series
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      help("DONKI fetches by feed and outcome."),
		}, []string{"feed", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      help("DONKI request duration in seconds, including retries."),
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"feed"}),
		RowsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      help("Rows written by table."),
		}, []string{"table"}),
		RowInsertErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_insert_errors_total",
			Help:      help("Rows lost to insert failures by table."),
		}, []string{"table"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      help("Rows left unchanged by an ignored key conflict, by table."),
		}, []string{"table"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      help("Upstream records rejected before any insert, by feed."),
		}, []string{"feed"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      help("Request audit records that could not be persisted."),
		}),
		NoticeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notice_failures_total",
			Help:      help("Ingestion notice batches that could not be published."),
		}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      help("Ingestion runs by feed and outcome."),
		}, []string{"feed", "outcome"}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_running",
			Help:      help("Number of ingestion runs in progress."),
		}),
		IngestRunSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      help("Duration of a complete fetch-decompose-insert run."),
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"feed"}),
		CorrelationPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlation_points",
			Help:      help("Points in the most recently built correlation series."),
		}, []string{"series"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.RowsInserted,
		m.RowInsertErrors,
		m.RowsSkipped,
		m.RecordsRejected,
		m.AuditFailures,
		m.NoticeFailures,
		m.IngestRuns,
		m.IngestRunning,
		m.IngestRunSeconds,
		m.CorrelationPoints,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
