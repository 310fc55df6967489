package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "telemetry_store_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
	ingestRecords  prometheus.Counter

	queryRequests *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec

	exportTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges. table is
// the record table the gauges count from; empty means the default.
func Init(db *sql.DB, table string, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total notification ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestRecords = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_records_total",
				Help: "Total telemetry records written",
			},
		)

		queryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_requests_total",
				Help: "Total read-path requests by operation and result",
			},
			[]string{"operation", "result"},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "query_latency_seconds",
				Help:    "Read-path latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total history exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			ingestRecords,
			queryRequests,
			queryLatency,
			exportTotal,
		)

		if db != nil {
			registerDBMetrics(db, table, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// AddIngestRecords counts records written by one accepted notification.
func AddIngestRecords(count int) {
	if count <= 0 {
		return
	}
	if ingestRecords != nil {
		ingestRecords.Add(float64(count))
	}
}

// ObserveQuery records read-path latency and result for an operation.
func ObserveQuery(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if queryRequests != nil {
		queryRequests.WithLabelValues(operation, result).Inc()
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(operation, result).Observe(duration.Seconds())
	}
}

// IncExport counts a history export by format.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
