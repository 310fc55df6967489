package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultRecordTable = "telemetry_records"

func registerDBMetrics(db *sql.DB, table string, logger *log.Logger) {
	recordsQuery, entitiesQuery := dbCountQueries(table)

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "records_stored",
			Help: "Telemetry records currently stored",
		},
		func() float64 {
			return queryCount(db, logger, recordsQuery)
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "entities_observed",
			Help: "Distinct entities with at least one record",
		},
		func() float64 {
			return queryCount(db, logger, entitiesQuery)
		},
	))
}

func dbCountQueries(table string) (records, entities string) {
	if table == "" {
		table = defaultRecordTable
	}
	return "SELECT COUNT(*) FROM " + table, "SELECT COUNT(DISTINCT entity_id) FROM " + table
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
