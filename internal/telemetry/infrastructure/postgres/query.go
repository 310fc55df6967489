package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	telemetry "telemetry-store/internal/telemetry/domain"
)

// RecordQuery is the Postgres read path for telemetry records.
type RecordQuery struct {
	db    *sql.DB
	table string
}

// NewRecordQuery constructs a query with default table name.
func NewRecordQuery(db *sql.DB, opts ...QueryOption) *RecordQuery {
	query := &RecordQuery{db: db, table: defaultRecordTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryOption configures the record query.
type QueryOption func(*RecordQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *RecordQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

// QueryHistory returns records for one entity ordered by time descending,
// id descending as the tie-break within equal timestamps. The optional
// attribute and inclusive [From, To] bounds narrow the result.
func (q *RecordQuery) QueryHistory(ctx context.Context, filter telemetry.HistoryFilter) ([]telemetry.Record, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if filter.EntityID == "" {
		return nil, telemetry.ErrEmptyEntityID
	}
	if filter.Limit < 0 {
		return nil, telemetry.ErrInvalidLimit
	}
	if filter.Limit == 0 {
		return []telemetry.Record{}, nil
	}

	conditions := []string{"entity_id = $1"}
	args := []any{filter.EntityID}
	if filter.AttributeName != "" {
		args = append(args, filter.AttributeName)
		conditions = append(conditions, "attribute_name = $"+strconv.Itoa(len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, "time >= $"+strconv.Itoa(len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, "time <= $"+strconv.Itoa(len(args)))
	}
	args = append(args, filter.Limit)

	query := fmt.Sprintf(`
SELECT id, time, entity_id, entity_type, attribute_name, attribute_value, metadata
FROM %s
WHERE %s
ORDER BY time DESC, id DESC
LIMIT $%d`, q.table, strings.Join(conditions, "\n	AND "), len(args))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]telemetry.Record, 0, filter.Limit)
	for rows.Next() {
		var record telemetry.Record
		var metadata []byte
		if err := rows.Scan(
			&record.ID,
			&record.Time,
			&record.EntityID,
			&record.EntityType,
			&record.AttributeName,
			&record.AttributeValue,
			&metadata,
		); err != nil {
			return nil, err
		}
		record.Time = record.Time.UTC()
		if len(metadata) > 0 {
			record.Metadata = metadata
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// QueryLatest returns the most recent n records for one entity.
func (q *RecordQuery) QueryLatest(ctx context.Context, entityID string, n int) ([]telemetry.Record, error) {
	return q.QueryHistory(ctx, telemetry.HistoryFilter{EntityID: entityID, Limit: n})
}

// Aggregate computes average, minimum, maximum and population standard
// deviation over the numeric values recorded for (entity, attribute)
// within the trailing window. Non-numeric values are excluded rather
// than failing; a nil result means no numeric value inside the window.
// The window is converted to a cutoff timestamp and bound as a query
// parameter, never interpolated into SQL text.
func (q *RecordQuery) Aggregate(ctx context.Context, entityID, attributeName string, window time.Duration) (*telemetry.Stats, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if entityID == "" {
		return nil, telemetry.ErrEmptyEntityID
	}
	if attributeName == "" {
		return nil, telemetry.ErrEmptyAttribute
	}
	if window <= 0 {
		return nil, telemetry.ErrInvalidWindow
	}

	cutoff := time.Now().UTC().Add(-window)

	query := fmt.Sprintf(`
SELECT
	COUNT(*),
	AVG((attribute_value #>> '{}')::float8),
	MIN((attribute_value #>> '{}')::float8),
	MAX((attribute_value #>> '{}')::float8),
	STDDEV_POP((attribute_value #>> '{}')::float8)
FROM %s
WHERE entity_id = $1
	AND attribute_name = $2
	AND time >= $3
	AND jsonb_typeof(attribute_value) = 'number'`, q.table)

	var count int64
	var average, minimum, maximum, stdDeviation sql.NullFloat64
	err := q.db.QueryRowContext(ctx, query, entityID, attributeName, cutoff).
		Scan(&count, &average, &minimum, &maximum, &stdDeviation)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	return &telemetry.Stats{
		Average:      average.Float64,
		Minimum:      minimum.Float64,
		Maximum:      maximum.Float64,
		StdDeviation: stdDeviation.Float64,
	}, nil
}
