package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	telemetry "telemetry-store/internal/telemetry/domain"
)

const defaultRecordTable = "telemetry_records"

// RecordRepository is the Postgres write path for telemetry records.
type RecordRepository struct {
	db    *sql.DB
	table string
}

// NewRecordRepository constructs a repository with default table name.
func NewRecordRepository(db *sql.DB, opts ...RepositoryOption) *RecordRepository {
	repo := &RecordRepository{db: db, table: defaultRecordTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*RecordRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *RecordRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Table returns the record table name the repository writes to.
func (r *RecordRepository) Table() string {
	return r.table
}

// InitSchema creates the record table, its time partitioning and the two
// access-path indexes. Time partitioning requires the timescaledb
// extension; without it the service still runs on a plain table, relying
// on the same indexes.
func (r *RecordRepository) InitSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("telemetry repo: nil db")
	}

	createTable := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL,
	time TIMESTAMPTZ NOT NULL,
	entity_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	attribute_name TEXT NOT NULL,
	attribute_value JSONB NOT NULL,
	metadata JSONB,
	PRIMARY KEY (id, time)
)`, r.table)
	if _, err := r.db.ExecContext(ctx, createTable); err != nil {
		return err
	}

	hypertable := fmt.Sprintf(
		`SELECT create_hypertable('%s', 'time', if_not_exists => TRUE)`, r.table)
	// Optional: plain Postgres deployments have no timescaledb extension.
	_, _ = r.db.ExecContext(ctx, hypertable)

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_entity_id ON %s (entity_id, time DESC)`, r.table, r.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_entity_type ON %s (entity_type, time DESC)`, r.table, r.table),
	}
	for _, index := range indexes {
		if _, err := r.db.ExecContext(ctx, index); err != nil {
			return err
		}
	}
	return nil
}

// InsertRecords appends one ingestion batch inside a single transaction.
// All records of the batch become visible together or not at all.
func (r *RecordRepository) InsertRecords(ctx context.Context, records []telemetry.Record) error {
	if r == nil || r.db == nil {
		return errors.New("telemetry repo: nil db")
	}
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	time,
	entity_id,
	entity_type,
	attribute_name,
	attribute_value,
	metadata
) VALUES (
	$1, $2, $3, $4, $5, $6
)`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		if record.EntityID == "" || record.EntityType == "" || record.AttributeName == "" ||
			len(record.AttributeValue) == 0 || record.Time.IsZero() {
			_ = tx.Rollback()
			return telemetry.ErrInvalidRecord
		}

		metadata := []byte(record.Metadata)
		if len(metadata) == 0 {
			metadata = nil
		}

		if _, err := stmt.ExecContext(
			ctx,
			record.Time,
			record.EntityID,
			record.EntityType,
			record.AttributeName,
			[]byte(record.AttributeValue),
			metadata,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
