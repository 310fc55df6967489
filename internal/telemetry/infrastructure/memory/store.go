package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	telemetry "telemetry-store/internal/telemetry/domain"
)

// Store is an in-memory record store implementing the same write/read
// contracts as the Postgres infrastructure. Used by unit tests.
type Store struct {
	mu      sync.RWMutex
	records []telemetry.Record
	nextID  int64

	failInsert error
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{nextID: 1}
}

// FailNextInsert makes the next InsertRecords call fail with err without
// writing anything, simulating a storage failure mid-batch.
func (s *Store) FailNextInsert(err error) {
	s.mu.Lock()
	s.failInsert = err
	s.mu.Unlock()
}

// InsertRecords appends a batch atomically: the whole batch is validated
// before any record becomes visible.
func (s *Store) InsertRecords(ctx context.Context, records []telemetry.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInsert != nil {
		err := s.failInsert
		s.failInsert = nil
		return err
	}

	for _, record := range records {
		if record.EntityID == "" || record.EntityType == "" || record.AttributeName == "" ||
			len(record.AttributeValue) == 0 || record.Time.IsZero() {
			return telemetry.ErrInvalidRecord
		}
	}
	for _, record := range records {
		record.ID = s.nextID
		s.nextID++
		s.records = append(s.records, record)
	}
	return nil
}

// QueryHistory returns records newest first, id as the tie-break.
func (s *Store) QueryHistory(ctx context.Context, filter telemetry.HistoryFilter) ([]telemetry.Record, error) {
	_ = ctx
	if filter.EntityID == "" {
		return nil, telemetry.ErrEmptyEntityID
	}
	if filter.Limit < 0 {
		return nil, telemetry.ErrInvalidLimit
	}

	s.mu.RLock()
	matched := make([]telemetry.Record, 0)
	for _, record := range s.records {
		if record.EntityID != filter.EntityID {
			continue
		}
		if filter.AttributeName != "" && record.AttributeName != filter.AttributeName {
			continue
		}
		if !filter.From.IsZero() && record.Time.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && record.Time.After(filter.To) {
			continue
		}
		matched = append(matched, record)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Time.Equal(matched[j].Time) {
			return matched[i].Time.After(matched[j].Time)
		}
		return matched[i].ID > matched[j].ID
	})
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// QueryLatest returns the most recent n records for one entity.
func (s *Store) QueryLatest(ctx context.Context, entityID string, n int) ([]telemetry.Record, error) {
	return s.QueryHistory(ctx, telemetry.HistoryFilter{EntityID: entityID, Limit: n})
}

// Aggregate mirrors the Postgres aggregate: numeric values only, trailing
// window, population standard deviation, nil when nothing matches.
func (s *Store) Aggregate(ctx context.Context, entityID, attributeName string, window time.Duration) (*telemetry.Stats, error) {
	_ = ctx
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

	s.mu.RLock()
	values := make([]float64, 0)
	for _, record := range s.records {
		if record.EntityID != entityID || record.AttributeName != attributeName {
			continue
		}
		if record.Time.Before(cutoff) {
			continue
		}
		var value float64
		if err := json.Unmarshal(record.AttributeValue, &value); err != nil {
			// Non-numeric values are excluded, not errors.
			continue
		}
		values = append(values, value)
	}
	s.mu.RUnlock()

	if len(values) == 0 {
		return nil, nil
	}

	return &telemetry.Stats{
		Average:      stat.Mean(values, nil),
		Minimum:      floats.Min(values),
		Maximum:      floats.Max(values),
		StdDeviation: stat.PopStdDev(values, nil),
	}, nil
}
