package telemetry

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one observation of one entity attribute at one instant.
// Records are immutable once written; corrections are new records.
type Record struct {
	ID             int64
	Time           time.Time
	EntityID       string
	EntityType     string
	AttributeName  string
	AttributeValue json.RawMessage
	Metadata       json.RawMessage
}

// Notification is a batch push from the context broker.
type Notification struct {
	Data []EntitySnapshot `json:"data"`
}

// EntitySnapshot is one entity state inside a notification. Attributes
// holds every payload key except the reserved id/type keys.
type EntitySnapshot struct {
	ID         string
	Type       string
	Attributes map[string]json.RawMessage
}

// UnmarshalJSON splits the reserved id/type keys from attribute payloads.
func (s *EntitySnapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &s.ID); err != nil {
			return err
		}
		delete(raw, "id")
	}
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &s.Type); err != nil {
			return err
		}
		delete(raw, "type")
	}
	s.Attributes = raw
	return nil
}

// Stats holds windowed aggregate statistics over numeric attribute values.
// StdDeviation is the population standard deviation.
type Stats struct {
	Average      float64
	Minimum      float64
	Maximum      float64
	StdDeviation float64
}

// HistoryFilter selects records for one entity. Zero From/To mean
// unbounded; both bounds are inclusive. Limit caps the result size.
type HistoryFilter struct {
	EntityID      string
	AttributeName string
	From          time.Time
	To            time.Time
	Limit         int
}

// RecordRepository appends records. A batch is written atomically:
// either every record becomes visible or none do.
type RecordRepository interface {
	InsertRecords(ctx context.Context, records []Record) error
}

// RecordQuery reads records back, newest first.
type RecordQuery interface {
	QueryHistory(ctx context.Context, filter HistoryFilter) ([]Record, error)
	QueryLatest(ctx context.Context, entityID string, n int) ([]Record, error)
	Aggregate(ctx context.Context, entityID, attributeName string, window time.Duration) (*Stats, error)
}
