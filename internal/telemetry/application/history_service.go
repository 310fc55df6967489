package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	telemetry "telemetry-store/internal/telemetry/domain"
)

// Defaults for read-path result caps.
const (
	DefaultHistoryLimit = 100
	DefaultLatestN      = 10
)

var emptyDocument = json.RawMessage(`{}`)

// HistoryService is the read-side API over the record store: parameter
// validation and response shaping only, all computation stays in the
// store.
type HistoryService struct {
	query telemetry.RecordQuery
}

// NewHistoryService constructs a service.
func NewHistoryService(query telemetry.RecordQuery) (*HistoryService, error) {
	if query == nil {
		return nil, errors.New("history service: nil query")
	}
	return &HistoryService{query: query}, nil
}

// HistoryEntry is one record reshaped for API responses. Value and
// Metadata pass through as opaque JSON documents.
type HistoryEntry struct {
	Time      string          `json:"time"`
	Attribute string          `json:"attribute"`
	Value     json.RawMessage `json:"value"`
	Metadata  json.RawMessage `json:"metadata"`
}

// HistoryResponse lists an entity's records, newest first.
type HistoryResponse struct {
	EntityID string         `json:"entityId"`
	Data     []HistoryEntry `json:"data"`
}

// StatsResponse is the windowed aggregate result. NoData marks the
// explicit no-data outcome; the statistic fields are pointers so a
// no-data response omits them instead of serializing zeros.
type StatsResponse struct {
	EntityID     string   `json:"entityId"`
	Attribute    string   `json:"attribute"`
	Window       string   `json:"window"`
	NoData       bool     `json:"noData,omitempty"`
	Average      *float64 `json:"average,omitempty"`
	Minimum      *float64 `json:"minimum,omitempty"`
	Maximum      *float64 `json:"maximum,omitempty"`
	StdDeviation *float64 `json:"stdDeviation,omitempty"`
}

// GetHistory returns up to lastN records for one entity, optionally
// scoped to a single attribute and bounded by inclusive [from, to].
// Unknown entities yield an empty listing, not an error.
func (s *HistoryService) GetHistory(ctx context.Context, entityID, attribute string, lastN int, from, to time.Time) (HistoryResponse, error) {
	if entityID == "" {
		return HistoryResponse{}, telemetry.ErrEmptyEntityID
	}
	if lastN < 0 {
		return HistoryResponse{}, telemetry.ErrInvalidLimit
	}

	records, err := s.query.QueryHistory(ctx, telemetry.HistoryFilter{
		EntityID:      entityID,
		AttributeName: attribute,
		From:          from,
		To:            to,
		Limit:         lastN,
	})
	if err != nil {
		return HistoryResponse{}, err
	}
	return shapeHistory(entityID, records), nil
}

// GetLatest returns the most recent n records for one entity.
func (s *HistoryService) GetLatest(ctx context.Context, entityID string, n int) (HistoryResponse, error) {
	if entityID == "" {
		return HistoryResponse{}, telemetry.ErrEmptyEntityID
	}
	if n < 0 {
		return HistoryResponse{}, telemetry.ErrInvalidLimit
	}

	records, err := s.query.QueryLatest(ctx, entityID, n)
	if err != nil {
		return HistoryResponse{}, err
	}
	return shapeHistory(entityID, records), nil
}

// GetStatistics returns the four-statistic aggregate over the trailing
// window, or the explicit no-data result when nothing numeric matches.
func (s *HistoryService) GetStatistics(ctx context.Context, entityID, attribute string, window time.Duration) (StatsResponse, error) {
	if entityID == "" {
		return StatsResponse{}, telemetry.ErrEmptyEntityID
	}
	if attribute == "" {
		return StatsResponse{}, telemetry.ErrEmptyAttribute
	}
	if window <= 0 {
		return StatsResponse{}, telemetry.ErrInvalidWindow
	}

	resp := StatsResponse{
		EntityID:  entityID,
		Attribute: attribute,
		Window:    window.String(),
	}
	stats, err := s.query.Aggregate(ctx, entityID, attribute, window)
	if err != nil {
		return StatsResponse{}, err
	}
	if stats == nil {
		resp.NoData = true
		return resp, nil
	}
	resp.Average = &stats.Average
	resp.Minimum = &stats.Minimum
	resp.Maximum = &stats.Maximum
	resp.StdDeviation = &stats.StdDeviation
	return resp, nil
}

func shapeHistory(entityID string, records []telemetry.Record) HistoryResponse {
	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		metadata := record.Metadata
		if len(metadata) == 0 || string(metadata) == "null" {
			metadata = emptyDocument
		}
		entries = append(entries, HistoryEntry{
			Time:      record.Time.UTC().Format(time.RFC3339Nano),
			Attribute: record.AttributeName,
			Value:     record.AttributeValue,
			Metadata:  metadata,
		})
	}
	return HistoryResponse{EntityID: entityID, Data: entries}
}
