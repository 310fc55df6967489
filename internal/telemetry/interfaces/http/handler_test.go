package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"telemetry-store/internal/telemetry/application"
	telemetry "telemetry-store/internal/telemetry/domain"
	"telemetry-store/internal/telemetry/infrastructure/memory"
	httpapi "telemetry-store/internal/telemetry/interfaces/http"
)

func newEntityHandler(t *testing.T, store *memory.Store) *httpapi.EntityHandler {
	t.Helper()
	service, err := application.NewHistoryService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := httpapi.NewEntityHandler(service, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func seedRecord(t *testing.T, store *memory.Store, entityID, attribute, value string, at time.Time) {
	t.Helper()
	err := store.InsertRecords(context.Background(), []telemetry.Record{{
		Time:           at,
		EntityID:       entityID,
		EntityType:     "Robot",
		AttributeName:  attribute,
		AttributeValue: json.RawMessage(value),
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestEntityHandler_HistoryNewestFirst(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	seedRecord(t, store, "urn:robot:1", "battery", "0.9", base)
	seedRecord(t, store, "urn:robot:1", "battery", "0.8", base.Add(time.Minute))
	handler := newEntityHandler(t, store)

	rec := get(handler, "/v2/entities/urn:robot:1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp application.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EntityID != "urn:robot:1" {
		t.Fatalf("entity id mismatch: %s", resp.EntityID)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Data))
	}
	if resp.Data[0].Time != "2026-03-03T10:01:00Z" {
		t.Fatalf("newest entry first, got %s", resp.Data[0].Time)
	}
}

func TestEntityHandler_AttributeScopeAndLastN(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedRecord(t, store, "urn:robot:1", "battery", "0.5", base.Add(time.Duration(i)*time.Second))
	}
	seedRecord(t, store, "urn:robot:1", "status", `"idle"`, base)
	handler := newEntityHandler(t, store)

	rec := get(handler, "/v2/entities/urn:robot:1/attrs/battery?lastN=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp application.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("lastN should cap the listing, got %d", len(resp.Data))
	}
	for _, entry := range resp.Data {
		if entry.Attribute != "battery" {
			t.Fatalf("attribute scope leaked: %s", entry.Attribute)
		}
	}
}

func TestEntityHandler_LatestDefaultsToTen(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		seedRecord(t, store, "urn:robot:1", "battery", "0.5", base.Add(time.Duration(i)*time.Second))
	}
	handler := newEntityHandler(t, store)

	rec := get(handler, "/v2/entities/urn:robot:1/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp application.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 10 {
		t.Fatalf("default latest cap is 10, got %d", len(resp.Data))
	}

	rec = get(handler, "/v2/entities/urn:robot:1/latest?n=3")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("n should cap the listing, got %d", len(resp.Data))
	}
}

func TestEntityHandler_UnknownEntityEmptyListing(t *testing.T) {
	handler := newEntityHandler(t, memory.NewStore())
	rec := get(handler, "/v2/entities/urn:robot:none")
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown entity is not an error: %d", rec.Code)
	}
	var resp application.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 0 {
		t.Fatalf("expected empty listing, got %d", len(resp.Data))
	}
}

func TestEntityHandler_BadParamsRejected(t *testing.T) {
	handler := newEntityHandler(t, memory.NewStore())

	for _, target := range []string{
		"/v2/entities/urn:robot:1?lastN=-2",
		"/v2/entities/urn:robot:1?lastN=abc",
		"/v2/entities/urn:robot:1?fromDate=yesterday",
		"/v2/entities/urn:robot:1/attrs/reward/stats?window=backwards",
		"/v2/entities/urn:robot:1/attrs/reward/stats?window=-1h",
		"/v2/entities/urn:robot:1/attrs//stats",
	} {
		if rec := get(handler, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestEntityHandler_TimeBoundsInclusive(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	seedRecord(t, store, "urn:robot:1", "battery", "0.1", base.Add(-time.Hour))
	seedRecord(t, store, "urn:robot:1", "battery", "0.2", base)
	seedRecord(t, store, "urn:robot:1", "battery", "0.3", base.Add(time.Hour))
	handler := newEntityHandler(t, store)

	rec := get(handler, "/v2/entities/urn:robot:1?fromDate=2026-03-03T10:00:00Z&toDate=2026-03-03T10:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp application.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("bounds are inclusive, expected exactly the boundary record, got %d", len(resp.Data))
	}
}

func TestEntityHandler_StatsNoData(t *testing.T) {
	handler := newEntityHandler(t, memory.NewStore())
	rec := get(handler, "/v2/entities/urn:robot:1/attrs/reward/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp application.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.NoData {
		t.Fatalf("expected explicit no-data marker: %+v", resp)
	}

	// The body must not carry zero-filled statistics.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	for _, key := range []string{"average", "minimum", "maximum", "stdDeviation"} {
		if _, ok := raw[key]; ok {
			t.Fatalf("no-data response must omit %q: %s", key, rec.Body.String())
		}
	}
}

func TestEntityHandler_StatsWindow(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	seedRecord(t, store, "urn:robot:1", "reward", "10", now.Add(-time.Minute))
	seedRecord(t, store, "urn:robot:1", "reward", "20", now.Add(-2*time.Hour))
	handler := newEntityHandler(t, store)

	rec := get(handler, "/v2/entities/urn:robot:1/attrs/reward/stats?window=1h")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp application.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NoData {
		t.Fatalf("unexpected no-data result")
	}
	if resp.Average == nil || resp.Minimum == nil || resp.Maximum == nil {
		t.Fatalf("statistics missing: %s", rec.Body.String())
	}
	if *resp.Average != 10 || *resp.Minimum != 10 || *resp.Maximum != 10 {
		t.Fatalf("window should exclude the older sample: %+v", resp)
	}
}

func TestEntityHandler_UnroutablePaths(t *testing.T) {
	handler := newEntityHandler(t, memory.NewStore())
	if rec := get(handler, "/v2/entities/urn:robot:1/attrs/reward/extra/stuff"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodDelete, "/v2/entities/urn:robot:1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
