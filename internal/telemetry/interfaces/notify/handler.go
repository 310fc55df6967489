package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"telemetry-store/internal/eventing"
	"telemetry-store/internal/observability/metrics"
	"telemetry-store/internal/telemetry/application/events"
	telemetry "telemetry-store/internal/telemetry/domain"
)

const defaultStoreTimeout = 10 * time.Second

// Handler is the sole write path into the record store. It accepts one
// notification per call, normalizes every entity snapshot and commits
// the resulting records as a single batch.
type Handler struct {
	repo      telemetry.RecordRepository
	bus       *eventing.Bus
	logger    *log.Logger
	timeout   time.Duration
	clockFunc func() time.Time
}

// NewHandler constructs the notification handler.
func NewHandler(repo telemetry.RecordRepository, bus *eventing.Bus, logger *log.Logger, opts ...Option) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("notify handler: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		repo:      repo,
		bus:       bus,
		logger:    logger,
		timeout:   defaultStoreTimeout,
		clockFunc: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Option configures the handler.
type Option func(*Handler)

// WithStoreTimeout bounds the per-call deadline on storage operations.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithClock overrides capture-time assignment, for tests.
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clockFunc = clock
		}
	}
}

// ServeHTTP handles POST /v2/notify.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.ResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("notify: read body error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("read_body")
		writeError(w, http.StatusInternalServerError, "read body error")
		return
	}
	defer r.Body.Close()

	var notification telemetry.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		h.logger.Printf("notify: malformed notification: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("malformed_notification")
		writeError(w, http.StatusInternalServerError, "malformed notification")
		return
	}

	// One capture timestamp per snapshot keeps all attributes from the
	// same update time-aligned.
	batch := make([]telemetry.Record, 0, len(notification.Data))
	entityIDs := make([]string, 0, len(notification.Data))
	for _, snapshot := range notification.Data {
		capturedAt := h.clockFunc()
		records := telemetry.Normalize(snapshot, capturedAt)
		if len(records) > 0 {
			entityIDs = append(entityIDs, snapshot.ID)
		}
		batch = append(batch, records...)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.repo.InsertRecords(ctx, batch); err != nil {
		h.logger.Printf("notify: insert error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("store_unavailable")
		writeError(w, http.StatusInternalServerError, "store error: "+err.Error())
		return
	}
	metrics.AddIngestRecords(len(batch))

	if h.bus != nil && len(batch) > 0 {
		event := events.NotificationIngested{
			EventID:    eventing.NewEventID(),
			EntityIDs:  entityIDs,
			Records:    len(batch),
			OccurredAt: batch[len(batch)-1].Time,
		}
		if err := h.bus.Publish(r.Context(), event); err != nil {
			h.logger.Printf("notify: publish error: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"inserted": len(batch)})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
