package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telemetry-store/internal/observability/metrics"
	"telemetry-store/internal/telemetry/application"
	telemetry "telemetry-store/internal/telemetry/domain"
)

const (
	timeLayout          = time.RFC3339
	defaultQueryTimeout = 10 * time.Second
	defaultStatsWindow  = time.Hour
)

// EntityHandler serves the read side: entity history, optionally scoped
// to one attribute, and windowed aggregate statistics.
//
//	GET /v2/entities/{id}
//	GET /v2/entities/{id}/latest
//	GET /v2/entities/{id}/attrs/{attr}
//	GET /v2/entities/{id}/attrs/{attr}/stats
type EntityHandler struct {
	service *application.HistoryService
	logger  *log.Logger
	timeout time.Duration
}

// NewEntityHandler constructs the handler.
func NewEntityHandler(service *application.HistoryService, logger *log.Logger) (*EntityHandler, error) {
	if service == nil {
		return nil, errors.New("entity handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &EntityHandler{service: service, logger: logger, timeout: defaultQueryTimeout}, nil
}

// ServeHTTP dispatches on the path below /v2/entities/.
func (h *EntityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v2/entities/")
	if rest == r.URL.Path || rest == "" {
		http.Error(w, "entity id required", http.StatusBadRequest)
		return
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(segments) == 1:
		h.handleHistory(w, r, segments[0], "")
	case len(segments) == 2 && segments[1] == "latest":
		h.handleLatest(w, r, segments[0])
	case len(segments) == 3 && segments[1] == "attrs":
		h.handleHistory(w, r, segments[0], segments[2])
	case len(segments) == 4 && segments[1] == "attrs" && segments[3] == "stats":
		h.handleStats(w, r, segments[0], segments[2])
	default:
		http.NotFound(w, r)
	}
}

func (h *EntityHandler) handleHistory(w http.ResponseWriter, r *http.Request, entityID, attribute string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveQuery("history", result, time.Since(start))
	}()

	lastN, err := parseIntQuery(r, "lastN", application.DefaultHistoryLimit)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	from, err := parseTimeQuery(r, "fromDate")
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "toDate")
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.service.GetHistory(ctx, entityID, attribute, lastN, from, to)
	if err != nil {
		if errors.Is(err, telemetry.ErrInvalidLimit) {
			result = metrics.ResultError
			http.Error(w, "lastN must not be negative", http.StatusBadRequest)
			return
		}
		h.logger.Printf("history query error: %v", err)
		result = metrics.ResultError
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *EntityHandler) handleLatest(w http.ResponseWriter, r *http.Request, entityID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveQuery("latest", result, time.Since(start))
	}()

	n, err := parseIntQuery(r, "n", application.DefaultLatestN)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.service.GetLatest(ctx, entityID, n)
	if err != nil {
		h.logger.Printf("latest query error: %v", err)
		result = metrics.ResultError
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *EntityHandler) handleStats(w http.ResponseWriter, r *http.Request, entityID, attribute string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveQuery("stats", result, time.Since(start))
	}()

	window := defaultStatsWindow
	if value := r.URL.Query().Get("window"); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			result = metrics.ResultError
			http.Error(w, "window must be a positive duration", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.service.GetStatistics(ctx, entityID, attribute, window)
	if err != nil {
		if errors.Is(err, telemetry.ErrEmptyAttribute) {
			result = metrics.ResultError
			http.Error(w, "attribute is required", http.StatusBadRequest)
			return
		}
		h.logger.Printf("stats query error: %v", err)
		result = metrics.ResultError
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func parseIntQuery(r *http.Request, key string, fallback int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	if parsed < 0 {
		return 0, errors.New(key + " must not be negative")
	}
	return parsed, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
