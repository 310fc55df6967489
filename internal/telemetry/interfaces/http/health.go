package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

const healthTimeout = 5 * time.Second

// HealthHandler reports whether a store connection can be established
// and a trivial round trip succeeds. Stateless; no retries.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if h == nil || h.db == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "store not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.roundTrip(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (h *HealthHandler) roundTrip(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}
	var one int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}
