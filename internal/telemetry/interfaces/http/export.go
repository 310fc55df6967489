package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"telemetry-store/internal/observability/metrics"
	"telemetry-store/internal/telemetry/application"
	telemetry "telemetry-store/internal/telemetry/domain"
)

// ExportHandler renders an entity's history as a downloadable file.
//
//	GET /v2/exports/history.csv?entityId=...&attribute=...&lastN=...
//	GET /v2/exports/history.xlsx?...
//	GET /v2/exports/history.pdf?...
type ExportHandler struct {
	service *application.HistoryService
	logger  *log.Logger
	timeout time.Duration
}

// NewExportHandler constructs the handler.
func NewExportHandler(service *application.HistoryService, logger *log.Logger) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("export handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ExportHandler{service: service, logger: logger, timeout: defaultQueryTimeout}, nil
}

// ServeHTTP dispatches on the export format suffix.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	format := strings.TrimPrefix(r.URL.Path, "/v2/exports/history.")
	if format == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	entityID := r.URL.Query().Get("entityId")
	if entityID == "" {
		metrics.IncExport(format, metrics.ResultError)
		http.Error(w, "entityId is required", http.StatusBadRequest)
		return
	}
	attribute := r.URL.Query().Get("attribute")
	lastN, err := parseIntQuery(r, "lastN", application.DefaultHistoryLimit)
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	history, err := h.service.GetHistory(ctx, entityID, attribute, lastN, time.Time{}, time.Time{})
	if err != nil {
		if errors.Is(err, telemetry.ErrInvalidLimit) {
			metrics.IncExport(format, metrics.ResultError)
			http.Error(w, "lastN must not be negative", http.StatusBadRequest)
			return
		}
		h.logger.Printf("export query error: %v", err)
		metrics.IncExport(format, metrics.ResultError)
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	var payload []byte
	var contentType string
	switch format {
	case "csv":
		payload, err = BuildHistoryCSV(history)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		payload, err = BuildHistoryXLSX(history)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		payload, err = BuildHistoryPDF(history)
		contentType = "application/pdf"
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Printf("export build error: %v", err)
		metrics.IncExport(format, metrics.ResultError)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	metrics.IncExport(format, metrics.ResultSuccess)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="history.`+format+`"`)
	_, _ = w.Write(payload)
}
