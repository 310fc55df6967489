package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"telemetry-store/internal/eventing"
	"telemetry-store/internal/observability/metrics"
	"telemetry-store/internal/orion"
	"telemetry-store/internal/subscriptions"
	"telemetry-store/internal/telemetry/application"
	"telemetry-store/internal/telemetry/application/events"
	telemetrypostgres "telemetry-store/internal/telemetry/infrastructure/postgres"
	httpapi "telemetry-store/internal/telemetry/interfaces/http"
	"telemetry-store/internal/telemetry/interfaces/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	repo := telemetrypostgres.NewRecordRepository(db)
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repo.InitSchema(initCtx); err != nil {
		cancel()
		logger.Fatalf("schema init error: %v", err)
	}
	cancel()

	metrics.Init(db, repo.Table(), logger)

	query := telemetrypostgres.NewRecordQuery(db)
	historyService, err := application.NewHistoryService(query)
	if err != nil {
		logger.Fatalf("history service error: %v", err)
	}

	bus := eventing.NewBus()
	eventing.Subscribe[events.NotificationIngested](bus, func(ctx context.Context, event any) error {
		evt, ok := event.(events.NotificationIngested)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("notification ingested: records=%d entities=%d event=%s", evt.Records, len(evt.EntityIDs), evt.EventID)
		return nil
	})

	notifyHandler, err := notify.NewHandler(repo, bus, logger, notify.WithStoreTimeout(cfg.StoreTimeout))
	if err != nil {
		logger.Fatalf("notify handler error: %v", err)
	}
	entityHandler, err := httpapi.NewEntityHandler(historyService, logger)
	if err != nil {
		logger.Fatalf("entity handler error: %v", err)
	}
	exportHandler, err := httpapi.NewExportHandler(historyService, logger)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	if cfg.OrionURL != "" {
		client, err := orion.NewClient(cfg.OrionURL, cfg.FiwareService)
		if err != nil {
			logger.Fatalf("orion client error: %v", err)
		}
		subCfg, err := subscriptions.LoadConfig()
		if err != nil {
			logger.Fatalf("subscriptions config error: %v", err)
		}
		if subCfg.NotifyURL == "" {
			subCfg.NotifyURL = cfg.NotifyURL
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := subscriptions.Bootstrap(ctx, client, subCfg, logger); err != nil {
				logger.Printf("subscription bootstrap incomplete: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/v2/notify", notifyHandler)
	mux.Handle("/v2/entities/", entityHandler)
	mux.Handle("/v2/exports/", exportHandler)
	mux.Handle("/health", httpapi.NewHealthHandler(db))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL   string
	HTTPAddr      string
	OrionURL      string
	FiwareService string
	NotifyURL     string
	StoreTimeout  time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8668"),
		OrionURL:      getenvDefault("ORION_URL", ""),
		FiwareService: getenvDefault("FIWARE_SERVICE", "digitaltwin"),
		NotifyURL:     getenvDefault("NOTIFY_URL", "http://localhost:8668/v2/notify"),
		StoreTimeout:  getenvDuration("STORE_TIMEOUT", 10*time.Second),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
