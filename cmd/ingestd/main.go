// Command ingestd starts the document ingestion HTTP service.
//
// The service accepts documents via POST /api/v1/documents (single or bulk),
// validates them, stores them in the PostgreSQL warehouse, and publishes
// update events to Kafka so query services rebuild their indexes. Unchanged
// documents are detected by content hash and skipped.
//
// Usage:
//
//	go run ./cmd/ingestd [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/proplex/searchd/internal/ingest"
	"github.com/proplex/searchd/internal/ingest/handler"
	"github.com/proplex/searchd/pkg/config"
	"github.com/proplex/searchd/pkg/health"
	"github.com/proplex/searchd/pkg/kafka"
	"github.com/proplex/searchd/pkg/logger"
	"github.com/proplex/searchd/pkg/middleware"
	"github.com/proplex/searchd/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingest service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres", "host", cfg.Postgres.Host)

	warehouse := ingest.NewWarehouse(db)
	if err := warehouse.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure warehouse schema", "error", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentUpdates)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentUpdates)

	pub := ingest.NewPublisher(warehouse, producer)
	h := handler.New(pub, warehouse)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ProbeResult {
		if err := db.Health(ctx); err != nil {
			return health.ProbeResult{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ProbeResult{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("POST /api/v1/documents/bulk", h.IngestBulk)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	mux.HandleFunc("GET /api/v1/documents/stats", h.Stats)
	mux.HandleFunc("GET /health", checker.SummaryHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID()(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ingest service listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("forced shutdown", "error", err)
		}
		<-errCh
	case err := <-errCh:
		slog.Error("listener failed", "error", err)
		os.Exit(1)
	}
	slog.Info("ingest service stopped")
}
