// Command searchd starts the query service.
//
// The service keeps the full corpus in an in-memory inverted index and
// serves ranked search, suggestions, batch scoring, and stats over HTTP
// and an internal JSON-over-TCP RPC listener. The corpus is loaded from
// the document warehouse at startup and rebuilt whenever update events
// arrive on the document-updates topic.
//
// Usage:
//
//	go run ./cmd/searchd [-config configs/development.yaml]
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
	"time"

	"github.com/proplex/searchd/internal/analytics"
	"github.com/proplex/searchd/internal/analytics/snapshot"
	"github.com/proplex/searchd/internal/engine"
	"github.com/proplex/searchd/internal/ingest"
	"github.com/proplex/searchd/internal/searchd"
	"github.com/proplex/searchd/internal/searchd/cache"
	"github.com/proplex/searchd/internal/searchd/handler"
	"github.com/proplex/searchd/pkg/config"
	"github.com/proplex/searchd/pkg/health"
	"github.com/proplex/searchd/pkg/kafka"
	"github.com/proplex/searchd/pkg/logger"
	"github.com/proplex/searchd/pkg/metrics"
	"github.com/proplex/searchd/pkg/middleware"
	"github.com/proplex/searchd/pkg/postgres"
	"github.com/proplex/searchd/pkg/ratelimit"
	pkgredis "github.com/proplex/searchd/pkg/redis"
	"github.com/proplex/searchd/pkg/resilience"
	"github.com/proplex/searchd/pkg/rpc"
)

// updateSettleDelay coalesces a burst of document-update events into a
// single index rebuild.
const updateSettleDelay = 2 * time.Second

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := searchd.NewService(engine.Config{
		K1:                   cfg.Engine.K1,
		B:                    cfg.Engine.B,
		DefaultLimit:         cfg.Engine.DefaultLimit,
		DefaultFuzzyDistance: cfg.Engine.DefaultFuzzyDistance,
		SuggestLimit:         cfg.Engine.SuggestLimit,
	})

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	var db *postgres.Client
	var reloader *searchd.WarehouseReloader
	db, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, warehouse reloads disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
		reloader = searchd.NewWarehouseReloader(ingest.NewWarehouse(db), svc)
		slog.Info("document warehouse connected", "host", cfg.Postgres.Host)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Cache.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Cache)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			var onBreakerChange func(name string, state resilience.State)
			if m != nil {
				onBreakerChange = func(name string, state resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
				}
			}
			queryCache = cache.New(redisClient, cfg.Cache, onBreakerChange)
			slog.Info("query cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var collector *analytics.Collector
	if cfg.Analytics.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector = analytics.NewCollector(analyticsProducer, cfg.Analytics)
		collector.Start(ctx)
		defer collector.Close()

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	var snapStore *snapshot.Store
	if db != nil && cfg.Analytics.Enabled {
		snapStore = snapshot.NewStore(db)
		if err := snapStore.EnsureSchema(ctx); err != nil {
			slog.Warn("analytics snapshots disabled", "error", err)
			snapStore = nil
		} else {
			if prev, err := snapStore.Latest(ctx); err != nil {
				slog.Warn("could not read last analytics snapshot", "error", err)
			} else if prev != nil {
				slog.Info("last analytics snapshot",
					"total_searches", prev.TotalSearches,
					"total_loads", prev.TotalLoads,
				)
			}
			snapStore.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
	}

	if reloader != nil {
		reloadCh := make(chan struct{}, 1)
		updatesConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentUpdates,
			func(ctx context.Context, key, value []byte) error {
				event, err := kafka.DecodeJSON[ingest.UpdateEvent](value)
				if err != nil {
					slog.Warn("skipping undecodable update event", "error", err)
					return nil
				}
				slog.Debug("document update received", "doc_id", event.DocumentID, "action", event.Action)
				select {
				case reloadCh <- struct{}{}:
				default:
				}
				return nil
			})
		go func() {
			if err := updatesConsumer.Start(ctx); err != nil {
				slog.Error("document updates consumer error", "error", err)
			}
		}()
		go reloadLoop(ctx, reloadCh, reloader, queryCache, m)

		if indexed, err := reloader.Reload(ctx); err != nil {
			slog.Warn("initial corpus load failed, starting empty", "error", err)
		} else {
			slog.Info("initial corpus loaded", "documents", indexed)
		}
	}

	checker := health.NewChecker()
	checker.Register("engine", func(ctx context.Context) health.ProbeResult {
		stats := svc.Stats()
		return health.ProbeResult{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents indexed", stats.TotalDocuments),
		}
	})
	checker.Register("postgres", func(ctx context.Context) health.ProbeResult {
		if db == nil {
			return health.ProbeResult{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := db.Health(ctx); err != nil {
			return health.ProbeResult{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ProbeResult{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ProbeResult {
		if redisClient == nil {
			return health.ProbeResult{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ProbeResult{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ProbeResult{Status: health.StatusUp}
	})

	if cfg.RPC.Enabled {
		rpcServer := rpc.NewServer()
		searchd.RegisterRPC(rpcServer, svc, cfg.RPC.Timeout)
		defer rpcServer.Stop()
		go func() {
			addr := fmt.Sprintf(":%d", cfg.RPC.Port)
			slog.Info("rpc server listening", "addr", addr, "methods", rpcServer.MethodCount())
			if err := rpcServer.Serve(addr); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
	}

	hcfg := handler.Config{
		Cache:            queryCache,
		Collector:        collector,
		Metrics:          m,
		MaxLimit:         cfg.Engine.MaxLimit,
		MaxFuzzyDistance: cfg.Engine.MaxFuzzyDistance,
	}
	if reloader != nil {
		hcfg.Reloader = reloader
	}
	h := handler.New(svc, hcfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("POST /api/v1/batch-score", h.BatchScore)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/load", h.Load)
	mux.HandleFunc("POST /api/v1/reload", h.Reload)
	mux.HandleFunc("DELETE /api/v1/index", h.Clear)
	mux.HandleFunc("GET /api/v1/export", h.Export)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", aggregator.StatsHandler())
	if snapStore != nil {
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapStore.ListHandler())
	}
	mux.HandleFunc("GET /health", checker.SummaryHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.RequestsPerSec, cfg.RateLimit.Burst)
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("rate limiting enabled", "requests_per_sec", cfg.RateLimit.RequestsPerSec, "burst", cfg.RateLimit.Burst)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID()(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("search service listening", "addr", server.Addr)
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
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics listener shutdown", "error", err)
			}
		}
		<-errCh
	case err := <-errCh:
		slog.Error("listener failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// reloadLoop rebuilds the index when document-update events arrive. It
// waits out the settle delay first so a burst of updates costs one rebuild,
// then invalidates the query cache.
func reloadLoop(ctx context.Context, trigger <-chan struct{}, reloader *searchd.WarehouseReloader, queryCache *cache.QueryCache, m *metrics.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(updateSettleDelay):
		}
		select {
		case <-trigger:
		default:
		}

		indexed, err := reloader.Reload(ctx)
		if err != nil {
			if m != nil {
				m.IndexLoadsTotal.WithLabelValues("error").Inc()
			}
			slog.Error("reload after document update failed", "error", err)
			continue
		}
		if queryCache != nil {
			if err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after reload failed", "error", err)
			}
		}
		if m != nil {
			m.IndexLoadsTotal.WithLabelValues("ok").Inc()
		}
		slog.Info("index rebuilt after document update", "documents", indexed)
	}
}
