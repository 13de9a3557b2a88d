// Package handler exposes the query service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/proplex/searchd/internal/analytics"
	"github.com/proplex/searchd/internal/searchd"
	"github.com/proplex/searchd/internal/searchd/cache"
	"github.com/proplex/searchd/pkg/errors"
	"github.com/proplex/searchd/pkg/logger"
	"github.com/proplex/searchd/pkg/metrics"
	"github.com/proplex/searchd/pkg/search"
	"github.com/proplex/searchd/pkg/tracing"
)

const defaultExportChunk = 500

// Reloader restores the corpus from the document warehouse.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Config carries the optional collaborators of a Handler. Any field may be
// left nil (zero) to disable that concern.
type Config struct {
	Cache            *cache.QueryCache
	Collector        *analytics.Collector
	Metrics          *metrics.Metrics
	Reloader         Reloader
	MaxLimit         int
	MaxFuzzyDistance int
}

// Handler holds the HTTP endpoints of the query service.
type Handler struct {
	svc              *searchd.Service
	cache            *cache.QueryCache
	collector        *analytics.Collector
	metrics          *metrics.Metrics
	reloader         Reloader
	maxLimit         int
	maxFuzzyDistance int
	logger           *slog.Logger
}

// New creates a Handler around the service.
func New(svc *searchd.Service, cfg Config) *Handler {
	return &Handler{
		svc:              svc,
		cache:            cfg.Cache,
		collector:        cfg.Collector,
		metrics:          cfg.Metrics,
		reloader:         cfg.Reloader,
		maxLimit:         cfg.MaxLimit,
		maxFuzzyDistance: cfg.MaxFuzzyDistance,
		logger:           logger.WithComponent("search-handler"),
	}
}

// Search serves POST /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var q search.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		h.countSearch("invalid")
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.clampQuery(&q)

	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestIDFromContext(ctx))
	span.SetAttr("query", q.Text)
	span.SetAttr("fuzzy", q.Fuzzy)

	var result *search.Result
	var err error
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, q, func() (*search.Result, error) {
			_, engineSpan := tracing.StartChildSpan(ctx, "engine-search")
			defer engineSpan.End()
			return h.svc.Search(q)
		})
	} else {
		_, engineSpan := tracing.StartChildSpan(ctx, "engine-search")
		result, err = h.svc.Search(q)
		engineSpan.End()
	}

	span.End()
	if log.Enabled(ctx, slog.LevelDebug) {
		span.Log()
	}

	if err != nil {
		status := errors.HTTPStatusCode(err)
		if status == http.StatusBadRequest {
			h.countSearch("invalid")
		} else {
			h.countSearch("error")
			log.Error("search failed", "query", q.Text, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}

	latency := time.Since(start)
	h.countSearch("ok")
	if h.metrics != nil {
		cacheStatus := "bypass"
		if h.cache != nil {
			if cacheHit {
				cacheStatus = "hit"
				h.metrics.CacheHitsTotal.Inc()
			} else {
				cacheStatus = "miss"
				h.metrics.CacheMissesTotal.Inc()
			}
		}
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(result.Total))
		if q.Fuzzy {
			h.metrics.FuzzyQueriesTotal.Inc()
		}
	}

	latencyMs := float64(latency.Microseconds()) / 1000
	log.Info("search completed",
		"query", q.Text,
		"total", result.Total,
		"returned", len(result.Documents),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	h.track(func() any {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		return analytics.SearchEvent{
			Type:      eventType,
			Query:     q.Text,
			Fuzzy:     q.Fuzzy,
			Filtered:  q.Filters != nil,
			TotalHits: result.Total,
			Returned:  len(result.Documents),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestIDFromContext(ctx),
		}
	})

	h.writeJSON(w, http.StatusOK, result)
}

// Suggest serves GET /api/v1/suggest.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	suggestions := h.svc.Suggest(prefix, limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	if h.metrics != nil {
		h.metrics.SuggestQueriesTotal.Inc()
	}

	h.writeJSON(w, http.StatusOK, &search.SuggestResponse{
		Prefix:      prefix,
		Suggestions: suggestions,
	})
}

// BatchScore serves POST /api/v1/batch-score.
func (h *Handler) BatchScore(w http.ResponseWriter, r *http.Request) {
	var req search.BatchScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results := h.svc.BatchScore(req.Queries)
	if results == nil {
		results = []search.BatchQueryResult{}
	}
	if h.metrics != nil {
		h.metrics.BatchScoreQueries.Observe(float64(len(req.Queries)))
	}

	h.writeJSON(w, http.StatusOK, &search.BatchScoreResponse{Results: results})
}

// Stats serves GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.Stats()
	h.setIndexGauges(stats)
	h.writeJSON(w, http.StatusOK, &stats)
}

// Load serves POST /api/v1/load, replacing the whole corpus.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req search.LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	indexed := h.svc.Load(req.Documents)
	elapsed := time.Since(start)
	elapsedMs := float64(elapsed.Microseconds()) / 1000.0

	h.invalidateCache(ctx, log)
	h.recordLoad(indexed, elapsed)

	log.Info("corpus loaded", "documents", indexed, "elapsed_ms", elapsedMs)

	h.track(func() any {
		return analytics.LoadEvent{
			Type:      analytics.EventLoad,
			Documents: indexed,
			ElapsedMs: elapsedMs,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestIDFromContext(ctx),
		}
	})

	h.writeJSON(w, http.StatusOK, &search.LoadResponse{
		Indexed:   indexed,
		ElapsedMs: elapsedMs,
	})
}

// Reload serves POST /api/v1/reload, restoring the corpus from the document
// warehouse.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.reloader == nil {
		h.writeError(w, http.StatusServiceUnavailable, "no document warehouse configured")
		return
	}

	start := time.Now()
	indexed, err := h.reloader.Reload(ctx)
	if err != nil {
		if h.metrics != nil {
			h.metrics.IndexLoadsTotal.WithLabelValues("error").Inc()
		}
		log.Error("reload failed", "error", err)
		h.writeError(w, errors.HTTPStatusCode(err), "reload failed")
		return
	}
	elapsed := time.Since(start)
	elapsedMs := float64(elapsed.Microseconds()) / 1000.0

	h.invalidateCache(ctx, log)
	h.recordLoad(indexed, elapsed)

	log.Info("corpus reloaded", "documents", indexed, "elapsed_ms", elapsedMs)

	h.writeJSON(w, http.StatusOK, &search.LoadResponse{
		Indexed:   indexed,
		ElapsedMs: elapsedMs,
	})
}

// Clear serves DELETE /api/v1/index.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	h.svc.Clear()
	h.invalidateCache(ctx, log)
	if h.metrics != nil {
		h.metrics.IndexDocuments.Set(0)
		h.metrics.IndexDistinctTerms.Set(0)
	}

	log.Info("index cleared")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Export serves GET /api/v1/export, streaming the corpus as NDJSON. The
// chunk parameter sets the traversal granularity.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	chunkSize := defaultExportChunk
	if raw := r.URL.Query().Get("chunk"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "chunk must be a positive integer")
			return
		}
		chunkSize = parsed
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	err := h.svc.Export(chunkSize, func(chunk []search.Document) error {
		for _, doc := range chunk {
			if err := enc.Encode(doc); err != nil {
				return err
			}
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are out; all we can do is drop the connection early.
		log.Error("export aborted", "error", err)
	}
}

// cacheStatsResponse is the body served by CacheStats.
type cacheStatsResponse struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	Breaker string `json:"breaker"`
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	resp := cacheStatsResponse{
		Hits:    hits,
		Misses:  misses,
		Total:   hits + misses,
		Breaker: h.cache.BreakerState().String(),
	}
	rate := 0.0
	if resp.Total > 0 {
		rate = 100 * float64(hits) / float64(resp.Total)
	}
	resp.HitRate = fmt.Sprintf("%.1f%%", rate)
	h.writeJSON(w, http.StatusOK, resp)
}

// CacheInvalidate serves POST /api/v1/cache/invalidate, dropping every
// cached query result.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("flush failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// clampQuery caps limit and fuzzy distance at the configured maxima.
// Validation of negative values stays in the engine.
func (h *Handler) clampQuery(q *search.Query) {
	if h.maxLimit > 0 && q.Limit != nil && *q.Limit > h.maxLimit {
		*q.Limit = h.maxLimit
	}
	if h.maxFuzzyDistance > 0 && q.FuzzyDistance != nil && *q.FuzzyDistance > h.maxFuzzyDistance {
		*q.FuzzyDistance = h.maxFuzzyDistance
	}
}

func (h *Handler) countSearch(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

// track defers event construction so disabled analytics costs nothing.
func (h *Handler) track(build func() any) {
	if h.collector != nil {
		h.collector.Track(build())
	}
}

func (h *Handler) invalidateCache(ctx context.Context, log *slog.Logger) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		log.Warn("cache invalidation after index change failed", "error", err)
	}
}

func (h *Handler) recordLoad(indexed int, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.IndexLoadsTotal.WithLabelValues("ok").Inc()
	h.metrics.IndexLoadDuration.Observe(elapsed.Seconds())
	h.metrics.DocsIndexedTotal.Add(float64(indexed))
	h.setIndexGauges(h.svc.Stats())
}

func (h *Handler) setIndexGauges(stats search.Stats) {
	if h.metrics == nil {
		return
	}
	h.metrics.IndexDocuments.Set(float64(stats.TotalDocuments))
	h.metrics.IndexDistinctTerms.Set(float64(stats.TotalDistinctTerms))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
