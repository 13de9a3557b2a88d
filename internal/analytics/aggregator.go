package analytics

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proplex/searchd/pkg/kafka"
	"github.com/proplex/searchd/pkg/logger"
)

// AggregatedStats is the rolling summary served by the analytics endpoint
// and persisted in snapshots.
type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalLoads        int64        `json:"total_loads"`
	TotalDocsLoaded   int64        `json:"total_docs_loaded"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	FuzzySearches     int64        `json:"fuzzy_searches"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

// QueryCount pairs a query text with how often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds the event stream into AggregatedStats.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalLoads        atomic.Int64
	totalDocsLoaded   atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	fuzzySearches     atomic.Int64
	zeroResults       atomic.Int64
	latencies         []float64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]float64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            logger.WithComponent("analytics-aggregator"),
	}
}

// eventEnvelope is decoded first to dispatch on the event type.
type eventEnvelope struct {
	Type EventType `json:"type"`
}

// HandleEvent returns a kafka.MessageHandler that folds decoded events into
// agg. Undecodable messages are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		envelope, err := kafka.DecodeJSON[eventEnvelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch envelope.Type {
		case EventLoad:
			event, err := kafka.DecodeJSON[LoadEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode load event", "error", err)
				return nil
			}
			agg.recordLoadEvent(event)
		default:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.recordSearchEvent(event)
		}
		return nil
	}
}

// Record folds an event directly, bypassing Kafka. Used when the collector
// and aggregator run in the same process and the broker is unavailable.
func (a *Aggregator) Record(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearchEvent(e)
	case LoadEvent:
		a.recordLoadEvent(e)
	}
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)

	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Fuzzy {
		a.fuzzySearches.Add(1)
	}
	if event.TotalHits == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordLoadEvent(event LoadEvent) {
	a.totalLoads.Add(1)
	a.totalDocsLoaded.Add(int64(event.Documents))
}

// Stats returns a copy of the current aggregate view.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		TotalLoads:      a.totalLoads.Load(),
		TotalDocsLoaded: a.totalDocsLoaded.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		FuzzySearches:   a.fuzzySearches.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	if n := len(a.latencies); n > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(n)
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// StatsHandler returns an HTTP handler serving the aggregated view as JSON.
func (a *Aggregator) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
			a.logger.Error("failed to write analytics response", "error", err)
		}
	}
}

// percentile picks the nearest-rank element of an ascending slice.
func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[min(pct*len(sorted)/100, len(sorted)-1)]
}

// topN flattens a count map into the n most frequent entries, highest
// count first and ties broken alphabetically so the order is stable.
func topN(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
