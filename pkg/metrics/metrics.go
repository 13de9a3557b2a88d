// Package metrics declares every Prometheus collector the search services
// export, pre-registered on the default registry via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search queries answer in well under a millisecond once the index is
// warm, so the latency buckets start at 100µs rather than the usual 5ms.
var (
	searchBuckets = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
	httpBuckets   = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
)

// Metrics gathers the collectors. Construct exactly once per process;
// promauto panics on duplicate registration.
type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Query pipeline
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	FuzzyQueriesTotal   prometheus.Counter
	SuggestQueriesTotal prometheus.Counter
	BatchScoreQueries   prometheus.Histogram

	// Cache and index lifecycle
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	DocsIndexedTotal    prometheus.Counter
	IndexLoadsTotal     *prometheus.CounterVec
	IndexLoadDuration   prometheus.Histogram
	IndexDocuments      prometheus.Gauge
	IndexDistinctTerms  prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, labelled by method, path, and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Wall time per HTTP request.",
			Buckets: httpBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently inside the handler chain.",
		}),

		SearchQueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Search queries by outcome (ok, invalid, error).",
		}, []string{"outcome"}),
		SearchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_latency_seconds",
			Help:    "End-to-end query latency, split by cache hit or miss.",
			Buckets: searchBuckets,
		}, []string{"cache_status"}),
		SearchResultsCount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_results_count",
			Help:    "Matches per query before pagination.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
		}),
		FuzzyQueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "search_fuzzy_queries_total",
			Help: "Queries that requested fuzzy term expansion.",
		}),
		SuggestQueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "suggest_queries_total",
			Help: "Autocomplete requests.",
		}),
		BatchScoreQueries: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_score_queries_per_request",
			Help:    "Queries carried by each batch-score request.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		CacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Query cache hits.",
		}),
		CacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Query cache misses.",
		}),
		DocsIndexedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docs_indexed_total",
			Help: "Documents indexed, summed over every corpus load.",
		}),
		IndexLoadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "index_loads_total",
			Help: "Corpus load operations by status.",
		}, []string{"status"}),
		IndexLoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "index_load_duration_seconds",
			Help:    "Time to rebuild the index on a corpus load.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		IndexDocuments: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "index_documents",
			Help: "Documents in the live index generation.",
		}),
		IndexDistinctTerms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "index_distinct_terms",
			Help: "Distinct terms in the live index generation.",
		}),
		CircuitBreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Breaker position: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}
}

// Handler returns the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
