package analytics

import "time"

type EventType string

const (
	EventSearch    EventType = "search"
	EventCacheHit  EventType = "cache_hit"
	EventCacheMiss EventType = "cache_miss"
	EventLoad      EventType = "load"
)

// SearchEvent records one query served by the engine. LatencyMs is
// fractional; most searches finish in well under a millisecond.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Fuzzy     bool      `json:"fuzzy"`
	Filtered  bool      `json:"filtered"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// LoadEvent records a corpus replacement.
type LoadEvent struct {
	Type      EventType `json:"type"`
	Documents int       `json:"documents"`
	ElapsedMs float64   `json:"elapsed_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
