// Package cache implements a Redis-backed query result cache with
// singleflight deduplication of concurrent misses and a circuit breaker
// that keeps Redis outages from slowing the query path.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/proplex/searchd/pkg/config"
	"github.com/proplex/searchd/pkg/logger"
	pkgredis "github.com/proplex/searchd/pkg/redis"
	"github.com/proplex/searchd/pkg/resilience"
	"github.com/proplex/searchd/pkg/search"
)

const keyPrefix = "search:"

// QueryCache caches serialised search results keyed by a canonical form of
// the full query, so two requests differing only in JSON field order or
// filter value order share an entry.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.CacheConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. onBreakerChange may be nil; when set it is
// invoked on circuit state transitions so callers can export the state as
// a gauge.
func New(client *pkgredis.Client, cfg config.CacheConfig, onBreakerChange func(name string, state resilience.State)) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			OnStateChange: onBreakerChange,
		}),
		logger: logger.WithComponent("query-cache"),
	}
}

// Get returns the cached result for q, or (nil, false) on a miss. Redis
// errors are demoted to misses.
func (c *QueryCache) Get(ctx context.Context, q search.Query) (*search.Result, bool) {
	key := c.buildKey(q)
	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			// A missing key is not a Redis failure.
			data = ""
			return nil
		}
		return getErr
	})
	if err != nil {
		c.logger.Debug("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if data == "" {
		c.misses.Add(1)
		return nil, false
	}
	var result search.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", q.Text, "key", key)
	return &result, true
}

// Set stores the result for q with the configured TTL. Failures are logged
// and swallowed; caching is best effort.
func (c *QueryCache) Set(ctx context.Context, q search.Query, result *search.Result) {
	key := c.buildKey(q)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.TTL)
	})
	if err != nil {
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for q or runs computeFn exactly
// once per key across concurrent callers, caching its result. The bool
// reports whether the value came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q search.Query,
	computeFn func() (*search.Result, error),
) (*search.Result, bool, error) {
	if result, ok := c.Get(ctx, q); ok {
		return result, true, nil
	}
	key := c.buildKey(q)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, q); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*search.Result), false, nil
}

// Invalidate removes every cached query result. Called after a corpus load
// or clear so stale rankings never serve.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var flushErr error
		deleted, flushErr = c.client.FlushByPattern(ctx, keyPrefix+"*")
		return flushErr
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the process-local hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the current state of the Redis circuit breaker.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

func (c *QueryCache) buildKey(q search.Query) string {
	hash := sha256.Sum256([]byte(Canonical(q)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Canonical renders q as a deterministic string: lowercased text, sorted
// filter values, sorted boost keys. Two queries with equal semantics yield
// equal strings regardless of slice or map order.
func Canonical(q search.Query) string {
	var b strings.Builder
	b.WriteString("text=")
	b.WriteString(strings.ToLower(strings.TrimSpace(q.Text)))

	if f := q.Filters; f != nil {
		b.WriteString("|cats=")
		b.WriteString(sortedJoin(f.Categories))
		b.WriteString("|tags=")
		b.WriteString(sortedJoin(f.Tags))
		if f.ScoreThreshold != nil {
			b.WriteString("|thr=")
			b.WriteString(strconv.FormatFloat(*f.ScoreThreshold, 'g', -1, 64))
		}
		if f.DateRange != nil {
			b.WriteString("|from=")
			b.WriteString(f.DateRange.From)
			b.WriteString("|to=")
			b.WriteString(f.DateRange.To)
		}
	}

	if q.Limit != nil {
		b.WriteString("|limit=")
		b.WriteString(strconv.Itoa(*q.Limit))
	}
	if q.Offset != nil {
		b.WriteString("|offset=")
		b.WriteString(strconv.Itoa(*q.Offset))
	}
	if q.Fuzzy {
		b.WriteString("|fuzzy=1")
		if q.FuzzyDistance != nil {
			b.WriteString("|dist=")
			b.WriteString(strconv.Itoa(*q.FuzzyDistance))
		}
	}

	if len(q.Boosts) > 0 {
		keys := make([]string, 0, len(q.Boosts))
		for k := range q.Boosts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("|boosts=")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(strconv.FormatFloat(q.Boosts[k], 'g', -1, 64))
		}
	}
	return b.String()
}

func sortedJoin(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
