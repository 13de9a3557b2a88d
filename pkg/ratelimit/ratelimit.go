// Package ratelimit implements an in-memory per-client token bucket used to
// throttle query endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Janitor cadence and the idle age beyond which a bucket is dropped.
const (
	sweepInterval = 5 * time.Minute
	idleCutoff    = 10 * time.Minute
)

// bucket tracks the token state for a single key.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// refill credits tokens for the time elapsed since the bucket was last
// touched, capped at burst.
func (b *bucket) refill(now time.Time, rate float64, burst int) {
	b.tokens += now.Sub(b.lastSeen).Seconds() * rate
	if b.tokens > float64(burst) {
		b.tokens = float64(burst)
	}
	b.lastSeen = now
}

// Limiter is an in-memory token-bucket rate limiter. Each key holds up to
// burst tokens, refilled continuously at rate tokens per second.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
}

// New creates a rate limiter refilling at rate tokens per second with the
// given burst capacity.
func New(rate float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
	}
	go l.sweep()
	return l
}

// Allow consumes one token for key if any are available and reports whether
// the request may proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(l.burst - 1), lastSeen: now}
		return true
	}

	b.refill(now, l.rate, l.burst)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset clears the rate-limit state for a specific key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// sweep periodically drops buckets that have been idle past the cutoff.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-idleCutoff)
		for key, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
