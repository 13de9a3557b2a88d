// Package health runs dependency probes for the liveness and readiness
// endpoints. Each subsystem registers a Probe; the Checker fans them out
// on demand and folds the results into a single Summary, where any failing
// probe drags the overall status down.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/proplex/searchd/pkg/logger"
)

// probeTimeout bounds a full probe sweep when invoked from the HTTP handlers.
const probeTimeout = 5 * time.Second

// Status is the reported state of one dependency or of the service overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Probe inspects one dependency. Implementations should honor ctx and
// return quickly; latency is stamped by the Checker.
type Probe func(ctx context.Context) ProbeResult

// ProbeResult is what a single probe reports back.
type ProbeResult struct {
	Status    Status  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// Summary folds every probe into one view. Status is the worst individual
// status: one down dependency marks the whole service down.
type Summary struct {
	Status     Status                 `json:"status"`
	Components map[string]ProbeResult `json:"components"`
	Timestamp  string                 `json:"timestamp"`
}

// Checker holds the registered probes.
type Checker struct {
	mu     sync.RWMutex
	probes map[string]Probe
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		probes: make(map[string]Probe),
		logger: logger.WithComponent("health"),
	}
}

// Register adds a probe under the given component name, replacing any
// previous probe with that name.
func (c *Checker) Register(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

type probeOutcome struct {
	name   string
	result ProbeResult
}

// Run executes every registered probe concurrently and aggregates the
// results as they arrive.
func (c *Checker) Run(ctx context.Context) Summary {
	c.mu.RLock()
	pending := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		pending[name] = p
	}
	c.mu.RUnlock()

	results := make(chan probeOutcome, len(pending))
	for name, p := range pending {
		go func(name string, p Probe) {
			start := time.Now()
			r := p(ctx)
			r.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
			results <- probeOutcome{name: name, result: r}
		}(name, p)
	}

	sum := Summary{
		Status:     StatusUp,
		Components: make(map[string]ProbeResult, len(pending)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i := 0; i < len(pending); i++ {
		o := <-results
		sum.Components[o.name] = o.result
		switch o.result.Status {
		case StatusDown:
			c.logger.Warn("component down", "component", o.name, "message", o.result.Message)
			sum.Status = StatusDown
		case StatusDegraded:
			if sum.Status == StatusUp {
				sum.Status = StatusDegraded
			}
		}
	}
	return sum
}

// LiveHandler answers liveness probes. It never runs the registered
// probes: a live process is a live process, even with dependencies down.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"alive"}`))
	}
}

// ReadyHandler answers readiness probes: 200 only while every probe
// reports up, so load balancers stop routing to a degraded instance.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		sum := c.Run(ctx)
		code := http.StatusOK
		if sum.Status != StatusUp {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(sum)
	}
}

// SummaryHandler serves the full per-component view for operators. Unlike
// ReadyHandler it always answers 200 so the body stays inspectable when
// something is down.
func (c *Checker) SummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		sum := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sum)
	}
}
