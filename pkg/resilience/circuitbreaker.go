// Package resilience wraps unreliable calls: a circuit breaker for
// dependencies that fail in bursts, retry with exponential backoff for
// transient errors, and a timeout guard built on context deadlines.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/proplex/searchd/pkg/logger"
)

// ErrCircuitOpen is wrapped into every error returned while the breaker
// rejects calls. Match it with errors.Is.
var ErrCircuitOpen = errors.New("circuit open")

// State is the breaker's position in its closed/open/half-open cycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig tunes when the breaker trips and how it recovers.
// OnStateChange, when set, fires on every transition; it runs under the
// breaker's lock and must not call back into the breaker.
type CircuitBreakerConfig struct {
	FailureThreshold    int           // consecutive failures before tripping (default 5)
	ResetTimeout        time.Duration // how long an open circuit blocks calls (default 30s)
	HalfOpenMaxRequests int           // probe budget while half-open (default 1)
	OnStateChange       func(name string, state State)
}

func (cfg CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return cfg
}

// CircuitBreaker trips open after a run of consecutive failures and
// rejects calls until ResetTimeout has passed. It then half-opens and
// admits a bounded number of probes: the first probe success closes the
// circuit, the first probe failure reopens it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	probes      int
	lastFailure time.Time
}

// NewCircuitBreaker builds a breaker named for the dependency it guards.
// Zero config fields fall back to defaults.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: logger.WithComponent("circuit-breaker").With("name", name),
	}
}

// Execute runs fn if the circuit admits it and feeds the outcome back
// into the breaker. The returned error is fn's own unless the circuit
// rejected the call.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// allow decides whether a call may proceed, moving an expired Open
// circuit to HalfOpen on the way.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		remaining := cb.cfg.ResetTimeout - time.Since(cb.lastFailure)
		if remaining > 0 {
			return fmt.Errorf("%w: %s blocked for another %v", ErrCircuitOpen, cb.name, remaining)
		}
		cb.transition(StateHalfOpen)
		cb.probes = 0
		cb.logger.Info("half-open, admitting probes", "cooldown", cb.cfg.ResetTimeout)
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s has no probe slots left", ErrCircuitOpen, cb.name)
		}
		cb.probes++
	}
	return nil
}

// record folds the outcome of one call into the breaker state.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.cfg.FailureThreshold {
				cb.transition(StateOpen)
				cb.logger.Warn("tripped open",
					"consecutive_failures", cb.failures,
					"threshold", cb.cfg.FailureThreshold,
				)
			}
		case StateHalfOpen:
			cb.transition(StateOpen)
			cb.logger.Warn("reopened after failed probe")
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.transition(StateClosed)
		cb.failures = 0
		cb.probes = 0
		cb.logger.Info("closed after successful probe")
	}
}

// GetState reports the breaker's current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit closed and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.probes = 0
	cb.logger.Info("reset to closed")
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(state State) {
	cb.state = state
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, state)
	}
}
