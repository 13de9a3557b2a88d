package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/proplex/searchd/pkg/errors"
)

var errProbe = errors.New("probe failed")

func TestBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Hour,
	})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errProbe }); !errors.Is(err, errProbe) {
			t.Fatalf("attempt %d: got %v, want errProbe", i+1, err)
		}
	}
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state after threshold = %v, want open", got)
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("open circuit must not invoke fn")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 2})

	cb.Execute(func() error { return errProbe })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errProbe })

	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state = %v, want closed: failures are consecutive, not cumulative", got)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		OnStateChange:    func(_ string, s State) { transitions = append(transitions, s) },
	})

	cb.Execute(func() error { return errProbe })
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe after cooldown: %v", err)
	}
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state after successful probe = %v, want closed", got)
	}

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})

	cb.Execute(func() error { return errProbe })
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(func() error { return errProbe }); !errors.Is(err, errProbe) {
		t.Fatalf("failed probe should surface fn error, got %v", err)
	}
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state after failed probe = %v, want open", got)
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("reopened circuit should reject, got %v", err)
	}
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})

	cb.Execute(func() error { return errProbe })
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	cb.Reset()
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state after reset = %v, want closed", got)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("call after reset: %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(t.Context(), "flaky", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 3 {
			return errProbe
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryGivesUp(t *testing.T) {
	attempts := 0
	err := Retry(t.Context(), "doomed", RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		return errProbe
	})
	if !errors.Is(err, errProbe) {
		t.Fatalf("final error should wrap last fn error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestRetryAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, "cancelled", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
	}, func() error {
		attempts++
		return errProbe
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1: cancellation aborts the backoff, not the attempt", attempts)
	}
}

func TestWithTimeoutReportsTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	err := WithTimeout(context.Background(), 5*time.Millisecond, "slow-op", func(context.Context) error {
		<-block
		return nil
	})
	if !errors.Is(err, pkgerrors.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestWithTimeoutZeroRunsInline(t *testing.T) {
	ran := false
	err := WithTimeout(context.Background(), 0, "op", func(context.Context) error {
		ran = true
		return errProbe
	})
	if !errors.Is(err, errProbe) {
		t.Fatalf("got %v, want fn error passed through", err)
	}
	if !ran {
		t.Fatal("fn should run when no bound is set")
	}
}

func TestWithTimeoutDistinguishesParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	err := WithTimeout(ctx, time.Hour, "op", func(context.Context) error {
		<-block
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if errors.Is(err, pkgerrors.ErrTimeout) {
		t.Fatal("parent cancellation must not be reported as a timeout")
	}
}
