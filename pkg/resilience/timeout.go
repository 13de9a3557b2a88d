package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/proplex/searchd/pkg/errors"
)

// WithTimeout bounds fn by timeout on top of whatever deadline ctx already
// carries. fn runs on its own goroutine and may keep running after the
// bound fires; the engine's scoring loops do not poll the context, so the
// bound is on the caller's wait, not on the work. Timed-out calls report
// errors.ErrTimeout. A non-positive timeout applies no extra bound.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()

	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		if cause := ctx.Err(); cause != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, cause)
		}
		return fmt.Errorf("%s: %w after %v", name, errors.ErrTimeout, timeout)
	}
}
