package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout marks calls cut off by WithTimeout.
var ErrTimeout = errors.New("call timed out")

// WithTimeout runs fn with a derived context that is cancelled after the
// given timeout. fn must honour ctx. A deadline hit by the derived context
// is reported as ErrTimeout; cancellation of the parent is passed through.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w (limit: %v): %v", name, ErrTimeout, timeout, err)
	}
	return err
}
