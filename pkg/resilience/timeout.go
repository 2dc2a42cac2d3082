package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports a unit of work that outlived its limit. It unwraps
// to context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// WithTimeout runs fn under a context that expires after limit and returns
// as soon as the limit passes even if fn has not yet noticed. A
// non-positive limit runs fn unbounded. Cancellation of ctx itself is
// reported as ctx.Err(), not as a timeout.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(bounded) }()

	select {
	case err := <-done:
		if err != nil && bounded.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return &TimeoutError{Op: op, Limit: limit}
		}
		return err
	case <-bounded.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return &TimeoutError{Op: op, Limit: limit}
	}
}
