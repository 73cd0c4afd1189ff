package download

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eldersvr-cli/internal/util"
)

// permanentError marks failures that retrying cannot fix (4xx responses,
// malformed URLs).
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// withRetry runs op up to attempts times with a fixed delay between tries.
// Permanent errors and context cancellation stop the loop immediately.
func withRetry(ctx context.Context, name string, attempts int, delay time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			util.Default.Printf("🔁 Retry %d/%d for %s\n", attempt, attempts, name)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		var pe *permanentError
		if errors.As(err, &pe) {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
