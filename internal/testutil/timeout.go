package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// WithTimeout runs fn with a context bounded by the configured test timeout.
// It returns an error if fn panics or does not return in time.
func WithTimeout(t *testing.T, fn func(ctx context.Context)) error {
	t.Helper()
	return withTimeout(GetTestConfig().Timeout, fn)
}

func withTimeout(timeout time.Duration, fn func(ctx context.Context)) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("test panicked: %v", r)
			}
		}()

		fn(ctx)
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("test failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("test timed out after %s", timeout)
	}
}

// WithTimeoutT is WithTimeout that fails the test on error.
func WithTimeoutT(t *testing.T, fn func(ctx context.Context)) {
	t.Helper()

	if err := WithTimeout(t, fn); err != nil {
		t.Fatal(err)
	}
}

// RemainingTime returns the time remaining until the test deadline.
// Returns 0 if no deadline is set or if the deadline has passed.
func RemainingTime(t *testing.T) time.Duration {
	t.Helper()

	deadline, ok := t.Deadline()
	if !ok {
		return 0
	}
	if remaining := time.Until(deadline); remaining > 0 {
		return remaining
	}
	return 0
}

// SkipIfSlow skips the test in quick mode when -short is set.
func SkipIfSlow(t *testing.T, reason string) {
	t.Helper()

	if GetTestConfig().Intensity == IntensityQuick && testing.Short() {
		t.Skipf("Skipping slow test in quick mode: %s", reason)
	}
}

// TimeoutContext creates a context bounded by the configured test timeout.
func TimeoutContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), GetTestConfig().Timeout)
}
