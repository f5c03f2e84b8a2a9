package backend

import (
	"context"
	"time"
)

// Retry defaults
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 5 * time.Second
)

// RetryConfig configures a bounded retry loop with a fixed delay
type RetryConfig struct {
	Attempts int           // Total attempts including the first
	Delay    time.Duration // Wait between attempts
}

// DefaultRetryConfig returns the standard retry settings
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: DefaultAttempts, Delay: DefaultRetryDelay}
}

// Retry calls fn until it returns nil or attempts run out. attempt is 1-based.
// The last error is returned. Retry stops early on context cancellation.
func Retry(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
