package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger

	// Retryable decides whether a failed attempt may be repeated. A nil
	// Retryable retries every error.
	Retryable func(error) bool

	// BeforeRetry runs before every attempt after the first. An error from it
	// ends the loop and is returned as is.
	BeforeRetry func(ctx context.Context, attempt int) error
}

// Do executes fn with exponential back-off retry logic and reports how many
// attempts were made. Errors that Retryable rejects are returned unwrapped
// immediately.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && r.BeforeRetry != nil {
			if err := r.BeforeRetry(ctx, attempt); err != nil {
				return attempt - 1, err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return attempt, lastErr
		}

		if attempt < maxAttempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, maxAttempts, lastErr, delay)
			}
			if err := sleepContext(ctx, delay); err != nil {
				return attempt, err
			}
			delay *= 2
		}
	}

	return maxAttempts, fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
