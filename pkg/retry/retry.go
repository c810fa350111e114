// pkg/retry/retry.go - functions for retrying actions with exponential backoff.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xcp-ng/xenclean/pkg/logging"
)

// NonRetryableError interface for errors that should not be retried
type NonRetryableError interface {
	error
	NonRetryable()
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }
func (e permanentError) NonRetryable() {}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultConfig waits 5s, 10s, 20s between four attempts.
func DefaultConfig() RetryConfig {
	return RetryConfig{MaxRetries: 4, InitialInterval: 5 * time.Second, Multiplier: 2}
}

// Retry retries a given function with exponential backoff. The last error is
// returned wrapped when every attempt fails. Cancelling ctx ends the wait
// between attempts.
func Retry(ctx context.Context, config RetryConfig, log *logging.Logger, action func() error) error {
	interval := config.InitialInterval
	var lastErr error

	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err := action()
		if err == nil {
			return nil
		}
		lastErr = err

		var nonRetryableErr NonRetryableError
		if errors.As(err, &nonRetryableErr) {
			log.Warn("Non-retryable error encountered", "attempt", attempt, "error", err)
			return err
		}

		if attempt == config.MaxRetries {
			log.Warn(fmt.Sprintf("Attempt %d/%d failed. No more retries.", attempt, config.MaxRetries), "error", err)
			break
		}
		log.Warn(fmt.Sprintf("Attempt %d/%d failed. Retrying in %s...", attempt, config.MaxRetries, interval),
			"error", err)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w (last error: %v)", attempt, ctx.Err(), lastErr)
		case <-timer.C:
		}
		interval = time.Duration(float64(interval) * config.Multiplier)
	}

	return fmt.Errorf("action failed after %d attempts: %w", config.MaxRetries, lastErr)
}
