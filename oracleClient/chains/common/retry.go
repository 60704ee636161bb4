package common

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts    int              // Total attempts including the first one
	InitialDelay   time.Duration    // Delay before the second attempt
	MaxDelay       time.Duration    // Upper bound for any single delay
	BackoffFactor  float64          // Exponential backoff factor (e.g., 2.0)
	RetryableError func(error) bool // Decides whether an error is worth another attempt
}

// DefaultRetryConfig returns the backoff used by the Solana event validator.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    5,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		BackoffFactor:  2.0,
		RetryableError: oerrors.IsRetryable,
	}
}

// RetryManager handles retry logic with exponential backoff
type RetryManager struct {
	config *RetryConfig
	logger zerolog.Logger
}

// NewRetryManager creates a new retry manager
func NewRetryManager(config *RetryConfig, logger zerolog.Logger) *RetryManager {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 2.0
	}
	if config.RetryableError == nil {
		config.RetryableError = oerrors.IsRetryable
	}
	return &RetryManager{
		config: config,
		logger: logger.With().Str("component", "retry_manager").Logger(),
	}
}

// ExecuteWithRetry runs fn until it succeeds, returns a non-retryable error,
// the attempts are exhausted or ctx is done. fn receives the zero-based attempt.
func (r *RetryManager) ExecuteWithRetry(
	ctx context.Context,
	operation string,
	fn func(attempt int) error,
) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			if attempt > 0 {
				r.logger.Debug().
					Str("operation", operation).
					Int("attempts", attempt+1).
					Msg("operation succeeded after retries")
			}
			return nil
		}
		lastErr = err

		if !r.config.RetryableError(err) {
			return err
		}

		if attempt+1 >= r.config.MaxAttempts {
			break
		}

		delay := r.CalculateBackoff(attempt)
		r.logger.Debug().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Int("max_attempts", r.config.MaxAttempts).
			Dur("retry_in", delay).
			Msg("operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w",
		operation, r.config.MaxAttempts, lastErr)
}

// CalculateBackoff returns the delay after the given zero-based attempt.
func (r *RetryManager) CalculateBackoff(attempt int) time.Duration {
	return Backoff(r.config.InitialDelay, r.config.MaxDelay, r.config.BackoffFactor, attempt)
}

// Backoff computes initial*factor^attempt capped at max.
func Backoff(initial, max time.Duration, factor float64, attempt int) time.Duration {
	delay := float64(initial) * math.Pow(factor, float64(attempt))
	if delay > float64(max) {
		return max
	}
	return time.Duration(delay)
}
