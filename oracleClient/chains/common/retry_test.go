package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
)

func fastConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    attempts,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		BackoffFactor:  2.0,
		RetryableError: func(error) bool { return true },
	}
}

func TestNewRetryManager(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		manager := NewRetryManager(nil, zerolog.Nop())
		assert.Equal(t, 5, manager.config.MaxAttempts)
		assert.Equal(t, 500*time.Millisecond, manager.config.InitialDelay)
		assert.Equal(t, 8*time.Second, manager.config.MaxDelay)
	})

	t.Run("sanitizes invalid values", func(t *testing.T) {
		manager := NewRetryManager(&RetryConfig{}, zerolog.Nop())
		assert.Equal(t, 1, manager.config.MaxAttempts)
		assert.Equal(t, 2.0, manager.config.BackoffFactor)
		assert.NotNil(t, manager.config.RetryableError)
	})
}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name          string
		attempts      int
		failures      int
		retryable     bool
		expectErr     bool
		expectedCalls int
	}{
		{name: "success first try", attempts: 3, failures: 0, retryable: true, expectedCalls: 1},
		{name: "success after retries", attempts: 3, failures: 2, retryable: true, expectedCalls: 3},
		{name: "exhausts attempts", attempts: 3, failures: 5, retryable: true, expectErr: true, expectedCalls: 3},
		{name: "non retryable stops", attempts: 3, failures: 5, retryable: false, expectErr: true, expectedCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig(tt.attempts)
			cfg.RetryableError = func(error) bool { return tt.retryable }
			manager := NewRetryManager(cfg, zerolog.Nop())

			calls := 0
			err := manager.ExecuteWithRetry(context.Background(), "test", func(attempt int) error {
				assert.Equal(t, calls, attempt)
				calls++
				if calls <= tt.failures {
					return errors.New("boom")
				}
				return nil
			})

			assert.Equal(t, tt.expectedCalls, calls)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	cfg := fastConfig(10)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	manager := NewRetryManager(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := manager.ExecuteWithRetry(ctx, "test", func(int) error {
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecuteWithRetry_DefaultClassifier(t *testing.T) {
	cfg := fastConfig(4)
	cfg.RetryableError = nil
	manager := NewRetryManager(cfg, zerolog.Nop())

	calls := 0
	err := manager.ExecuteWithRetry(context.Background(), "test", func(int) error {
		calls++
		return oerrors.NewValidationError("test", "bad input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(time.Second, 30*time.Second, 2, 0))
	assert.Equal(t, 2*time.Second, Backoff(time.Second, 30*time.Second, 2, 1))
	assert.Equal(t, 16*time.Second, Backoff(time.Second, 30*time.Second, 2, 4))
	assert.Equal(t, 30*time.Second, Backoff(time.Second, 30*time.Second, 2, 5))
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}
