package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOracleError(t *testing.T) {
	t.Run("error string includes component and cause", func(t *testing.T) {
		err := NewRPCError("svm_validator", "get transaction failed", errors.New("connection refused"))
		assert.Equal(t, "[svm_validator:RPC] get transaction failed: connection refused", err.Error())
		assert.Equal(t, SeverityMedium, err.Severity)
	})

	t.Run("unwrap exposes cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewDatabaseError("orders", "insert failed", cause)
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("wrapped errors keep their code", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", NewNotFoundError("svm_validator", "transaction not visible"))
		assert.True(t, HasCode(err, ErrCodeNotFound))
		assert.False(t, HasCode(err, ErrCodeRPC))
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", NewNetworkError("hub", "dial", nil), true},
		{"rpc", NewRPCError("svm", "rpc", nil), true},
		{"not found", NewNotFoundError("svm", "missing"), true},
		{"data integrity", NewDataIntegrityError("svm", "mismatch", nil), false},
		{"validation", NewValidationError("api", "bad"), false},
		{"authentication", NewAuthenticationError("replay", nil), false},
		{"deadline exceeded", fmt.Errorf("fetch: %w", context.DeadlineExceeded), true},
		{"cancelled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"plain", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "skew", Reason(NewAuthenticationError("skew", nil)))
	assert.Equal(t, "unknown", Reason(errors.New("other")))
	assert.Equal(t, "unknown", Reason(NewValidationError("api", "bad")))
}
