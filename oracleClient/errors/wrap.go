package errors

import (
	"context"
	"errors"
)

// HasCode checks if an error is an OracleError with specific code
func HasCode(err error, code ErrorCode) bool {
	var oErr *OracleError
	if errors.As(err, &oErr) {
		return oErr.Code == code
	}
	return false
}

// Reason returns the reason tag of an authentication error, or "unknown".
func Reason(err error) string {
	var oErr *OracleError
	if errors.As(err, &oErr) {
		if reason, ok := oErr.Context["reason"].(string); ok {
			return reason
		}
	}
	return "unknown"
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var oErr *OracleError
	if errors.As(err, &oErr) {
		return oErr.IsRetryable()
	}

	return errors.Is(err, context.DeadlineExceeded)
}
