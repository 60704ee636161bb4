package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input (request headers, bodies, events)
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeAuthentication indicates a rejected hub request
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION"

	// ErrCodeNetwork indicates network-related errors
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeRPC indicates Solana RPC errors
	ErrCodeRPC ErrorCode = "RPC"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeNotFound indicates data that is not visible yet (eventual consistency)
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDataIntegrity indicates data that decodes but does not match what was claimed
	ErrCodeDataIntegrity ErrorCode = "DATA_INTEGRITY"

	// ErrCodeDatabase indicates database operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// OracleError is an error raised by one of the node components.
type OracleError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Severity  Severity               `json:"severity"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// New creates a new OracleError
func New(code ErrorCode, component, message string, cause error) *OracleError {
	return &OracleError{
		Code:      code,
		Message:   message,
		Component: component,
		Severity:  determineSeverity(code),
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *OracleError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Component != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *OracleError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *OracleError) WithContext(key string, value interface{}) *OracleError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is retryable
func (e *OracleError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout, ErrCodeNotFound:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeDatabase, ErrCodeDataIntegrity, ErrCodeConfig:
		return SeverityHigh
	case ErrCodeNetwork, ErrCodeRPC, ErrCodeTimeout, ErrCodeAuthentication:
		return SeverityMedium
	case ErrCodeValidation, ErrCodeNotFound:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// NewValidationError creates a validation error
func NewValidationError(component, message string) *OracleError {
	return New(ErrCodeValidation, component, message, nil)
}

// NewAuthenticationError creates an authentication error tagged with a reason.
func NewAuthenticationError(reason string, cause error) *OracleError {
	return New(ErrCodeAuthentication, "hubauth", reason, cause).WithContext("reason", reason)
}

// NewNetworkError creates a network error
func NewNetworkError(component, message string, cause error) *OracleError {
	return New(ErrCodeNetwork, component, message, cause)
}

// NewRPCError creates an RPC error
func NewRPCError(component, message string, cause error) *OracleError {
	return New(ErrCodeRPC, component, message, cause)
}

// NewNotFoundError creates an error for data that is not visible yet
func NewNotFoundError(component, message string) *OracleError {
	return New(ErrCodeNotFound, component, message, nil)
}

// NewDataIntegrityError creates a data integrity error
func NewDataIntegrityError(component, message string, cause error) *OracleError {
	return New(ErrCodeDataIntegrity, component, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(component, message string, cause error) *OracleError {
	return New(ErrCodeDatabase, component, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *OracleError {
	return New(ErrCodeConfig, "config", message, cause)
}
