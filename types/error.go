package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

const (
	// ErrValidation marks malformed input rejected before any state mutation.
	ErrValidation ErrorCode = "VALIDATION"
	// ErrCapacityExceeded marks a pending-approval or concurrent-task limit hit.
	ErrCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	// ErrNotFound marks an operation on an unknown id.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrInvalidTransition marks an action against an entity in the wrong state.
	// Expected races (approve-vs-timeout) are reported as booleans instead.
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrDeadlockDetected marks a dependency cycle, auto-resolved by the scheduler.
	ErrDeadlockDetected ErrorCode = "DEADLOCK_DETECTED"
	// ErrPersistence marks a storage collaborator failure; in-memory state is
	// left unmutated when it is surfaced.
	ErrPersistence ErrorCode = "PERSISTENCE"
	// ErrInternal marks an unexpected internal failure.
	ErrInternal ErrorCode = "INTERNAL"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsCode checks whether err is a *Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
