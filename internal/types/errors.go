package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Loom framework errors.
type ErrorCode string

// Handler error codes
const (
	HANDLER_NOT_FOUND        ErrorCode = "HANDLER_NOT_FOUND"
	HANDLER_ROLE_MISMATCH    ErrorCode = "HANDLER_ROLE_MISMATCH"
	HANDLER_EXECUTION_FAILED ErrorCode = "HANDLER_EXECUTION_FAILED"
)

// Goal and task error codes
const (
	GOAL_NOT_FOUND          ErrorCode = "GOAL_NOT_FOUND"
	GOAL_INVALID_TRANSITION ErrorCode = "GOAL_INVALID_TRANSITION"
	TASK_NOT_FOUND          ErrorCode = "TASK_NOT_FOUND"
	TASK_ALREADY_CLAIMED    ErrorCode = "TASK_ALREADY_CLAIMED"
)

// Storage error codes
const (
	STORAGE_OPEN_FAILED      ErrorCode = "STORAGE_OPEN_FAILED"
	STORAGE_INSERT_FAILED    ErrorCode = "STORAGE_INSERT_FAILED"
	STORAGE_UPDATE_FAILED    ErrorCode = "STORAGE_UPDATE_FAILED"
	STORAGE_QUERY_FAILED     ErrorCode = "STORAGE_QUERY_FAILED"
	STORAGE_DELETE_FAILED    ErrorCode = "STORAGE_DELETE_FAILED"
	STORAGE_MIGRATION_FAILED ErrorCode = "STORAGE_MIGRATION_FAILED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// LoomError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints.
type LoomError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *LoomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *LoomError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can use errors.Is with sentinel
// LoomError values.
func (e *LoomError) Is(target error) bool {
	var loomErr *LoomError
	if errors.As(target, &loomErr) {
		return e.Code == loomErr.Code
	}
	return false
}

// NewError creates a new non-retryable LoomError.
func NewError(code ErrorCode, message string) *LoomError {
	return &LoomError{Code: code, Message: message}
}

// NewRetryableError creates a new retryable LoomError. Use this for
// transient failures that may succeed on retry.
func NewRetryableError(code ErrorCode, message string) *LoomError {
	return &LoomError{Code: code, Message: message, Retryable: true}
}

// WrapError creates a non-retryable LoomError wrapping an existing error.
func WrapError(code ErrorCode, message string, cause error) *LoomError {
	return &LoomError{Code: code, Message: message, Cause: cause}
}

// IsCode reports whether err carries the given error code anywhere in its
// chain.
func IsCode(err error, code ErrorCode) bool {
	var loomErr *LoomError
	if errors.As(err, &loomErr) {
		return loomErr.Code == code
	}
	return false
}

// IsRetryable reports whether err is a retryable LoomError.
func IsRetryable(err error) bool {
	var loomErr *LoomError
	if errors.As(err, &loomErr) {
		return loomErr.Retryable
	}
	return false
}
