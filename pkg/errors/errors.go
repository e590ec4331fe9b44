package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewValidationError creates a 400 error for malformed or missing input.
// Validation failures are terminal for the request and never retried.
func NewValidationError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewPermissionError creates a 403 error for callers that are not a
// legitimate participant of the referenced task
func NewPermissionError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// NewDataIntegrityError reports stored data that violates a structural
// invariant, e.g. one chat room grouping more than two participants
func NewDataIntegrityError(message string) *AppError {
	return NewError(http.StatusInternalServerError, "DATA_INTEGRITY", message)
}

// NewTransientStoreError creates a 503 error for an unavailable backing
// store. The caller may retry; the service itself never does.
func NewTransientStoreError(message string) *AppError {
	return NewError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", message)
}

// IsRetryable reports whether the error represents a transient condition
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode == http.StatusServiceUnavailable
	}
	return false
}

// IsNotFound reports whether the error is a 404 AppError
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode == http.StatusNotFound
	}
	return false
}

// FromError converts any error to an AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    err.Error(),
	}
}
