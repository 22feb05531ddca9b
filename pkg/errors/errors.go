package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes for the service taxonomy
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeInvalidID   = "INVALID_ID"
	CodeRateLimit   = "RATE_LIMIT_EXCEEDED"
	CodeBlocked     = "CLIENT_BLOCKED"
	CodeStorage     = "STORAGE_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
	CodeBadRequest  = "BAD_REQUEST"
	CodeServerPanic = "SERVER_ERROR"
)

// AppError represents an application error with HTTP status code and error code.
// Message and Detail are safe to return to clients; Cause is only logged.
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"-"`
	Message    string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	Cause      error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a client-facing detail to the error
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithCause attaches the internal cause, which is logged but never rendered
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewValidationError creates a 400 error for client-caused input problems
func NewValidationError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeValidation, message)
}

// NewBadRequestError creates a 400 error for malformed requests
func NewBadRequestError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeBadRequest, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// NewInvalidIDError creates a 400 error for malformed identifiers
func NewInvalidIDError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeInvalidID, message)
}

// NewRateLimitError creates a 429 Too Many Requests error
func NewRateLimitError(message string) *AppError {
	return NewError(http.StatusTooManyRequests, CodeRateLimit, message)
}

// NewBlockedError creates a 403 error for blocked clients
func NewBlockedError(message string) *AppError {
	return NewError(http.StatusForbidden, CodeBlocked, message)
}

// NewStorageError creates a 500 error for store or filesystem failures
func NewStorageError(message string, cause error) *AppError {
	return NewError(http.StatusInternalServerError, CodeStorage, message).WithCause(cause)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(message string) *AppError {
	return NewError(http.StatusInternalServerError, CodeInternal, message)
}

// FromError converts a standard error to an AppError.
// If the error is already an AppError, it is returned as-is.
// Otherwise, it is wrapped as an internal server error with a generic message.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalServerError("internal server error").WithCause(err)
}

// GetStatusCode extracts the HTTP status code, returns 500 if not an AppError
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
