package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. All components use these constants instead of
// hardcoded strings so callers can branch on failure class.
const (
	// Validation (400)
	ErrCodeValidationInvalidDuration ErrorCode = "validation_invalid_duration"
	ErrCodeValidationMalformedSub    ErrorCode = "validation_malformed_subscription"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"

	// Precondition (412)
	ErrCodeNoSubscription ErrorCode = "precondition_no_subscription"

	// Not Found (404)
	ErrCodeNotFoundNotification ErrorCode = "not_found_notification"
	ErrCodeNotFoundSubscription ErrorCode = "not_found_subscription"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeScheduler          ErrorCode = "scheduler_unavailable"
	ErrCodeDeliveryTransient  ErrorCode = "delivery_transient_failure"
	ErrCodeDeliveryPermanent  ErrorCode = "delivery_permanent_failure"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// The surrounding request handlers (out of this core's scope) are free to
// use this mapping or supply their own. Returns 500 for unrecognized codes
// as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case c == ErrCodeNoSubscription:
		return http.StatusPreconditionFailed
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "delivery_"), c == ErrCodeScheduler:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the
// pipeline. All domain errors are expressed as AppError to enable
// consistent formatting, failure-class branching, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCodeOf extracts the ErrorCode from err if it is (or wraps) an
// AppError, and returns ErrCodeInternalUnexpected otherwise.
func ErrorCodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
