// Package apperror defines the caller-facing error taxonomy described in
// spec.md §6.5 and §7: validation, capacity, contention, consistency, not
// found, and store errors, each carrying enough structure for a caller to
// decide whether to retry, re-queue, or surface the failure.
package apperror

import (
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError into one of the taxonomy buckets from
// spec.md §7.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeCapacity    ErrorType = "capacity"
	ErrorTypeContention  ErrorType = "contention"
	ErrorTypeConsistency ErrorType = "consistency"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeStore       ErrorType = "store"
	ErrorTypeInternal    ErrorType = "internal"
)

// statusCodes gives each ErrorType a representative HTTP status, used only
// by the introspection API (§2.8); the core never speaks HTTP itself.
var statusCodes = map[ErrorType]int{
	ErrorTypeValidation:  http.StatusBadRequest,
	ErrorTypeCapacity:    http.StatusConflict,
	ErrorTypeContention:  http.StatusConflict,
	ErrorTypeConsistency: http.StatusInternalServerError,
	ErrorTypeNotFound:    http.StatusNotFound,
	ErrorTypeStore:       http.StatusServiceUnavailable,
	ErrorTypeInternal:    http.StatusInternalServerError,
}

// AppError is the structured error returned by every public kb operation.
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Details    string
	Cause      error
}

func (e *AppError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		s += fmt.Sprintf(" (%s)", e.Details)
	}
	return s
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError of the given type with no cause.
func New(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: statusCodes[t]}
}

// Wrap creates an AppError of the given type wrapping an underlying cause.
func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: statusCodes[t], Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(cause error, t ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

// WithDetails attaches additional detail text and returns the same error.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf is WithDetails with a formatted string.
func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Type == t
}

// GetType returns err's ErrorType, or ErrorTypeInternal for non-AppErrors.
func GetType(err error) ErrorType {
	if ae, ok := err.(*AppError); ok {
		return ae.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns the representative HTTP status for err.
func GetStatusCode(err error) int {
	if ae, ok := err.(*AppError); ok {
		return ae.StatusCode
	}
	return http.StatusInternalServerError
}
