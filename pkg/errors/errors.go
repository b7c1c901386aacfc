// Package errors provides structured error handling for formtap
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents missing or invalid configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeRateLimit represents soft upstream throttling (429, 502, 503)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeMeteringLock represents the heavier upstream metering lock (423)
	ErrorTypeMeteringLock ErrorType = "metering_lock"
	// ErrorTypeHTTP represents any other non-2xx upstream response
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeTimeout represents an exhausted wall-clock budget
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents transport failures
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeData represents decoding, shaping or transform failures
	ErrorTypeData ErrorType = "data"
	// ErrorTypeState represents checkpoint store failures
	ErrorTypeState ErrorType = "state"
	// ErrorTypeSink represents output failures
	ErrorTypeSink ErrorType = "sink"
)

// Detail keys shared by the HTTP layer and its callers.
const (
	DetailStatusCode = "status_code"
	DetailBody       = "body"
	DetailEndpoint   = "endpoint"
	DetailAttempts   = "attempts"
	DetailTimeout    = "timeout"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return New(errType, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context. Details of a wrapped
// *Error are carried over so status codes survive re-wrapping.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}

	var existing *Error
	if errors.As(err, &existing) {
		for k, v := range existing.Details {
			wrapped.WithDetail(k, v)
		}
	}

	return wrapped
}

// IsRetryable returns true if the outermost typed error is one the request
// gate retries.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeMeteringLock:
		return true
	default:
		return false
	}
}

// IsType checks whether any error in the chain has the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost structured error, or ErrorTypeInternal
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// StatusCode returns the upstream HTTP status recorded on err, if any
func StatusCode(err error) (int, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	code, ok := e.Details[DetailStatusCode].(int)
	return code, ok
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
