// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, malformed input
//   - Data/Resource errors (200-299): Missing market data, datasource failures
//   - Indicator errors (300-399): Indicator lookup and warm-up errors
//   - Strategy/Graph errors (400-499): Strategy loading and graph structure errors
//   - Position errors (500-599): Position lifecycle errors
//   - Backtest errors (600-699): Engine configuration and run errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodePositionNotFound, "position not found")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeUnknownNodeReference, "node %s references unknown child %s", id, child)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to read ticks", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodePositionNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two *Error values match when
// their codes are equal, which lets callers use errors.Is with sentinel codes.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}

	return false
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsRetryable reports whether the error belongs to the transient category:
// the caller may ignore it for the current tick and retry on the next one.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrCodePriceUnavailable,
		ErrCodePositionNotFound,
		ErrCodePositionAlreadyClosed,
		ErrCodeConditionEvaluation:
		return true
	default:
		return false
	}
}
