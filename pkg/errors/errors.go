// Package errors provides structured error types for cargo-dl.
//
// Every failure that ends a single crate's pipeline carries one of the codes
// below so the batch summary can report it and scripts can match on it:
//
//   - NOT_FOUND_IN_INDEX: the sparse index has no record for the crate
//   - NO_MATCHING_VERSION: no published version satisfies the requirement
//   - ALL_YANKED_EXCLUDED: only yanked versions matched and they were not allowed
//   - FETCH_ERROR: transport failure or non-2xx download response
//   - CHECKSUM_MISMATCH: archive bytes do not hash to the index checksum
//   - IO_ERROR: filesystem failure, including rejected archive members
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNoMatchingVersion, "no version of %s matches %s", name, req)
//	if errors.Is(err, errors.ErrCodeNoMatchingVersion) {
//	    // ...
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetch, origErr, "download %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"

	// Resolution errors
	ErrCodeNotFoundInIndex   Code = "NOT_FOUND_IN_INDEX"
	ErrCodeNoMatchingVersion Code = "NO_MATCHING_VERSION"
	ErrCodeAllYankedExcluded Code = "ALL_YANKED_EXCLUDED"

	// Acquisition errors
	ErrCodeFetch            Code = "FETCH_ERROR"
	ErrCodeRateLimited      Code = "RATE_LIMITED"
	ErrCodeChecksumMismatch Code = "CHECKSUM_MISMATCH"

	// Output errors
	ErrCodeIO Code = "IO_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// The outermost *Error decides; nested codes are not consulted.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message followed by the cause (if any)
// without the code prefix. For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Message, UserMessage(e.Cause))
		}
		return e.Message
	}
	return err.Error()
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
