// Package errors provides structured error types for the StackGate engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes cover the engine's structural error taxonomy: malformed
// input (INVALID_*), unknown references (UNKNOWN_*, *_NOT_FOUND), and
// unexpected internal failures (INTERNAL_*). Policy outcomes - missing
// editions, experimental extensions, unstable dependencies - are never
// errors; they surface as verdict violations.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownPackage, "no descriptor for %s@%s", pkg, rel)
//	if errors.Is(err, errors.ErrCodeUnknownPackage) {
//	    // Handle missing package
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeGraphCycle, origErr, "evaluating %s", pkg)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the engine's structural error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidPackage    Code = "INVALID_PACKAGE"
	ErrCodeInvalidDescriptor Code = "INVALID_DESCRIPTOR"
	ErrCodeInvalidManifest   Code = "INVALID_MANIFEST"
	ErrCodeInvalidTransition Code = "INVALID_TRANSITION"
	ErrCodeInvalidCase       Code = "INVALID_CASE"
	ErrCodeDuplicateRelease  Code = "DUPLICATE_RELEASE"
	ErrCodeDuplicatePackage  Code = "DUPLICATE_PACKAGE"

	// Unknown reference errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeUnknownPackage   Code = "UNKNOWN_PACKAGE"
	ErrCodeUnknownRelease   Code = "UNKNOWN_RELEASE"
	ErrCodeSnapshotNotFound Code = "SNAPSHOT_NOT_FOUND"

	// Graph structure errors
	ErrCodeGraphCycle Code = "GRAPH_CYCLE"
	ErrCodeOutOfRange Code = "OUT_OF_RANGE"

	// Storage and network errors
	ErrCodeStorage Code = "STORAGE_ERROR"
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
