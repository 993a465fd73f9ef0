// Package errors provides standardized domain errors with codes for the
// ChannelBrief engine.
//
// Usage:
//
//	// In the repository or orchestrator - return typed errors
//	if scope == "" {
//	    return errors.InvalidScope("user id is empty")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrRemoteFetchFailed) {
//	    // fall back to cached data
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeStorageUnavailable:
//	        ...
//	    case errors.CodeCorruptRecord:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the engine.
const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeValidation             Code = "VALIDATION"
	CodeInternal               Code = "INTERNAL"
	CodeStorageUnavailable     Code = "STORAGE_UNAVAILABLE"
	CodeCorruptRecord          Code = "CORRUPT_RECORD"
	CodeTransactionInterrupted Code = "TRANSACTION_INTERRUPTED"
	CodeRemoteFetchFailed      Code = "REMOTE_FETCH_FAILED"
	CodeInvalidScope           Code = "INVALID_SCOPE"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeInvalidScope:
		return http.StatusBadRequest
	case CodeRemoteFetchFailed:
		return http.StatusBadGateway
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case CodeCorruptRecord, CodeTransactionInterrupted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation             = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal               = &Error{Code: CodeInternal, Message: "internal error"}
	ErrStorageUnavailable     = &Error{Code: CodeStorageUnavailable, Message: "storage unavailable"}
	ErrCorruptRecord          = &Error{Code: CodeCorruptRecord, Message: "corrupt record"}
	ErrTransactionInterrupted = &Error{Code: CodeTransactionInterrupted, Message: "transaction interrupted"}
	ErrRemoteFetchFailed      = &Error{Code: CodeRemoteFetchFailed, Message: "remote fetch failed"}
	ErrInvalidScope           = &Error{Code: CodeInvalidScope, Message: "invalid scope"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// StorageUnavailable creates a storage unavailable error.
// Fatal for the current operation, never for the process.
func StorageUnavailable(msg string) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: msg}
}

// StorageUnavailablef creates a storage unavailable error with formatted message.
func StorageUnavailablef(format string, args ...any) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: fmt.Sprintf(format, args...)}
}

// CorruptRecord creates a corrupt record error. Handled by the validator and
// recovery engine; never reaches callers raw.
func CorruptRecord(msg string) *Error {
	return &Error{Code: CodeCorruptRecord, Message: msg}
}

// CorruptRecordf creates a corrupt record error with formatted message.
func CorruptRecordf(format string, args ...any) *Error {
	return &Error{Code: CodeCorruptRecord, Message: fmt.Sprintf(format, args...)}
}

// TransactionInterrupted creates a transaction interrupted error. Only seen
// during startup recovery.
func TransactionInterrupted(msg string) *Error {
	return &Error{Code: CodeTransactionInterrupted, Message: msg}
}

// RemoteFetchFailed creates a remote fetch failed error. Triggers cache
// fallback in the orchestrator.
func RemoteFetchFailed(msg string) *Error {
	return &Error{Code: CodeRemoteFetchFailed, Message: msg}
}

// RemoteFetchFailedf creates a remote fetch failed error with formatted message.
func RemoteFetchFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeRemoteFetchFailed, Message: fmt.Sprintf(format, args...)}
}

// InvalidScope creates an invalid scope error. Fatal for the affected sync
// call only.
func InvalidScope(msg string) *Error {
	return &Error{Code: CodeInvalidScope, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
