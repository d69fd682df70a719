// Package errors provides standardized error codes for the powerwatch host.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (lifecycle, periodic, wakelock, journal, server)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by control-surface clients for
// programmatic error handling. Human-readable messages are provided
// alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers that clients can rely on for error handling.
const (
	// Lifecycle domain - coordinator start/stop errors
	CodeLifecycleNotNew      = "lifecycle.not_new"      // Start called after the coordinator already ran
	CodeLifecycleNotRunning  = "lifecycle.not_running"  // Stop called before Start or after Stop
	CodeLifecycleStartFailed = "lifecycle.start_failed" // A startup step failed; earlier steps were unwound
	CodeLifecycleStopFailed  = "lifecycle.stop_failed"  // A teardown step failed; remaining steps still ran

	// Periodic domain - activity scheduling errors
	CodePeriodicAlreadyStarted = "periodic.already_started" // Start called twice without a Stop
	CodePeriodicCancelTimeout  = "periodic.cancel_timeout"  // Synchronous cancel did not complete in time

	// Wake lock domain - sleep inhibitor errors
	CodeWakeLockAcquireFailed = "wakelock.acquire_failed" // Inhibitor acquisition failed
	CodeWakeLockReleaseFailed = "wakelock.release_failed" // Inhibitor release failed
	CodeWakeLockNotHeld       = "wakelock.not_held"       // Release called while not held
	CodeWakeLockHeld          = "wakelock.held"           // Acquire called while already held
	CodeWakeLockUnsupported   = "wakelock.unsupported"    // No inhibitor path on this platform

	// Journal domain - event journal persistence errors
	CodeJournalOpenFailed  = "journal.open_failed"  // Database open failed
	CodeJournalWriteFailed = "journal.write_failed" // Failed to record an event
	CodeJournalQueryFailed = "journal.query_failed" // Failed to read back events

	// Server domain - control surface errors
	CodeServerInvalidEvent = "server.invalid_event" // Unknown event class or direction in request
	CodeServerRateLimited  = "server.rate_limited"  // Too many event injections per second

	// Auth domain - control surface authentication
	CodeAuthRequired = "auth.required" // Bearer token required but missing
	CodeAuthInvalid  = "auth.invalid"  // Bearer token did not match

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal host error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "wakelock.acquire_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is (or wraps) a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given stable code.
func Is(err error, code string) bool {
	return GetCode(err) == code
}
