package errors

import (
	stderrors "errors"
	"fmt"
)

// Code represents stable error codes for all failure modes
type Code string

const (
	// ProcessStartup indicates the engine binary failed to spawn or its
	// version banner was missing or too old. Fatal at construction.
	ProcessStartup Code = "PROCESS_STARTUP"
	// Protocol indicates a command produced no sentinel line (broken pipe);
	// treated as process death
	Protocol Code = "PROTOCOL_ERROR"
	// Engine indicates the engine reported an error on its error stream for
	// an otherwise well-formed command; non-fatal
	Engine Code = "ENGINE_ERROR"
	// Parse indicates returned tabular data doesn't match the expected shape
	Parse Code = "PARSE_ERROR"
	// WatchdogKill indicates the supervisor terminated the engine after the
	// execution ceiling elapsed
	WatchdogKill Code = "WATCHDOG_KILL"
	// ClientDead indicates a call on a client whose engine process has
	// already terminated
	ClientDead Code = "CLIENT_DEAD"
	// StrategyUnsupported indicates a counting strategy cannot serve the
	// requested flag combination
	StrategyUnsupported Code = "STRATEGY_UNSUPPORTED"
	// Cache indicates a cache store failure
	Cache Code = "CACHE_ERROR"
	// ConfigInvalid indicates an invalid configuration value
	ConfigInvalid Code = "CONFIG_INVALID"
	// Internal indicates an unexpected error
	Internal Code = "INTERNAL_ERROR"
)

// Error is a typed error carrying a stable code and an optional cause
type Error struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new Error
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Newf creates a new Error with a formatted message and no cause
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails attaches details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the Code from an error chain, or Internal if none is found
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// HasCode reports whether the error chain carries the given code
func HasCode(err error, code Code) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == code
}
