package cli

import (
	"errors"
	"fmt"
)

// Exit codes reported by the rewind binary.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (rehydrate error, diverged replay, etc.)
	ExitCommandError = 2 // Command error (bad flags, missing database, invalid config)
)

// ExitError carries an exit code alongside the error it describes so
// main can translate command failures into process exit status.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to an existing error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Command runners
// wrap every operational error in an ExitError, so anything else
// escaping Execute is a flag or usage error and maps to
// ExitCommandError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// CLIResponse is the JSON envelope every command emits under
// --format json.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error payload inside a CLIResponse.
type CLIError struct {
	Code    string      `json:"code"`              // stable machine-readable code
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}
