package streaming

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of a supervised-run failure
type ErrorType int

const (
	// ErrorTypeSpawn indicates the transcoder process could not be started
	ErrorTypeSpawn ErrorType = iota
	// ErrorTypeCriticalDecode indicates decoder-level corruption in the input
	ErrorTypeCriticalDecode
	// ErrorTypeTransientExit indicates a non-zero exit without a critical signal
	ErrorTypeTransientExit
	// ErrorTypeHung indicates the process produced no output for the liveness window
	ErrorTypeHung
	// ErrorTypeStopped indicates the run was terminated by shutdown
	ErrorTypeStopped
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeSpawn:
		return "spawn_failed"
	case ErrorTypeCriticalDecode:
		return "critical_decode"
	case ErrorTypeTransientExit:
		return "transient_exit"
	case ErrorTypeHung:
		return "hung"
	case ErrorTypeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RunError is a classified supervised-run failure. Recoverable errors are
// absorbed into sequencing decisions (skip, retry, denylist); only repeated
// spawn failures or catalog exhaustion surface as fatal.
type RunError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Recoverable bool
}

// NewRunError creates a new RunError with the given type, message, and cause
func NewRunError(errorType ErrorType, message string, cause error) *RunError {
	return &RunError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Recoverable: errorType != ErrorTypeStopped,
	}
}

// Error implements the error interface
func (e *RunError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *RunError) Unwrap() error {
	return e.Cause
}

// ErrSpawnExhausted indicates repeated spawn failures opened the circuit
var ErrSpawnExhausted = errors.New("transcoder spawn failures exhausted retry budget")
