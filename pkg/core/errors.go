// Package core provides shared types for the voicewire conversation engine.
package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType categorizes engine errors.
type ErrorType string

const (
	// ErrConnect indicates an upstream STT/TTS/LLM service was unreachable
	// or rejected the connection.
	ErrConnect ErrorType = "connect_error"
	// ErrCodec indicates a malformed audio buffer.
	ErrCodec ErrorType = "codec_error"
	// ErrGeneration indicates a model call failed after exhausting the
	// partial-result fallback.
	ErrGeneration ErrorType = "generation_error"
	// ErrToolExecution indicates an external function call failed.
	ErrToolExecution ErrorType = "tool_execution_error"
	// ErrTimeout indicates a bounded wait was exceeded.
	ErrTimeout ErrorType = "timeout_error"
)

// Error is the engine error type. It carries a category so callers can
// route recovery behavior without string matching.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the operation may succeed on retry.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrConnect, ErrTimeout:
		return true
	default:
		return false
	}
}

// NewConnectError creates a connect error for the named upstream service.
func NewConnectError(service string, cause error) *Error {
	return &Error{
		Type:    ErrConnect,
		Message: service + " unreachable",
		Cause:   cause,
	}
}

// NewCodecError creates a codec error describing the malformed input.
func NewCodecError(message string) *Error {
	return &Error{
		Type:    ErrCodec,
		Message: message,
	}
}

// NewGenerationError creates a generation error.
func NewGenerationError(message string, cause error) *Error {
	return &Error{
		Type:    ErrGeneration,
		Message: message,
		Cause:   cause,
	}
}

// NewToolExecutionError creates a tool execution error for the named call.
func NewToolExecutionError(name string, cause error) *Error {
	return &Error{
		Type:    ErrToolExecution,
		Message: "tool " + name + " failed",
		Cause:   cause,
	}
}

// NewTimeoutError creates a timeout error for a bounded wait.
func NewTimeoutError(op string, limit time.Duration) *Error {
	return &Error{
		Type:    ErrTimeout,
		Message: fmt.Sprintf("%s exceeded %s", op, limit),
	}
}

// TypeOf returns the ErrorType of err, or "" if err is not an engine Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}
