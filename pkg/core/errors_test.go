package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrCodec,
		Message: "odd-length PCM16 buffer",
	}

	expected := "codec_error: odd-length PCM16 buffer"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewConnectError("stt", cause)

	expected := "connect_error: stt unreachable: connection refused"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrConnect, true},
		{ErrTimeout, true},
		{ErrCodec, false},
		{ErrGeneration, false},
		{ErrToolExecution, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := &Error{Type: tt.errType, Message: "test"}
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewGenerationError(t *testing.T) {
	cause := errors.New("stream reset")
	err := NewGenerationError("model call failed", cause)
	if err.Type != ErrGeneration {
		t.Errorf("Type = %v, want %v", err.Type, ErrGeneration)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}

func TestNewToolExecutionError(t *testing.T) {
	err := NewToolExecutionError("check_order", errors.New("boom"))
	if err.Type != ErrToolExecution {
		t.Errorf("Type = %v, want %v", err.Type, ErrToolExecution)
	}
	if err.Message != "tool check_order failed" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewTimeoutError(t *testing.T) {
	err := NewTimeoutError("playback", 5*time.Second)
	if err.Type != ErrTimeout {
		t.Errorf("Type = %v, want %v", err.Type, ErrTimeout)
	}
	if err.Message != "playback exceeded 5s" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("session: %w", NewCodecError("bad frame"))
	if got := TypeOf(wrapped); got != ErrCodec {
		t.Errorf("TypeOf(wrapped) = %q, want %q", got, ErrCodec)
	}
	if got := TypeOf(errors.New("plain")); got != "" {
		t.Errorf("TypeOf(plain) = %q, want empty", got)
	}
}
