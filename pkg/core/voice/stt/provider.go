// Package stt provides the streaming speech-to-text adapter. One adapter
// owns one duplex connection to the transcription service per session,
// forwards inbound audio frames, and surfaces transcript and endpoint events.
package stt

// Event is the interface for all transcription events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// InterimEvent is a provisional transcript that may still change.
type InterimEvent struct {
	Text string `json:"text"`
}

func (e *InterimEvent) EventType() string { return "transcript.interim" }

// FinalEvent is a settled transcript segment.
type FinalEvent struct {
	Text string `json:"text"`
}

func (e *FinalEvent) EventType() string { return "transcript.final" }

// EndpointEvent is emitted once per completed utterance. Utterance carries
// the final-transcript text accumulated since the previous endpoint.
type EndpointEvent struct {
	Utterance string `json:"utterance"`
}

func (e *EndpointEvent) EventType() string { return "endpoint" }

// DisconnectedEvent is emitted when the stream drops. A reconnect attempt
// follows unless the adapter is closed.
type DisconnectedEvent struct {
	Code int   `json:"code"`
	Err  error `json:"-"`
}

func (e *DisconnectedEvent) EventType() string { return "disconnected" }

// ErrorEvent is emitted for unrecoverable stream failures.
type ErrorEvent struct {
	Err error `json:"-"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// Recognizer is the strategy interface the turn manager consumes. The
// engine ships StreamAdapter; vendors with incompatible wire protocols
// supply their own implementation.
type Recognizer interface {
	// SendAudio forwards one inbound frame. Non-blocking; returns false
	// if the stream is not connected, in which case the frame is
	// discarded, never queued.
	SendAudio(frame []byte) bool

	// FlushUtterance force-finalizes the accumulation buffer and returns
	// the pending utterance text. Used on barge-in.
	FlushUtterance() string

	// Events returns the transcription event stream.
	Events() <-chan Event

	// AudioSeconds reports how much audio has been forwarded, for usage
	// metering.
	AudioSeconds() float64

	// Close tears the stream down. Idempotent.
	Close() error
}
