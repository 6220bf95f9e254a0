package call

// Event is the interface for all session events raised to the embedding
// system.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// UserTranscriptEvent carries a finalized user utterance.
type UserTranscriptEvent struct {
	Text string `json:"text"`
}

func (e *UserTranscriptEvent) EventType() string { return "transcript.user" }

// AgentTranscriptEvent carries the agent's full response text for a turn.
type AgentTranscriptEvent struct {
	Text string `json:"text"`
}

func (e *AgentTranscriptEvent) EventType() string { return "transcript.agent" }

// AudioDeltaEvent carries one paced mu-law playback frame.
type AudioDeltaEvent struct {
	Frame []byte `json:"frame"`
}

func (e *AudioDeltaEvent) EventType() string { return "audio.delta" }

// AudioDoneEvent marks the end of the agent's spoken utterance: the
// playback queue drained with no tool call pending.
type AudioDoneEvent struct{}

func (e *AudioDoneEvent) EventType() string { return "audio.done" }

// FunctionCallEvent requests external execution of a model tool call.
// The embedding system answers with SendFunctionResponse.
type FunctionCallEvent struct {
	Name      string `json:"name"`
	CallID    string `json:"call_id"`
	Arguments string `json:"arguments"`
}

func (e *FunctionCallEvent) EventType() string { return "function.call" }

// TransferRequestedEvent asks the transport to hand the call to a human.
type TransferRequestedEvent struct {
	Queue  string `json:"queue,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (e *TransferRequestedEvent) EventType() string { return "transfer.requested" }

// SessionEndedEvent is emitted exactly once when the session is destroyed.
type SessionEndedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *SessionEndedEvent) EventType() string { return "session.ended" }

// InterruptedEvent is emitted when a barge-in cancels agent output.
type InterruptedEvent struct {
	Transcript string `json:"transcript,omitempty"`
}

func (e *InterruptedEvent) EventType() string { return "interrupted" }

// StateChangedEvent is emitted on every turn-state transition.
type StateChangedEvent struct {
	From TurnState `json:"from"`
	To   TurnState `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// ErrorEvent reports a non-fatal or fatal error. Fatal errors are followed
// by SessionEndedEvent.
type ErrorEvent struct {
	Err   error `json:"-"`
	Fatal bool  `json:"fatal,omitempty"`
}

func (e *ErrorEvent) EventType() string { return "error" }
