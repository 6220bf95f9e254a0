package call

// TurnState is the single session-wide turn-taking state. All transitions
// are funnelled through the TurnManager so at most one of the response
// generator and the playback scheduler produces output at a time, except
// during tool-call filler overlap.
type TurnState int

const (
	// StateIdle is when no turn is in progress and the caller may speak.
	StateIdle TurnState = iota
	// StateUserSpeaking is when the caller is speaking (or just barged in).
	StateUserSpeaking
	// StateProcessing is when a model response is being generated.
	StateProcessing
	// StateAgentSpeaking is when synthesized audio is being played.
	StateAgentSpeaking
	// StateWaitingForTool is when the turn is parked on an external
	// function result. User speech arriving here is buffered, not dropped.
	StateWaitingForTool
	// StateClosed is when the session has been destroyed.
	StateClosed
)

// String returns a human-readable state name.
func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateUserSpeaking:
		return "USER_SPEAKING"
	case StateProcessing:
		return "PROCESSING"
	case StateAgentSpeaking:
		return "AGENT_SPEAKING"
	case StateWaitingForTool:
		return "WAITING_FOR_TOOL"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
