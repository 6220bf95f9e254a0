package call

import (
	"go.uber.org/zap"

	"github.com/voicewire-ai/voicewire/pkg/core/knowledge"
	"github.com/voicewire-ai/voicewire/pkg/core/usage"
)

// AgentConfig describes the agent persona for one session. It arrives from
// the embedding system at configure time.
type AgentConfig struct {
	// Instructions is the system prompt for the agent.
	Instructions string `json:"instructions"`

	// Greeting is spoken as soon as the session starts. Empty skips it.
	Greeting string `json:"greeting,omitempty"`

	// Tools are the function schemas exposed to the model.
	Tools []ToolSchema `json:"tools,omitempty"`

	// Model is the LLM model identifier.
	Model string `json:"model"`

	// Voice is the synthesis voice identifier.
	Voice string `json:"voice,omitempty"`

	// Language hints STT and TTS. Empty lets the vendors auto-detect.
	Language string `json:"language,omitempty"`

	// KnowledgeBaseID selects the knowledge base for live searches.
	// Empty disables the search pre-flight entirely.
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`

	// MaxTokens caps model responses. Default: 1024.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls response randomness.
	Temperature *float64 `json:"temperature,omitempty"`
}

// TurnConfig tunes barge-in detection. The thresholds and guard are
// empirically tuned, environment-dependent values, not correctness
// properties; override them per deployment if echo conditions differ.
type TurnConfig struct {
	// InterimBargeWords is the minimum interim-transcript word count that
	// triggers a barge-in while the agent is speaking. Interim detection
	// acts first and immediately mutes output. Default: 2.
	InterimBargeWords int `json:"interim_barge_words"`

	// FinalBargeWords is the minimum final-transcript word count that
	// confirms a barge-in. Higher than the interim threshold because final
	// results include echo of the agent's own speech more often.
	// Default: 4.
	FinalBargeWords int `json:"final_barge_words"`

	// GuardMs is the minimum time since agent speech started before any
	// barge-in can fire. Suppresses acoustic echo of the agent's own
	// synthesized onset. Default: 500.
	GuardMs int `json:"guard_ms"`

	// HoldMinWords is the word-count floor for speech to restart a turn
	// while the session is in an explicit hold wait. Shorter utterances
	// are ignored unless they match a confirmation pattern. Default: 3.
	HoldMinWords int `json:"hold_min_words"`
}

// DefaultTurnConfig returns the standard barge-in tuning.
func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		InterimBargeWords: 2,
		FinalBargeWords:   4,
		GuardMs:           500,
		HoldMinWords:      3,
	}
}

func (c TurnConfig) withDefaults() TurnConfig {
	d := DefaultTurnConfig()
	if c.InterimBargeWords == 0 {
		c.InterimBargeWords = d.InterimBargeWords
	}
	if c.FinalBargeWords == 0 {
		c.FinalBargeWords = d.FinalBargeWords
	}
	if c.GuardMs == 0 {
		c.GuardMs = d.GuardMs
	}
	if c.HoldMinWords == 0 {
		c.HoldMinWords = d.HoldMinWords
	}
	return c
}

// PlaybackConfig tunes the playback scheduler's frame pacing.
type PlaybackConfig struct {
	// FrameBytes is the size of one outbound mu-law frame.
	// Default: 160 (20ms at 8kHz).
	FrameBytes int `json:"frame_bytes"`

	// FrameIntervalMs is the pacing interval between frames. Default: 20.
	FrameIntervalMs int `json:"frame_interval_ms"`

	// FadeInMs is the fade-in window applied to each synthesized item to
	// suppress onset pops. Default: 200.
	FadeInMs int `json:"fade_in_ms"`

	// SafetyMarginMs is added to an item's expected playback duration to
	// form the hard timeout that keeps a stalled transport from blocking
	// the turn forever. Default: 5000.
	SafetyMarginMs int `json:"safety_margin_ms"`
}

// DefaultPlaybackConfig returns standard telephony pacing: 20ms mu-law
// frames at 8kHz with a 200ms fade-in.
func DefaultPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		FrameBytes:      160,
		FrameIntervalMs: 20,
		FadeInMs:        200,
		SafetyMarginMs:  5000,
	}
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	d := DefaultPlaybackConfig()
	if c.FrameBytes == 0 {
		c.FrameBytes = d.FrameBytes
	}
	if c.FrameIntervalMs == 0 {
		c.FrameIntervalMs = d.FrameIntervalMs
	}
	if c.FadeInMs == 0 {
		c.FadeInMs = d.FadeInMs
	}
	if c.SafetyMarginMs == 0 {
		c.SafetyMarginMs = d.SafetyMarginMs
	}
	return c
}

// SessionConfig holds all configuration for one call session.
type SessionConfig struct {
	Agent    AgentConfig      `json:"agent"`
	Turn     TurnConfig       `json:"turn"`
	Playback PlaybackConfig   `json:"playback"`
	Cache    knowledge.Config `json:"cache"`

	// Rates prices the session's usage snapshot.
	Rates usage.Rates `json:"rates"`

	// ToolDebounceMs batches user speech buffered during a tool wait with
	// fast follow-ups after the result lands. Default: 100.
	ToolDebounceMs int `json:"tool_debounce_ms"`

	// Logger receives structured session logs. Default: zap.NewNop().
	Logger *zap.Logger `json:"-"`
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Turn:           DefaultTurnConfig(),
		Playback:       DefaultPlaybackConfig(),
		Cache:          knowledge.DefaultConfig(),
		ToolDebounceMs: 100,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	c.Turn = c.Turn.withDefaults()
	c.Playback = c.Playback.withDefaults()
	if c.ToolDebounceMs == 0 {
		c.ToolDebounceMs = 100
	}
	if c.Agent.MaxTokens == 0 {
		c.Agent.MaxTokens = 1024
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
