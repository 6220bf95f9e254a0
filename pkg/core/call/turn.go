package call

import (
	"strings"
	"sync"
	"time"
)

// TurnManager owns the session's turn state. Every transition goes through
// Transition so the one-producer-at-a-time invariant holds by
// construction; components never write turn state directly.
type TurnManager struct {
	cfg TurnConfig

	mu          sync.Mutex
	state       TurnState
	speechStart time.Time
	holding     bool

	now func() time.Time // injectable for tests

	onTransition func(from, to TurnState)
}

// NewTurnManager creates a manager in StateIdle.
func NewTurnManager(cfg TurnConfig) *TurnManager {
	return &TurnManager{
		cfg:   cfg.withDefaults(),
		state: StateIdle,
		now:   time.Now,
	}
}

// OnTransition registers the single transition callback. It runs inline
// under the manager's lock, so it must not call back into the manager.
func (m *TurnManager) OnTransition(fn func(from, to TurnState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// State returns the current turn state.
func (m *TurnManager) State() TurnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the given state, recording the speech start time
// when entering StateAgentSpeaking. Transitioning to the current state is
// a no-op. Returns false once the manager is closed.
func (m *TurnManager) Transition(to TurnState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return false
	}
	if m.state == to {
		return true
	}

	from := m.state
	m.state = to
	if to == StateAgentSpeaking {
		m.speechStart = m.now()
	}
	if to != StateWaitingForTool {
		m.holding = false
	}

	if m.onTransition != nil {
		m.onTransition(from, to)
	}
	return true
}

// SetHolding marks the tool wait as an explicit "please hold" state in
// which short utterances are ignored (see AllowHoldSpeech).
func (m *TurnManager) SetHolding(holding bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holding = holding
}

// ShouldBargeIn reports whether a transcript observed during agent speech
// qualifies as a barge-in. Interim and final transcripts use separate
// word-count thresholds, and nothing qualifies inside the guard interval
// after speech start. The dual threshold plus guard suppresses the
// agent's own synthesized speech leaking back in as acoustic echo while
// keeping interruption latency low.
func (m *TurnManager) ShouldBargeIn(text string, isFinal bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAgentSpeaking {
		return false
	}
	if m.now().Sub(m.speechStart) < time.Duration(m.cfg.GuardMs)*time.Millisecond {
		return false
	}

	threshold := m.cfg.InterimBargeWords
	if isFinal {
		threshold = m.cfg.FinalBargeWords
	}
	return len(strings.Fields(text)) >= threshold
}

// AllowHoldSpeech reports whether speech arriving during an explicit hold
// should restart the turn. Noise and backchannels are ignored; a
// confirmation phrase or an utterance over the word floor passes.
func (m *TurnManager) AllowHoldSpeech(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.holding {
		return true
	}

	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(text), ".,!?"))
	if _, ok := confirmationPhrases[normalized]; ok {
		return true
	}
	return len(strings.Fields(text)) >= m.cfg.HoldMinWords
}
