package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestTurnManager() (*TurnManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := NewTurnManager(TurnConfig{})
	m.now = clock.now
	return m, clock
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTurnManager_Transitions(t *testing.T) {
	m, _ := newTestTurnManager()

	var seen []TurnState
	m.OnTransition(func(from, to TurnState) { seen = append(seen, to) })

	assert.Equal(t, StateIdle, m.State())
	assert.True(t, m.Transition(StateProcessing))
	assert.True(t, m.Transition(StateAgentSpeaking))
	assert.True(t, m.Transition(StateIdle))
	assert.Equal(t, []TurnState{StateProcessing, StateAgentSpeaking, StateIdle}, seen)

	// Self-transition is a no-op, not an event.
	assert.True(t, m.Transition(StateIdle))
	assert.Len(t, seen, 3)

	// Closed is terminal.
	assert.True(t, m.Transition(StateClosed))
	assert.False(t, m.Transition(StateIdle))
}

func TestTurnManager_BargeInThresholds(t *testing.T) {
	m, clock := newTestTurnManager()
	m.Transition(StateAgentSpeaking)
	clock.advance(700 * time.Millisecond)

	// Interim threshold is 2 words.
	assert.False(t, m.ShouldBargeIn("no", false))
	assert.True(t, m.ShouldBargeIn("no no no", false))

	// Final threshold is 4 words.
	assert.False(t, m.ShouldBargeIn("no no no", true))
	assert.True(t, m.ShouldBargeIn("stop please thank you", true))
}

func TestTurnManager_GuardSuppressesEcho(t *testing.T) {
	m, clock := newTestTurnManager()
	m.Transition(StateAgentSpeaking)

	clock.advance(300 * time.Millisecond)
	assert.False(t, m.ShouldBargeIn("no no no", false), "inside 500ms guard")

	clock.advance(300 * time.Millisecond)
	assert.True(t, m.ShouldBargeIn("no no no", false), "after guard")
}

func TestTurnManager_NoBargeInOutsideAgentSpeaking(t *testing.T) {
	m, clock := newTestTurnManager()
	clock.advance(time.Second)

	assert.False(t, m.ShouldBargeIn("stop stop stop stop", true))
}

func TestTurnManager_HoldSpeech(t *testing.T) {
	m, _ := newTestTurnManager()
	m.Transition(StateWaitingForTool)
	m.SetHolding(true)

	assert.False(t, m.AllowHoldSpeech("uh"), "noise below word floor is ignored")
	assert.True(t, m.AllowHoldSpeech("yes"), "confirmation phrase passes")
	assert.True(t, m.AllowHoldSpeech("Go ahead."), "confirmation with punctuation passes")
	assert.True(t, m.AllowHoldSpeech("also check my address"), "real speech over the floor passes")

	m.SetHolding(false)
	assert.True(t, m.AllowHoldSpeech("uh"), "no hold, everything passes")
}
