package call

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voicewire-ai/voicewire/pkg/core"
	"github.com/voicewire-ai/voicewire/pkg/core/audio"
	"github.com/voicewire-ai/voicewire/pkg/core/knowledge"
	"github.com/voicewire-ai/voicewire/pkg/core/usage"
	"github.com/voicewire-ai/voicewire/pkg/core/voice/stt"
	"github.com/voicewire-ai/voicewire/pkg/core/voice/tts"
	"github.com/voicewire-ai/voicewire/pkg/obs"
)

// Built-in tool names handled by the session itself instead of the
// external executor.
const (
	toolTransferCall = "transfer_call"
	toolEndCall      = "end_call"
)

// Deps are the external collaborators a session drives. Recognizer,
// Synthesizer and LLM are required; Searcher and Metrics are optional.
type Deps struct {
	Recognizer  stt.Recognizer
	Synthesizer tts.Synthesizer
	LLM         LLMClient
	Searcher    KnowledgeSearcher
	Metrics     *obs.Metrics
}

type pendingTool struct {
	call     ToolCall
	buffered []string
}

// Session is the orchestrator for one call: it coordinates the STT stream,
// the turn-taking state machine, the response generator, and the playback
// scheduler. All turn-state mutations happen on the session's single event
// loop; components hand work to it through a command channel rather than
// mutating shared fields.
type Session struct {
	cfg SessionConfig
	id  string

	recognizer stt.Recognizer
	generator  *Generator
	scheduler  *Scheduler
	turn       *TurnManager
	cache      *knowledge.Cache
	meter      *usage.Meter
	metrics    *obs.Metrics
	logger     *zap.Logger
	input      *audio.Buffer

	events   chan Event
	commands chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	group    errgroup.Group

	// Turn-scoped state, touched only on the event loop goroutine.
	messages        []Message
	abort           *atomic.Bool
	genCancel       context.CancelFunc
	pending         *pendingTool
	utterancePrefix string
	turnStarted     time.Time
	firstAudioSeen  bool
	endAfterDrain   string
	enqueuedAt      []time.Time

	started   atomic.Bool
	destroyed atomic.Bool
}

// NewSession creates a session. Call Start to begin the conversation.
func NewSession(cfg SessionConfig, deps Deps) *Session {
	cfg = cfg.withDefaults()

	metrics := deps.Metrics
	if metrics == nil {
		metrics = obs.New(prometheus.NewRegistry())
	}

	cache := knowledge.NewCache(cfg.Cache)
	meter := &usage.Meter{}
	id := uuid.NewString()
	logger := cfg.Logger.With(zap.String("session_id", id[:8]))

	s := &Session{
		cfg:        cfg,
		id:         id,
		recognizer: deps.Recognizer,
		generator:  NewGenerator(deps.LLM, deps.Searcher, cache, meter, cfg.Agent, logger),
		turn:       NewTurnManager(cfg.Turn),
		cache:      cache,
		meter:      meter,
		metrics:    metrics,
		logger:     logger,
		input:      audio.NewBuffer(audio.TelephonyConfig(), 2000),
		events:     make(chan Event, 256),
		commands:   make(chan func(), 64),
	}

	s.scheduler = NewScheduler(cfg.Playback, deps.Synthesizer, tts.SynthesizeOptions{
		Voice:    cfg.Agent.Voice,
		Language: cfg.Agent.Language,
	}, SchedulerCallbacks{
		OnFrame:     func(frame []byte) { s.emit(&AudioDeltaEvent{Frame: frame}) },
		OnItemStart: func(text string) { s.post(s.onPlaybackStart) },
		OnDrained:   func() { s.post(s.onPlaybackDrained) },
		OnError:     func(err error) { s.post(func() { s.onFailure(err) }) },
	}, logger)

	s.turn.OnTransition(func(from, to TurnState) {
		s.emit(&StateChangedEvent{From: from, To: to})
	})

	// The context exists from construction so commands posted while Start
	// is still racing never see a nil context.
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Events returns the outbound event channel. It is closed after the
// session is destroyed.
func (s *Session) Events() <-chan Event { return s.events }

// State returns the current turn state.
func (s *Session) State() TurnState { return s.turn.State() }

// CostSnapshot returns the session's usage counters priced at the
// configured rates. Safe to call at any time.
func (s *Session) CostSnapshot() usage.Snapshot {
	return s.meter.Snapshot(s.cfg.Rates)
}

// Start launches the event loop and speaks the configured greeting.
func (s *Session) Start() {
	if s.started.Swap(true) {
		return
	}

	s.metrics.ActiveSessions.Inc()
	s.metrics.SessionsStarted.Inc()
	s.scheduler.Start()
	s.group.Go(func() error {
		s.loop()
		return nil
	})

	if greeting := s.cfg.Agent.Greeting; greeting != "" {
		s.post(func() {
			s.messages = append(s.messages, Message{Role: RoleAssistant, Content: greeting})
			s.emit(&AgentTranscriptEvent{Text: greeting})
			s.enqueueSpeech(greeting)
		})
	}
}

// SendAudio forwards one inbound telephony frame to the recognizer.
// Returns false if the stream is down; the frame is discarded, never
// queued.
func (s *Session) SendAudio(frame []byte) bool {
	if s.destroyed.Load() {
		return false
	}
	if !s.recognizer.SendAudio(frame) {
		return false
	}
	s.input.Write(frame)
	// 8kHz mu-law: one byte per sample.
	s.meter.AddSTTMillis(int64(len(frame)) * 1000 / 8000)
	return true
}

// InputLevel returns the RMS energy of the caller's last quarter second of
// audio, for level meters and silence diagnostics.
func (s *Session) InputLevel() float64 {
	return s.input.Energy(250)
}

// SendFunctionResponse resumes a session parked on an external tool call.
func (s *Session) SendFunctionResponse(callID, result string) {
	s.post(func() { s.onToolResult(callID, result) })
}

// Interrupt is the external forced cancellation: stops playback and
// generation and returns the turn to idle.
func (s *Session) Interrupt() {
	s.post(func() {
		s.cancelTurn("")
		s.turn.Transition(StateIdle)
	})
}

// Close destroys the session: halts every component, emits
// session.ended, and closes the event channel. Idempotent; errors after
// teardown are suppressed.
func (s *Session) Close(reason string) error {
	if s.destroyed.Swap(true) {
		return nil
	}

	s.turn.Transition(StateClosed)
	s.scheduler.Close()
	err := s.recognizer.Close()

	s.cancel()
	if s.started.Load() {
		_ = s.group.Wait()
		s.metrics.ActiveSessions.Dec()
	}

	select {
	case s.events <- &SessionEndedEvent{Reason: reason}:
	default:
	}
	close(s.events)

	s.logger.Info("session closed", zap.String("reason", reason))
	return err
}

// loop is the single consumer of STT events and posted commands. Turn
// state only changes here.
func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.recognizer.Events():
			if !ok {
				return
			}
			s.handleSTT(ev)
		case fn := <-s.commands:
			fn()
		}
	}
}

// post hands a closure to the event loop. Safe after teardown; the
// command is silently discarded once the loop has stopped.
func (s *Session) post(fn func()) {
	if !s.started.Load() || s.destroyed.Load() {
		return
	}
	select {
	case s.commands <- fn:
	case <-s.ctx.Done():
	}
}

// emit sends an event to the embedding system. Events never fire after
// teardown; a full channel drops the event rather than stalling audio
// pacing.
func (s *Session) emit(ev Event) {
	if s.destroyed.Load() {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event channel full, dropping", zap.String("type", ev.EventType()))
	}
}

func (s *Session) handleSTT(ev stt.Event) {
	switch e := ev.(type) {
	case *stt.InterimEvent:
		if s.turn.ShouldBargeIn(e.Text, false) {
			s.bargeIn(e.Text, false)
		}
	case *stt.FinalEvent:
		if s.turn.ShouldBargeIn(e.Text, true) {
			s.bargeIn(e.Text, true)
		}
	case *stt.EndpointEvent:
		utterance := strings.TrimSpace(s.utterancePrefix + " " + e.Utterance)
		s.utterancePrefix = ""
		s.handleUtterance(utterance)
	case *stt.ErrorEvent:
		s.metrics.Errors.WithLabelValues(string(core.TypeOf(e.Err))).Inc()
		s.emit(&ErrorEvent{Err: e.Err})
	case *stt.DisconnectedEvent:
		s.logger.Warn("transcription stream dropped", zap.Int("code", e.Code), zap.Error(e.Err))
	}
}

func (s *Session) handleUtterance(text string) {
	if text == "" {
		return
	}

	switch s.turn.State() {
	case StateWaitingForTool:
		if !s.turn.AllowHoldSpeech(text) {
			s.logger.Debug("ignored hold-state noise", zap.String("text", text))
			return
		}
		s.pending.buffered = append(s.pending.buffered, text)
	case StateAgentSpeaking:
		// An endpoint that did not qualify as barge-in is echo of our own
		// speech.
		s.logger.Debug("ignored echo utterance", zap.String("text", text))
	case StateProcessing:
		// The caller kept talking while we were generating: restart with
		// the combined input.
		s.cancelTurn("")
		if n := len(s.messages); n > 0 && s.messages[n-1].Role == RoleUser {
			text = strings.TrimSpace(s.messages[n-1].Content + " " + text)
			s.messages = s.messages[:n-1]
		}
		s.processUtterance(text)
	default:
		s.processUtterance(text)
	}
}

func (s *Session) processUtterance(text string) {
	s.emit(&UserTranscriptEvent{Text: text})
	s.messages = append(s.messages, Message{Role: RoleUser, Content: text})
	s.turn.Transition(StateProcessing)
	s.turnStarted = time.Now()
	s.firstAudioSeen = false
	s.startGeneration(true)
}

// startGeneration launches one model turn on its own goroutine. Callbacks
// post results back to the event loop.
func (s *Session) startGeneration(withTools bool) {
	abort := &atomic.Bool{}
	s.abort = abort
	genCtx, cancel := context.WithCancel(s.ctx)
	s.genCancel = cancel

	msgs := s.promptMessages()

	s.group.Go(func() error {
		defer cancel()
		err := s.generator.Generate(genCtx, msgs, withTools, abort, GeneratorCallbacks{
			OnSentence: func(text string) {
				s.post(func() {
					if abort.Load() {
						return
					}
					s.enqueueSpeech(text)
				})
			},
			OnToolCall: func(tc ToolCall) {
				s.post(func() {
					if abort.Load() {
						return
					}
					s.handleToolCall(tc)
				})
			},
			OnDone: func(fullText string) {
				s.post(func() {
					if abort.Load() || fullText == "" {
						return
					}
					s.messages = append(s.messages, Message{Role: RoleAssistant, Content: fullText})
					s.emit(&AgentTranscriptEvent{Text: fullText})
				})
			},
		})
		if err != nil && !abort.Load() {
			s.post(func() { s.onFailure(err) })
		}
		return nil
	})
}

// promptMessages builds the model input: instructions first, then the
// transcript so far.
func (s *Session) promptMessages() []Message {
	msgs := make([]Message, 0, len(s.messages)+1)
	if s.cfg.Agent.Instructions != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: s.cfg.Agent.Instructions})
	}
	return append(msgs, s.messages...)
}

func (s *Session) enqueueSpeech(text string) {
	s.meter.AddTTSChars(int64(len(text)))
	s.enqueuedAt = append(s.enqueuedAt, time.Now())
	s.scheduler.Enqueue(text)
}

func (s *Session) onPlaybackStart() {
	if len(s.enqueuedAt) > 0 {
		s.metrics.SynthesisLatency.Observe(time.Since(s.enqueuedAt[0]).Seconds())
		s.enqueuedAt = s.enqueuedAt[1:]
	}

	switch s.turn.State() {
	case StateProcessing:
		if !s.firstAudioSeen {
			s.firstAudioSeen = true
			s.metrics.FirstAudioDelay.Observe(time.Since(s.turnStarted).Seconds())
		}
		s.turn.Transition(StateAgentSpeaking)
	case StateIdle, StateUserSpeaking:
		s.turn.Transition(StateAgentSpeaking)
	}
}

func (s *Session) onPlaybackDrained() {
	if s.endAfterDrain != "" {
		reason := s.endAfterDrain
		go s.Close(reason)
		return
	}
	if s.turn.State() == StateAgentSpeaking && s.pending == nil {
		s.turn.Transition(StateIdle)
		s.emit(&AudioDoneEvent{})
	}
}

// bargeIn performs the single cancellation path: stop playback, clear the
// queue, abort generation, flush STT accumulation, and leave agent-speaking
// state, all before the next event is handled.
func (s *Session) bargeIn(transcript string, isFinal bool) {
	s.metrics.BargeIns.Inc()
	s.cancelTurn(transcript)
	s.turn.Transition(StateUserSpeaking)
	s.emit(&InterruptedEvent{Transcript: transcript})

	// A final transcript is already a complete utterance. The flush just
	// emptied the recognizer's buffer, so the service's endpoint will be
	// dropped as noise; reprocess the flushed text now rather than waiting
	// for speech that may never come.
	if isFinal && s.utterancePrefix != "" {
		text := s.utterancePrefix
		s.utterancePrefix = ""
		s.handleUtterance(text)
	}
}

// cancelTurn stops playback and generation and force-finalizes the STT
// accumulation so flushed text joins the caller's next utterance. An
// abandoned tool wait is cleared too, so the next drain can idle the turn.
func (s *Session) cancelTurn(transcript string) {
	s.scheduler.CancelAll()
	if s.abort != nil {
		s.abort.Store(true)
	}
	if s.genCancel != nil {
		s.genCancel()
	}
	if s.pending != nil {
		s.pending = nil
		s.turn.SetHolding(false)
	}
	if flushed := s.recognizer.FlushUtterance(); flushed != "" {
		s.utterancePrefix = strings.TrimSpace(s.utterancePrefix + " " + flushed)
	}
	s.enqueuedAt = nil
	s.logger.Info("turn cancelled", zap.String("transcript", transcript))
}

func (s *Session) handleToolCall(tc ToolCall) {
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}
	s.metrics.ToolCalls.WithLabelValues(tc.Name).Inc()

	switch tc.Name {
	case toolTransferCall:
		var args struct {
			Queue  string `json:"queue"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			s.logger.Warn("malformed transfer_call arguments", zap.Error(err))
		}
		s.emit(&TransferRequestedEvent{Queue: args.Queue, Reason: args.Reason})
		s.endAfterDrain = "transferred"
		if !s.scheduler.Speaking() {
			go s.Close("transferred")
		}
		return

	case toolEndCall:
		var args struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			s.logger.Warn("malformed end_call arguments", zap.Error(err))
		}
		reason := args.Reason
		if reason == "" {
			reason = "completed"
		}
		s.endAfterDrain = reason
		if !s.scheduler.Speaking() {
			go s.Close(reason)
		}
		return
	}

	s.messages = append(s.messages, Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{tc},
	})
	s.pending = &pendingTool{call: tc}
	s.turn.Transition(StateWaitingForTool)
	s.turn.SetHolding(true)
	s.enqueueSpeech(fillerPhrase(lastUserText(s.messages)))
	s.emit(&FunctionCallEvent{Name: tc.Name, CallID: tc.ID, Arguments: tc.Arguments})
}

func (s *Session) onToolResult(callID, result string) {
	if s.pending == nil || s.pending.call.ID != callID {
		s.logger.Warn("tool result for unknown call", zap.String("call_id", callID))
		return
	}

	s.messages = append(s.messages, Message{
		Role:       RoleTool,
		Content:    result,
		ToolCallID: callID,
	})

	// Leave the turn in WaitingForTool for one debounce window so fast
	// follow-up speech lands in the same regeneration pass.
	debounce := time.Duration(s.cfg.ToolDebounceMs) * time.Millisecond
	time.AfterFunc(debounce, func() {
		s.post(s.resumeAfterTool)
	})
}

func (s *Session) resumeAfterTool() {
	if s.pending == nil {
		return
	}
	buffered := s.pending.buffered
	s.pending = nil
	s.turn.SetHolding(false)

	if len(buffered) > 0 {
		text := strings.Join(buffered, " ")
		s.emit(&UserTranscriptEvent{Text: text})
		s.messages = append(s.messages, Message{Role: RoleUser, Content: text})
	}

	s.turn.Transition(StateProcessing)
	s.turnStarted = time.Now()
	s.firstAudioSeen = false
	s.startGeneration(false)
}

// onFailure is the shared error path: report, then speak a short apology
// instead of leaving the caller in silence. The turn returns to idle when
// the apology drains.
func (s *Session) onFailure(err error) {
	if s.destroyed.Load() {
		return
	}
	s.metrics.Errors.WithLabelValues(string(core.TypeOf(err))).Inc()
	s.logger.Error("turn failed", zap.Error(err))
	s.emit(&ErrorEvent{Err: err})
	s.enqueueSpeech(apologyPhrase(lastUserText(s.messages)))
}
