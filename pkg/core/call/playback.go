package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/voicewire-ai/voicewire/pkg/core"
	"github.com/voicewire-ai/voicewire/pkg/core/audio"
	"github.com/voicewire-ai/voicewire/pkg/core/voice/tts"
)

// mulawSilence is the mu-law encoding of a zero sample, used to pad the
// final partial frame of an utterance.
const mulawSilence = 0xFF

// SchedulerCallbacks receive playback progress. OnFrame must not block
// and must not call back into the Scheduler; the pacing timer runs on the
// calling goroutine and holds the scheduler lock during emission.
type SchedulerCallbacks struct {
	OnFrame     func(frame []byte)
	OnItemStart func(text string)
	OnItemDone  func(text string)
	OnDrained   func()
	OnError     func(err error)
}

// PlaybackHandle resolves when its item has finished playing or was
// discarded by a barge-in. Discarded items resolve rather than fail so
// callers do not treat interruption as an error.
type PlaybackHandle struct {
	done chan struct{}
}

// Done returns a channel closed when the item resolves.
func (h *PlaybackHandle) Done() <-chan struct{} { return h.done }

type playbackItem struct {
	text   string
	handle *PlaybackHandle
}

// Scheduler serializes synthesis and paces the resulting audio to the
// transport in fixed-duration mu-law frames. Items play strictly in FIFO
// order, one at a time; CancelAll clears everything mid-frame.
type Scheduler struct {
	cfg    PlaybackConfig
	synth  tts.Synthesizer
	opts   tts.SynthesizeOptions
	cb     SchedulerCallbacks
	logger *zap.Logger

	mu         sync.Mutex
	queue      []*playbackItem
	cancelItem context.CancelFunc

	wake    chan struct{}
	playing atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewScheduler creates a playback scheduler. Call Start before Enqueue.
func NewScheduler(cfg PlaybackConfig, synth tts.Synthesizer, opts tts.SynthesizeOptions, cb SchedulerCallbacks, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		synth:   synth,
		opts:    opts,
		cb:      cb,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Start launches the playback loop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
}

// Enqueue appends text to the playback queue and returns a handle that
// resolves when the item finishes or is discarded.
func (s *Scheduler) Enqueue(text string) *PlaybackHandle {
	item := &playbackItem{
		text:   text,
		handle: &PlaybackHandle{done: make(chan struct{})},
	}

	if s.closed.Load() {
		close(item.handle.done)
		return item.handle
	}

	s.mu.Lock()
	s.queue = append(s.queue, item)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return item.handle
}

// Speaking reports whether an item is currently being played.
func (s *Scheduler) Speaking() bool { return s.playing.Load() }

// CancelAll stops the pacing timer, discards any buffered audio, and
// clears the queue, resolving every discarded item. No frame from a
// cancelled item is emitted after CancelAll returns.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	if s.cancelItem != nil {
		s.cancelItem()
	}
	discarded := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, item := range discarded {
		close(item.handle.done)
	}
}

// Close cancels playback and stops the loop. Idempotent.
func (s *Scheduler) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.CancelAll()
	if s.cancel != nil {
		s.cancel()
		<-s.stopped
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.stopped)

	for {
		item := s.next(ctx)
		if item == nil {
			return
		}
		s.play(ctx, item)

		s.mu.Lock()
		drained := len(s.queue) == 0
		s.mu.Unlock()
		if drained && !s.closed.Load() && s.cb.OnDrained != nil {
			s.cb.OnDrained()
		}
	}
}

// next blocks until an item is available or the scheduler stops.
func (s *Scheduler) next(ctx context.Context) *playbackItem {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return item
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
	}
}

// play synthesizes one item and paces its frames out. Cancellation is
// checked between every frame; a stale cancel between frames discards the
// remainder without emitting.
func (s *Scheduler) play(ctx context.Context, item *playbackItem) {
	defer close(item.handle.done)

	itemCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelItem = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.cancelItem = nil
		s.mu.Unlock()
	}()

	syn, err := s.synth.Synthesize(itemCtx, item.text, s.opts)
	if err != nil {
		if itemCtx.Err() != nil {
			return // cancelled mid-synthesis
		}
		s.logger.Warn("synthesis failed", zap.Error(err))
		if s.cb.OnError != nil {
			s.cb.OnError(err)
		}
		return
	}

	buf, err := s.normalize(syn)
	if err != nil {
		s.logger.Warn("audio normalization failed", zap.Error(err))
		if s.cb.OnError != nil {
			s.cb.OnError(err)
		}
		return
	}

	s.playing.Store(true)
	defer s.playing.Store(false)

	if s.cb.OnItemStart != nil {
		s.cb.OnItemStart(item.text)
	}

	interval := time.Duration(s.cfg.FrameIntervalMs) * time.Millisecond
	frameCount := (len(buf) + s.cfg.FrameBytes - 1) / s.cfg.FrameBytes
	expected := time.Duration(frameCount) * interval
	safety := time.NewTimer(expected + time.Duration(s.cfg.SafetyMarginMs)*time.Millisecond)
	defer safety.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for off := 0; off < len(buf); off += s.cfg.FrameBytes {
		select {
		case <-itemCtx.Done():
			return
		case <-safety.C:
			s.logger.Warn("playback safety timeout",
				zap.Duration("expected", expected),
				zap.Int("frames_sent", off/s.cfg.FrameBytes))
			return
		case <-ticker.C:
			end := off + s.cfg.FrameBytes
			var frame []byte
			if end <= len(buf) {
				frame = buf[off:end]
			} else {
				frame = make([]byte, s.cfg.FrameBytes)
				copy(frame, buf[off:])
				for i := len(buf) - off; i < s.cfg.FrameBytes; i++ {
					frame[i] = mulawSilence
				}
			}
			// Emit under the same lock CancelAll cancels under, so once
			// CancelAll returns no frame from this item can follow.
			s.mu.Lock()
			if itemCtx.Err() != nil {
				s.mu.Unlock()
				return
			}
			if s.cb.OnFrame != nil {
				s.cb.OnFrame(frame)
			}
			s.mu.Unlock()
		}
	}

	if s.cb.OnItemDone != nil {
		s.cb.OnItemDone(item.text)
	}
}

// normalize converts a synthesis result to 8kHz mu-law with the fade-in
// envelope applied.
func (s *Scheduler) normalize(syn *tts.Synthesis) ([]byte, error) {
	var pcm []byte
	switch syn.Format.Encoding {
	case tts.EncodingMulaw:
		if syn.Format.SampleRate == 8000 {
			return audio.ApplyFadeIn(syn.Audio, s.cfg.FadeInMs, 8000, 8)
		}
		pcm = audio.DecodeMulaw(syn.Audio)
	case tts.EncodingPCM16:
		pcm = syn.Audio
	default:
		return nil, core.NewCodecError("unsupported synthesis encoding " + string(syn.Format.Encoding))
	}

	resampled, err := audio.Resample(pcm, syn.Format.SampleRate, 8000)
	if err != nil {
		return nil, err
	}
	out, err := audio.EncodeMulaw(resampled)
	if err != nil {
		return nil, err
	}
	return audio.ApplyFadeIn(out, s.cfg.FadeInMs, 8000, 8)
}
