package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewire-ai/voicewire/pkg/core/voice/tts"
)

// fakeSynth returns canned mu-law audio per text, after an optional delay.
type fakeSynth struct {
	mu       sync.Mutex
	audio    map[string][]byte
	failures map[string]error
	delay    time.Duration
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string, _ tts.SynthesizeOptions) (*tts.Synthesis, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[text]; ok {
		return nil, err
	}
	buf, ok := f.audio[text]
	if !ok {
		buf = make([]byte, 16)
		for i := range buf {
			buf[i] = mulawSilence
		}
	}
	return &tts.Synthesis{
		Audio:  buf,
		Format: tts.Format{Encoding: tts.EncodingMulaw, SampleRate: 8000},
	}, nil
}

// playbackRecorder captures scheduler callbacks thread-safely.
type playbackRecorder struct {
	mu      sync.Mutex
	frames  [][]byte
	started []string
	done    []string
	drained int
	errs    []error
}

func (r *playbackRecorder) callbacks() SchedulerCallbacks {
	return SchedulerCallbacks{
		OnFrame: func(frame []byte) {
			r.mu.Lock()
			r.frames = append(r.frames, frame)
			r.mu.Unlock()
		},
		OnItemStart: func(text string) {
			r.mu.Lock()
			r.started = append(r.started, text)
			r.mu.Unlock()
		},
		OnItemDone: func(text string) {
			r.mu.Lock()
			r.done = append(r.done, text)
			r.mu.Unlock()
		},
		OnDrained: func() {
			r.mu.Lock()
			r.drained++
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *playbackRecorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func fastPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		FrameBytes:      4,
		FrameIntervalMs: 1,
		FadeInMs:        1,
		SafetyMarginMs:  2000,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestScheduler_FIFOOrdering(t *testing.T) {
	rec := &playbackRecorder{}
	s := NewScheduler(fastPlaybackConfig(), &fakeSynth{}, tts.SynthesizeOptions{}, rec.callbacks(), nil)
	s.Start()
	defer s.Close()

	h1 := s.Enqueue("first")
	h2 := s.Enqueue("second")
	h3 := s.Enqueue("third")

	for _, h := range []*PlaybackHandle{h1, h2, h3} {
		select {
		case <-h.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("item did not resolve")
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, rec.started)
	assert.Equal(t, []string{"first", "second", "third"}, rec.done)
	assert.GreaterOrEqual(t, rec.drained, 1)
}

func TestScheduler_FramePadding(t *testing.T) {
	synth := &fakeSynth{audio: map[string][]byte{
		"hi": {0x80, 0x80, 0x80, 0x80, 0x80, 0x80}, // 6 bytes, frame size 4
	}}
	rec := &playbackRecorder{}
	s := NewScheduler(fastPlaybackConfig(), synth, tts.SynthesizeOptions{}, rec.callbacks(), nil)
	s.Start()
	defer s.Close()

	h := s.Enqueue("hi")
	<-h.Done()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.frames, 2)
	assert.Len(t, rec.frames[0], 4)
	assert.Len(t, rec.frames[1], 4)
	assert.Equal(t, byte(mulawSilence), rec.frames[1][2], "tail must be padded with silence")
	assert.Equal(t, byte(mulawSilence), rec.frames[1][3], "tail must be padded with silence")
}

func TestScheduler_CancelAllStopsFramesAndResolves(t *testing.T) {
	big := make([]byte, 4000) // 1000 frames, ~1s at 1ms pacing
	for i := range big {
		big[i] = 0x80
	}
	synth := &fakeSynth{audio: map[string][]byte{"long": big}}
	rec := &playbackRecorder{}
	s := NewScheduler(fastPlaybackConfig(), synth, tts.SynthesizeOptions{}, rec.callbacks(), nil)
	s.Start()
	defer s.Close()

	h1 := s.Enqueue("long")
	h2 := s.Enqueue("queued")

	waitFor(t, func() bool { return rec.frameCount() > 2 }, "no frames before cancel")

	s.CancelAll()
	after := rec.frameCount()

	// Both items resolve rather than fail.
	select {
	case <-h1.Done():
	case <-time.After(time.Second):
		t.Fatal("playing item did not resolve after cancel")
	}
	select {
	case <-h2.Done():
	case <-time.After(time.Second):
		t.Fatal("queued item did not resolve after cancel")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, rec.frameCount(), "frames emitted after CancelAll returned")
}

func TestScheduler_SynthesisFailureReportsAndContinues(t *testing.T) {
	boom := errors.New("vendor down")
	synth := &fakeSynth{failures: map[string]error{"bad": boom}}
	rec := &playbackRecorder{}
	s := NewScheduler(fastPlaybackConfig(), synth, tts.SynthesizeOptions{}, rec.callbacks(), nil)
	s.Start()
	defer s.Close()

	<-s.Enqueue("bad").Done()
	<-s.Enqueue("good").Done()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], boom)
	assert.Equal(t, []string{"good"}, rec.done, "queue must keep moving after a failure")
}

func TestScheduler_EnqueueAfterCloseResolvesImmediately(t *testing.T) {
	rec := &playbackRecorder{}
	s := NewScheduler(fastPlaybackConfig(), &fakeSynth{}, tts.SynthesizeOptions{}, rec.callbacks(), nil)
	s.Start()
	s.Close()

	select {
	case <-s.Enqueue("late").Done():
	case <-time.After(time.Second):
		t.Fatal("post-close enqueue must resolve immediately")
	}
}
