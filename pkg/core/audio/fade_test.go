package audio

import (
	"bytes"
	"testing"

	"github.com/voicewire-ai/voicewire/pkg/core"
)

func TestApplyFadeIn_PCM16(t *testing.T) {
	// 100 samples of full-positive at 1000 Hz, 50ms fade = 50 samples.
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = 16000
	}
	in := pcmFromSamples(samples)

	out, err := ApplyFadeIn(in, 50, 1000, 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("length changed: %d -> %d", len(in), len(out))
	}

	// First sample fully attenuated.
	if got := int16(out[0]) | int16(out[1])<<8; got != 0 {
		t.Errorf("first sample = %d, want 0", got)
	}

	// Ramp is monotonically non-decreasing inside the window.
	prev := int16(0)
	for i := 0; i < 50; i++ {
		s := int16(out[2*i]) | int16(out[2*i+1])<<8
		if s < prev {
			t.Fatalf("ramp decreased at sample %d: %d < %d", i, s, prev)
		}
		prev = s
	}

	// Bytes beyond the fade window are untouched.
	if !bytes.Equal(out[100:], in[100:]) {
		t.Error("samples beyond the fade window were altered")
	}

	// Input buffer unmodified.
	if int16(in[0])|int16(in[1])<<8 != 16000 {
		t.Error("input buffer was mutated")
	}
}

func TestApplyFadeIn_Mulaw(t *testing.T) {
	// 80 mu-law bytes at 8 kHz; a 5ms fade covers the first 40.
	loud := EncodeMulawSample(20000)
	in := bytes.Repeat([]byte{loud}, 80)

	out, err := ApplyFadeIn(in, 5, 8000, 8)
	if err != nil {
		t.Fatal(err)
	}

	// First byte attenuated to silence.
	if DecodeMulawSample(out[0]) != 0 {
		t.Errorf("first byte decodes to %d, want 0", DecodeMulawSample(out[0]))
	}

	// A byte near the end of the window is quieter than the original.
	mid := DecodeMulawSample(out[20])
	if mid <= 0 || mid >= 20000 {
		t.Errorf("mid-window sample = %d, want (0, 20000)", mid)
	}

	// Bytes beyond the window untouched.
	if !bytes.Equal(out[40:], in[40:]) {
		t.Error("bytes beyond the fade window were altered")
	}
}

func TestApplyFadeIn_SilencePreserved(t *testing.T) {
	in := bytes.Repeat([]byte{0xFF}, 160) // mu-law silence
	out, err := ApplyFadeIn(in, 20, 8000, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, in) {
		t.Error("fade altered mu-law silence")
	}
}

func TestApplyFadeIn_Invalid(t *testing.T) {
	if _, err := ApplyFadeIn([]byte{0, 0}, 10, 0, 16); core.TypeOf(err) != core.ErrCodec {
		t.Errorf("zero rate: expected codec error, got %v", err)
	}
	if _, err := ApplyFadeIn([]byte{0, 0, 0}, 10, 8000, 16); core.TypeOf(err) != core.ErrCodec {
		t.Errorf("odd pcm: expected codec error, got %v", err)
	}
	if _, err := ApplyFadeIn([]byte{0, 0}, 10, 8000, 12); core.TypeOf(err) != core.ErrCodec {
		t.Errorf("bad width: expected codec error, got %v", err)
	}
}
