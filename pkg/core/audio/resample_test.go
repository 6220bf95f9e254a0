package audio

import (
	"bytes"
	"testing"

	"github.com/voicewire-ai/voicewire/pkg/core"
)

func pcmFromSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

func TestResample_Halve(t *testing.T) {
	in := pcmFromSamples([]int16{10, 20, 30, 40, 50, 60, 70, 80})

	out, err := Resample(in, 16000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	want := pcmFromSamples([]int16{10, 30, 50, 70})
	if !bytes.Equal(out, want) {
		t.Errorf("Resample 16k->8k = % x, want % x", out, want)
	}
}

func TestResample_RationalRatio(t *testing.T) {
	// 22050 -> 8000 over one second of input.
	in := make([]byte, 22050*2)
	out, err := Resample(in, 22050, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 8000*2 {
		t.Errorf("expected 8000 samples, got %d", len(out)/2)
	}
}

func TestResample_Deterministic(t *testing.T) {
	in := pcmFromSamples([]int16{5, -5, 100, -100, 2000, -2000, 31000, -31000, 7, 9, 11})

	a, err := Resample(in, 22050, 8000)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Resample(in, 22050, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("resampling the same buffer twice produced different output")
	}
}

func TestResample_SameRateCopies(t *testing.T) {
	in := pcmFromSamples([]int16{1, 2, 3})
	out, err := Resample(in, 8000, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, in) {
		t.Error("same-rate resample altered data")
	}
	out[0] = 0xAA
	if in[0] == 0xAA {
		t.Error("same-rate resample aliased input buffer")
	}
}

func TestResample_Invalid(t *testing.T) {
	if _, err := Resample([]byte{1, 2}, 0, 8000); core.TypeOf(err) != core.ErrCodec {
		t.Errorf("zero src rate: expected codec error, got %v", err)
	}
	if _, err := Resample([]byte{1, 2}, 16000, 0); core.TypeOf(err) != core.ErrCodec {
		t.Errorf("zero dst rate: expected codec error, got %v", err)
	}
	if _, err := Resample([]byte{1, 2, 3}, 16000, 8000); core.TypeOf(err) != core.ErrCodec {
		t.Errorf("odd length: expected codec error, got %v", err)
	}
}
