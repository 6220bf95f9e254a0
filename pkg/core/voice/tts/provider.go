// Package tts defines the speech-synthesis strategy interface used by the
// playback scheduler. Concrete vendor clients live outside the engine; the
// orchestrator is written against Synthesizer only.
package tts

import (
	"context"
)

// Encoding identifies the raw byte layout of synthesized audio.
type Encoding string

const (
	// EncodingPCM16 is 16-bit signed little-endian linear PCM.
	EncodingPCM16 Encoding = "pcm_s16le"
	// EncodingMulaw is 8-bit G.711 mu-law.
	EncodingMulaw Encoding = "pcm_mulaw"
)

// Format describes the audio a synthesizer produces. Engines deliver linear
// PCM at 16/22.05/24 kHz or mu-law at 8/16 kHz; the playback scheduler
// normalizes everything to 8 kHz mu-law.
type Format struct {
	Encoding   Encoding `json:"encoding"`
	SampleRate int      `json:"sample_rate"`
}

// SynthesizeOptions configures one synthesis request.
type SynthesizeOptions struct {
	Voice    string  // Voice identifier, vendor-specific
	Language string  // Language hint, ISO code
	Speed    float64 // Speed multiplier, 0 means vendor default
}

// Synthesis is the result of synthesizing one utterance.
type Synthesis struct {
	Audio  []byte
	Format Format
}

// Synthesizer is the strategy interface for text-to-speech engines.
// Implementations must be safe for serialized use by one session; the
// playback scheduler never issues overlapping calls.
type Synthesizer interface {
	// Name returns the engine identifier.
	Name() string

	// Synthesize converts text to audio. The context is cancelled on
	// barge-in; implementations must abandon work promptly.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}
