// Package audio provides the codec layer for the conversation engine:
// G.711 mu-law companding, sample-rate conversion, fade-in enveloping, and
// energy measurement over 16-bit linear PCM.
//
// All transforms are pure and deterministic. Malformed input (odd-length PCM
// buffers, non-positive sample rates) fails fast with a core.ErrCodec error.
package audio

import (
	"math"
)

// Config specifies audio format parameters.
type Config struct {
	// SampleRate in Hz. Telephony narrow-band is 8000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for linear PCM, 8 for mu-law.
	BitsPerSample int `json:"bits_per_sample"`
}

// TelephonyConfig returns the narrow-band mu-law configuration used on the
// wire: 8 kHz, mono, 8-bit.
func TelephonyConfig() Config {
	return Config{
		SampleRate:    8000,
		Channels:      1,
		BitsPerSample: 8,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c Config) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration.
func (c Config) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}

// RMSEnergy computes the root-mean-square energy of 16-bit signed
// little-endian PCM. Returns a value between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

// PeakAmplitude returns the maximum absolute amplitude in 16-bit PCM.
// Returns a value between 0.0 and 1.0.
func PeakAmplitude(pcm []byte) float64 {
	var maxAbs float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		// float64 avoids overflow when negating -32768
		abs := math.Abs(float64(sample))
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs / 32768.0
}
