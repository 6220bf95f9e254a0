package audio

import (
	"fmt"

	"github.com/voicewire-ai/voicewire/pkg/core"
)

// ApplyFadeIn multiplies the first durationMs of samples by a squared ease-in
// ramp to remove the discontinuity click at synthesis onset. Bytes beyond the
// fade window are returned unchanged. sampleWidthBits selects the sample
// format: 16 for linear PCM, 8 for mu-law (each byte is expanded, scaled and
// re-companded). The result is clamped to the sample format's range.
func ApplyFadeIn(buf []byte, durationMs, sampleRate, sampleWidthBits int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, core.NewCodecError(fmt.Sprintf("invalid sample rate %d", sampleRate))
	}
	if durationMs < 0 {
		return nil, core.NewCodecError(fmt.Sprintf("negative fade duration %dms", durationMs))
	}

	switch sampleWidthBits {
	case 16:
		if len(buf)%2 != 0 {
			return nil, core.NewCodecError("odd-length pcm buffer")
		}
		out := make([]byte, len(buf))
		copy(out, buf)
		fadeSamples := sampleRate * durationMs / 1000
		for i := 0; i < fadeSamples && 2*i+1 < len(out); i++ {
			sample := int16(out[2*i]) | int16(out[2*i+1])<<8
			scaled := scaleSample(sample, i, fadeSamples)
			out[2*i] = byte(scaled)
			out[2*i+1] = byte(scaled >> 8)
		}
		return out, nil

	case 8:
		out := make([]byte, len(buf))
		copy(out, buf)
		fadeSamples := sampleRate * durationMs / 1000
		for i := 0; i < fadeSamples && i < len(out); i++ {
			sample := DecodeMulawSample(out[i])
			out[i] = EncodeMulawSample(scaleSample(sample, i, fadeSamples))
		}
		return out, nil

	default:
		return nil, core.NewCodecError(fmt.Sprintf("unsupported sample width %d bits", sampleWidthBits))
	}
}

// scaleSample applies gain (i/n)^2 to one sample with clamping.
func scaleSample(sample int16, i, n int) int16 {
	if n <= 0 {
		return sample
	}
	ratio := float64(i) / float64(n)
	v := float64(sample) * ratio * ratio
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
