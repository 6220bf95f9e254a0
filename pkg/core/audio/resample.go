package audio

import (
	"fmt"

	"github.com/voicewire-ai/voicewire/pkg/core"
)

// Resample converts a 16-bit little-endian mono PCM buffer from srcRate to
// dstRate by nearest-sample selection: output sample i maps to input sample
// floor(i*srcRate/dstRate). Pure integer math, so resampling the same buffer
// twice yields byte-identical output. Synthesis engines deliver 16, 22.05 or
// 24 kHz; the wire wants 8 kHz, so this is almost always decimation.
func Resample(pcm []byte, srcRate, dstRate int) ([]byte, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, core.NewCodecError(fmt.Sprintf("invalid sample rate %d -> %d", srcRate, dstRate))
	}
	if len(pcm)%2 != 0 {
		return nil, core.NewCodecError("odd-length pcm buffer")
	}
	if srcRate == dstRate {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	srcSamples := len(pcm) / 2
	dstSamples := srcSamples * dstRate / srcRate
	out := make([]byte, dstSamples*2)

	for i := 0; i < dstSamples; i++ {
		src := i * srcRate / dstRate
		out[2*i] = pcm[2*src]
		out[2*i+1] = pcm[2*src+1]
	}

	return out, nil
}
