package audio

import (
	"github.com/voicewire-ai/voicewire/pkg/core"
)

// G.711 mu-law companding constants.
const (
	mulawBias = 0x84 // 132
	mulawClip = 32635
)

// EncodeMulawSample compands one 16-bit linear PCM sample to 8-bit mu-law
// per G.711: sign-magnitude, bias 132, clip 32635, 8 segments.
func EncodeMulawSample(sample int16) byte {
	s := int32(sample)
	sign := byte(0)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exp := byte(7)
	for mask := int32(0x4000); exp > 0 && s&mask == 0; mask >>= 1 {
		exp--
	}
	mant := byte((s >> (exp + 3)) & 0x0F)

	return ^(sign | exp<<4 | mant)
}

// DecodeMulawSample expands one 8-bit mu-law byte to 16-bit linear PCM.
func DecodeMulawSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F

	v := (int32(mant)<<3 + mulawBias) << exp
	v -= mulawBias

	if sign != 0 {
		return int16(-v)
	}
	return int16(v)
}

// MulawStep returns the quantization step size of the segment the sample was
// encoded into. The round-trip error of Encode/Decode is bounded by half this
// step (plus the clip loss above 32635).
func MulawStep(encoded byte) int32 {
	exp := (^encoded >> 4) & 0x07
	return 8 << exp
}

// EncodeMulaw compands a 16-bit little-endian PCM buffer to mu-law.
// The buffer must contain whole samples.
func EncodeMulaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, core.NewCodecError("odd-length pcm buffer")
	}
	out := make([]byte, len(pcm)/2)
	for i := 0; i < len(out); i++ {
		sample := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = EncodeMulawSample(sample)
	}
	return out, nil
}

// DecodeMulaw expands a mu-law buffer to 16-bit little-endian PCM.
func DecodeMulaw(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*2)
	for i, u := range ulaw {
		sample := DecodeMulawSample(u)
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}
