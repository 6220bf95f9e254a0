package audio

import "sync"

// Buffer is a bounded rolling window of call audio. Writes past the
// capacity discard the oldest bytes, so the buffer always holds the most
// recent maxDurationMs of the stream. Used to track the caller's recent
// input level without retaining the whole call.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	maxBytes int
	cfg      Config
}

// NewBuffer creates a buffer holding up to maxDurationMs of audio in the
// given format.
func NewBuffer(cfg Config, maxDurationMs int) *Buffer {
	maxBytes := cfg.BytesForDurationMs(maxDurationMs)
	return &Buffer{
		data:     make([]byte, 0, maxBytes),
		maxBytes: maxBytes,
		cfg:      cfg,
	}
}

// Write appends audio, discarding the oldest bytes past capacity.
func (b *Buffer) Write(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, frame...)
	if len(b.data) > b.maxBytes {
		b.data = b.data[len(b.data)-b.maxBytes:]
	}
}

// Bytes returns a copy of the buffered audio.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Last returns a copy of the most recent durationMs of audio.
func (b *Buffer) Last(durationMs int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.cfg.BytesForDurationMs(durationMs)
	if n > len(b.data) {
		n = len(b.data)
	}
	out := make([]byte, n)
	copy(out, b.data[len(b.data)-n:])
	return out
}

// Energy returns the RMS energy of the most recent windowMs of audio,
// normalized to 0..1. Mu-law content is expanded to linear PCM first.
func (b *Buffer) Energy(windowMs int) float64 {
	window := b.Last(windowMs)
	if b.cfg.BitsPerSample == 8 {
		window = DecodeMulaw(window)
	}
	return RMSEnergy(window)
}

// Len returns the buffered byte count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// DurationMs returns the buffered duration in milliseconds.
func (b *Buffer) DurationMs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.DurationMs(len(b.data))
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}
