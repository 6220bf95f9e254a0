package call

import (
	"strings"
	"sync"
	"unicode"
)

// sentenceTerminators are the runes that can end a sentence, including the
// right-to-left and CJK terminal punctuation emitted for non-Latin
// responses.
const sentenceTerminators = ".!?؟۔。！？"

// abbreviations are trailing tokens whose period does not end a sentence.
var abbreviations = map[string]struct{}{
	"mr":     {},
	"mrs":    {},
	"ms":     {},
	"dr":     {},
	"prof":   {},
	"st":     {},
	"vs":     {},
	"etc":    {},
	"e.g":    {},
	"i.e":    {},
	"no":     {},
	"approx": {},
}

// SentenceBuffer accumulates model text deltas and emits complete
// sentences so the first sentence can start speaking before the full
// response is generated. A sentence is released when a terminator is seen
// at a real sentence boundary and the buffered text has reached the
// minimum length; shorter fragments keep buffering so the synthesizer is
// not fed two-word clips.
type SentenceBuffer struct {
	mu     sync.Mutex
	text   strings.Builder
	minLen int
}

// NewSentenceBuffer creates a buffer that holds sentences until they reach
// minLen runes. Zero minLen uses the default of 20.
func NewSentenceBuffer(minLen int) *SentenceBuffer {
	if minLen == 0 {
		minLen = 20
	}
	return &SentenceBuffer{minLen: minLen}
}

// Add appends a text delta and returns any sentences now complete, in
// order. Returns nil while more text should be buffered.
func (b *SentenceBuffer) Add(delta string) []string {
	if delta == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.text.WriteString(delta)
	content := b.text.String()

	var out []string
	for {
		cut := sentenceEnd(content, b.minLen)
		if cut < 0 {
			break
		}
		sentence := strings.TrimSpace(content[:cut])
		content = strings.TrimLeft(content[cut:], " \n\t")
		if sentence != "" {
			out = append(out, sentence)
		}
	}

	b.text.Reset()
	b.text.WriteString(content)
	return out
}

// Flush returns any remaining buffered text and resets the buffer. Call
// when the model stream ends.
func (b *SentenceBuffer) Flush() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := strings.TrimSpace(b.text.String())
	b.text.Reset()
	return result
}

// Reset clears the buffer without returning content. Call on barge-in.
func (b *SentenceBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
}

// sentenceEnd returns the byte offset just past the first terminator that
// ends a sentence of at least minLen runes, or -1.
func sentenceEnd(s string, minLen int) int {
	runes := 0
	for i, r := range s {
		runes++
		if !strings.ContainsRune(sentenceTerminators, r) {
			continue
		}
		if runes < minLen {
			continue
		}
		if r == '.' && !periodEndsSentence(s, i) {
			continue
		}
		return i + len(string(r))
	}
	return -1
}

// periodEndsSentence rejects periods inside decimals and after known
// abbreviations.
func periodEndsSentence(s string, i int) bool {
	// Decimal point: digit on both sides.
	if i > 0 && i+1 < len(s) {
		if unicode.IsDigit(rune(s[i-1])) && unicode.IsDigit(rune(s[i+1])) {
			return false
		}
	}

	// Walk back to the start of the preceding word.
	start := i
	for start > 0 {
		r := rune(s[start-1])
		if r == ' ' || r == '\n' || r == '\t' {
			break
		}
		start--
	}
	word := strings.ToLower(strings.TrimRight(s[start:i], "."))
	if _, ok := abbreviations[word]; ok {
		return false
	}

	// A single capital letter is an initial ("J. Smith").
	if i-start == 1 && unicode.IsUpper(rune(s[start])) {
		return false
	}

	return true
}
