package usage

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens estimates the token count of text for usage accounting
// when a provider drops the stream before reporting exact usage. Uses the
// cl100k_base encoding when available; otherwise falls back to the
// character-count heuristic of one token per four bytes, which deliberately
// under-estimates so billing never overcharges on a failed turn.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return int64(len(encoding.Encode(text, nil, nil)))
	}
	return int64(len(text) / 4)
}
