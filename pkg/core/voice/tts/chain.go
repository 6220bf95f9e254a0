package tts

import (
	"context"
	"fmt"

	"github.com/voicewire-ai/voicewire/pkg/core"
)

// Chain is a Synthesizer that tries each engine in order, falling back to
// the next on failure. Sessions are configured with a primary engine plus an
// alternate so a vendor outage degrades voice quality instead of producing
// silence.
type Chain struct {
	engines []Synthesizer
}

// NewChain creates a fallback chain. At least one engine is required.
func NewChain(engines ...Synthesizer) (*Chain, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("tts chain requires at least one engine")
	}
	return &Chain{engines: engines}, nil
}

// Name returns the primary engine's name.
func (c *Chain) Name() string {
	return c.engines[0].Name()
}

// Synthesize tries each engine in order and returns the first success.
// Context cancellation stops the chain immediately; it is barge-in, not a
// vendor failure.
func (c *Chain) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	var lastErr error
	for _, engine := range c.engines {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		synth, err := engine.Synthesize(ctx, text, opts)
		if err == nil {
			return synth, nil
		}
		lastErr = err
	}
	return nil, core.NewConnectError("tts", lastErr)
}
