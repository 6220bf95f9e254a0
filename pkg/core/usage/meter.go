// Package usage accumulates per-session consumption counters for billing:
// STT audio seconds, LLM tokens, and TTS characters. Writers use atomic
// increments so readers can snapshot at any time without locking.
package usage

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Meter holds one session's counters. The zero value is ready to use.
type Meter struct {
	sttMillis    atomic.Int64
	llmInTokens  atomic.Int64
	llmOutTokens atomic.Int64
	ttsChars     atomic.Int64
}

// AddSTTMillis records transcribed audio time.
func (m *Meter) AddSTTMillis(ms int64) {
	m.sttMillis.Add(ms)
}

// AddLLMTokens records model input/output token usage.
func (m *Meter) AddLLMTokens(input, output int64) {
	m.llmInTokens.Add(input)
	m.llmOutTokens.Add(output)
}

// AddTTSChars records synthesized characters.
func (m *Meter) AddTTSChars(n int64) {
	m.ttsChars.Add(n)
}

// Rates holds provider-specific cost rates.
type Rates struct {
	// STTPerMinute is the transcription cost per audio minute.
	STTPerMinute decimal.Decimal `json:"stt_per_minute"`

	// LLMInputPerMillion / LLMOutputPerMillion are token costs per 1M.
	LLMInputPerMillion  decimal.Decimal `json:"llm_input_per_million"`
	LLMOutputPerMillion decimal.Decimal `json:"llm_output_per_million"`

	// TTSPerMillionChars is the synthesis cost per 1M characters.
	TTSPerMillionChars decimal.Decimal `json:"tts_per_million_chars"`
}

// Snapshot is a point-in-time read of the counters with computed cost.
type Snapshot struct {
	STTSeconds      float64         `json:"stt_seconds"`
	LLMInputTokens  int64           `json:"llm_input_tokens"`
	LLMOutputTokens int64           `json:"llm_output_tokens"`
	TTSCharacters   int64           `json:"tts_characters"`
	Cost            decimal.Decimal `json:"cost"`
}

// Snapshot reads the counters and applies the given rates. Safe to call
// concurrently with writers; each counter is read atomically.
func (m *Meter) Snapshot(r Rates) Snapshot {
	sttMillis := m.sttMillis.Load()
	in := m.llmInTokens.Load()
	out := m.llmOutTokens.Load()
	chars := m.ttsChars.Load()

	million := decimal.NewFromInt(1_000_000)

	sttCost := decimal.NewFromInt(sttMillis).
		Div(decimal.NewFromInt(60_000)).
		Mul(r.STTPerMinute)
	llmCost := decimal.NewFromInt(in).Div(million).Mul(r.LLMInputPerMillion).
		Add(decimal.NewFromInt(out).Div(million).Mul(r.LLMOutputPerMillion))
	ttsCost := decimal.NewFromInt(chars).Div(million).Mul(r.TTSPerMillionChars)

	return Snapshot{
		STTSeconds:      float64(sttMillis) / 1000.0,
		LLMInputTokens:  in,
		LLMOutputTokens: out,
		TTSCharacters:   chars,
		Cost:            sttCost.Add(llmCost).Add(ttsCost),
	}
}
