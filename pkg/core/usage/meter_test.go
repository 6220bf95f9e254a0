package usage

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRates() Rates {
	return Rates{
		STTPerMinute:        decimal.RequireFromString("0.006"),
		LLMInputPerMillion:  decimal.RequireFromString("0.15"),
		LLMOutputPerMillion: decimal.RequireFromString("0.60"),
		TTSPerMillionChars:  decimal.RequireFromString("15"),
	}
}

func TestMeter_ZeroValue(t *testing.T) {
	var m Meter

	snap := m.Snapshot(testRates())
	assert.Zero(t, snap.STTSeconds)
	assert.Zero(t, snap.LLMInputTokens)
	assert.Zero(t, snap.LLMOutputTokens)
	assert.Zero(t, snap.TTSCharacters)
	assert.True(t, snap.Cost.IsZero())
}

func TestMeter_Snapshot(t *testing.T) {
	var m Meter
	m.AddSTTMillis(90_000) // 1.5 minutes
	m.AddLLMTokens(2_000_000, 1_000_000)
	m.AddTTSChars(500_000)

	snap := m.Snapshot(testRates())

	assert.InDelta(t, 90.0, snap.STTSeconds, 1e-9)
	assert.Equal(t, int64(2_000_000), snap.LLMInputTokens)
	assert.Equal(t, int64(1_000_000), snap.LLMOutputTokens)
	assert.Equal(t, int64(500_000), snap.TTSCharacters)

	// 1.5*0.006 + 2*0.15 + 1*0.60 + 0.5*15 = 0.009 + 0.3 + 0.6 + 7.5
	want := decimal.RequireFromString("8.409")
	assert.True(t, snap.Cost.Equal(want), "cost %s, want %s", snap.Cost, want)
}

func TestMeter_ConcurrentWriters(t *testing.T) {
	var m Meter
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.AddSTTMillis(20)
				m.AddLLMTokens(3, 7)
				m.AddTTSChars(5)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot(testRates())
	assert.InDelta(t, 20.0, snap.STTSeconds, 1e-9)
	assert.Equal(t, int64(3000), snap.LLMInputTokens)
	assert.Equal(t, int64(7000), snap.LLMOutputTokens)
	assert.Equal(t, int64(5000), snap.TTSCharacters)
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))

	n := EstimateTokens("the quick brown fox jumps over the lazy dog")
	require.Greater(t, n, int64(0))
	assert.LessOrEqual(t, n, int64(15), "short sentence should be a handful of tokens")
}
