package pricing

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

func newDefaultTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(DefaultEntries(), 1.8, 0.01)
	require.NoError(t, err)
	return tbl
}

func TestCreditsFor(t *testing.T) {
	tbl := newDefaultTable(t)

	cases := []struct {
		usd  float64
		want int64
	}{
		{0, 1},        // floor
		{0.002, 1},    // 0.36 -> 1
		{0.04, 8},     // 7.2 -> 8
		{0.05, 9},     // exactly 9, float noise must not push it to 10
		{0.003, 1},    // 0.54 -> 1
		{0.1, 18},     // 18
		{0.0999, 18},  // 17.982 -> 18
		{1.0001, 181}, // 180.018 -> 181
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tbl.CreditsFor(tc.usd), "usd=%v", tc.usd)
	}
}

func TestCreditsFor_SaturatesHugeEstimates(t *testing.T) {
	tbl := newDefaultTable(t)

	assert.Equal(t, int64(math.MaxInt64), tbl.CreditsFor(1e300))
	assert.Equal(t, int64(math.MaxInt64), tbl.CreditsFor(math.Inf(1)))
	assert.Equal(t, int64(1), tbl.CreditsFor(math.NaN()))

	credits, usd, err := tbl.Charge(provider.KindTTS, "elevenlabs", Quantity{Seconds: 1e300})
	require.NoError(t, err)
	assert.Greater(t, usd, 1e290)
	assert.Equal(t, int64(math.MaxInt64), credits)
}

func TestNew_RejectsBadConstants(t *testing.T) {
	_, err := New(DefaultEntries(), 0, 0.01)
	assert.Error(t, err)
	_, err = New(DefaultEntries(), 1.8, 0)
	assert.Error(t, err)
	_, err = New(Entries{provider.KindChat: {"x": {Unit: UnitToken, UnitCost: -1}}}, 1, 1)
	assert.Error(t, err)
}

func TestEstimateCost_PerUnit(t *testing.T) {
	tbl := newDefaultTable(t)

	usd, err := tbl.EstimateCost(provider.KindImage, "openai", Quantity{Images: 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.12, usd, 1e-12)

	usd, err = tbl.EstimateCost(provider.KindTTS, "elevenlabs", Quantity{Seconds: 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.003, usd, 1e-12)

	usd, err = tbl.EstimateCost(provider.KindMusic, "stability", Quantity{})
	require.NoError(t, err)
	assert.InDelta(t, 0.05, usd, 1e-12, "missing clip count bills one clip")
}

func TestEstimateCost_ChatMinimum(t *testing.T) {
	tbl := newDefaultTable(t)

	usd, err := tbl.EstimateCost(provider.KindChat, "gemini", Quantity{Tokens: 100000})
	require.NoError(t, err)
	assert.InDelta(t, 0.002, usd, 1e-12)

	usd, err = tbl.EstimateCost(provider.KindChat, "anthropic", Quantity{Tokens: 1000})
	require.NoError(t, err)
	assert.InDelta(t, 0.015, usd, 1e-12)
}

func TestEstimateCost_UnknownPair(t *testing.T) {
	tbl := newDefaultTable(t)

	_, err := tbl.EstimateCost(provider.KindTTS, "openai", Quantity{})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestQuantityFor(t *testing.T) {
	chat := &provider.Request{
		Kind:      provider.KindChat,
		MaxTokens: 100,
		Payload: map[string]any{
			"messages": []any{map[string]any{"role": "user", "content": "12345678"}},
		},
	}
	// 3 request overhead + 8/4 + 4 message overhead + 100 max tokens
	assert.Equal(t, Quantity{Tokens: 109}, QuantityFor(chat))

	gem := &provider.Request{
		Kind: provider.KindChat,
		Payload: map[string]any{
			"contents": []any{map[string]any{"parts": []any{map[string]any{"text": "abcdefgh"}}}},
		},
	}
	assert.Equal(t, Quantity{Tokens: 9}, QuantityFor(gem))

	assert.Equal(t, Quantity{Images: 2}, QuantityFor(&provider.Request{Kind: provider.KindImage, Count: 2}))
	assert.Equal(t, Quantity{Seconds: 12}, QuantityFor(&provider.Request{Kind: provider.KindTTS, Seconds: 12}))
	assert.Equal(t, Quantity{Clips: 4}, QuantityFor(&provider.Request{Kind: provider.KindMusic, Count: 4}))
}

func TestCharge_DefaultsMatchFlatRates(t *testing.T) {
	tbl := newDefaultTable(t)

	credits, _, err := tbl.Charge(provider.KindChat, "openai", Quantity{Tokens: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), credits)

	credits, _, err = tbl.Charge(provider.KindImage, "openai", Quantity{Images: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(8), credits)
}

func TestLoadFile_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  chat:
    openai: {unit: token, unit_cost: 0.00001, minimum: 0.01}
  music:
    udio: {unit: clip, unit_cost: 0.07}
`), 0o600))

	entries, err := LoadFile(path, DefaultEntries())
	require.NoError(t, err)

	assert.Equal(t, Entry{Unit: UnitToken, UnitCost: 0.00001, Minimum: 0.01}, entries[provider.KindChat]["openai"])
	assert.Equal(t, Entry{Unit: UnitClip, UnitCost: 0.07}, entries[provider.KindMusic]["udio"])
	assert.Contains(t, entries[provider.KindChat], "anthropic")
}

func TestLoadFile_RejectsUnknownUnit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  chat:
    openai: {unit: furlong, unit_cost: 1}
`), 0o600))

	_, err := LoadFile(path, DefaultEntries())
	assert.Error(t, err)
}
