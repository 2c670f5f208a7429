package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamsVariants(t *testing.T) {
	cons := DefaultParams("btcusdt", VariantConservative)
	assert.Equal(t, "BTCUSDT", cons.Symbol)
	assert.Equal(t, 0.0004, cons.HybridVolThresholdPct)
	assert.Equal(t, 0.40, cons.BBBandMin)
	assert.Equal(t, 300, cons.CooldownSeconds)

	sel := DefaultParams("ETHUSDT", VariantSelective)
	assert.Equal(t, 0.0008, sel.HybridVolThresholdPct)
	assert.Equal(t, 0.48, sel.BBBandMin)
	assert.Equal(t, 0.52, sel.BBBandMax)

	agg := DefaultParams("SOLUSDT", VariantAggressive)
	assert.Equal(t, 0.0002, agg.HybridVolThresholdPct)
	assert.Equal(t, 180, agg.CooldownSeconds)

	for _, p := range []CoinParams{cons, sel, agg} {
		require.NoError(t, p.Validate())
	}
}

func TestCoinParamsValidate(t *testing.T) {
	base := DefaultParams("BTCUSDT", VariantConservative)

	cases := []struct {
		name   string
		mutate func(*CoinParams)
	}{
		{"band min above max", func(p *CoinParams) { p.BBBandMin = 0.7; p.BBBandMax = 0.3 }},
		{"band outside unit interval", func(p *CoinParams) { p.BBBandMin = -0.1 }},
		{"hard stop multiplier below one", func(p *CoinParams) { p.HardStopATRMultiplier = 0.5 }},
		{"zero loss floor", func(p *CoinParams) { p.MinLossFloorPct = 0 }},
		{"zero hybrid threshold", func(p *CoinParams) { p.HybridVolThresholdPct = 0 }},
		{"zero bandwidth threshold", func(p *CoinParams) { p.BBBandwidthThreshold = 0 }},
		{"oversized position fraction", func(p *CoinParams) { p.PositionSizeFraction = 1.5 }},
		{"zero leverage", func(p *CoinParams) { p.Leverage = 0 }},
		{"negative cooldown", func(p *CoinParams) { p.CooldownSeconds = -1 }},
		{"unknown variant", func(p *CoinParams) { p.StrategyVariant = "yolo" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestLoadCoinParamsMissingFileFallsBack(t *testing.T) {
	params, err := LoadCoinParams(filepath.Join(t.TempDir(), "absent.yaml"), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, VariantConservative, params["BTCUSDT"].StrategyVariant)
}

func TestLoadCoinParamsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coins.yaml")
	yaml := `coins:
  - symbol: btcusdt
    strategy_variant: selective
    leverage: 5
    min_strength: 0.6
  - symbol: DOGEUSDT
    strategy_variant: aggressive
    excluded: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	params, err := LoadCoinParams(path, []string{"BTCUSDT", "DOGEUSDT", "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, params, 3)

	btc := params["BTCUSDT"]
	assert.Equal(t, VariantSelective, btc.StrategyVariant)
	assert.Equal(t, 5, btc.Leverage)
	assert.Equal(t, 0.6, btc.MinStrength)
	// Untouched fields keep the selective preset.
	assert.Equal(t, 0.0008, btc.HybridVolThresholdPct)

	assert.True(t, params["DOGEUSDT"].Excluded)
	// Symbol absent from the file gets the conservative preset.
	assert.Equal(t, VariantConservative, params["ETHUSDT"].StrategyVariant)
}

func TestLoadCoinParamsDuplicateSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coins.yaml")
	yaml := `coins:
  - symbol: BTCUSDT
  - symbol: btcusdt
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := LoadCoinParams(path, []string{"BTCUSDT"})
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoadCoinParamsInvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coins.yaml")
	yaml := `coins:
  - symbol: BTCUSDT
    bb_band_min: 0.9
    bb_band_max: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := LoadCoinParams(path, []string{"BTCUSDT"})
	assert.Error(t, err)
}
