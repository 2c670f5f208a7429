package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// StrategyVariant selects the threshold preset a symbol trades with.
// The rule shape is identical across variants; only the numbers (and the
// selective momentum confirmation) differ.
type StrategyVariant string

const (
	VariantConservative StrategyVariant = "conservative"
	VariantSelective    StrategyVariant = "selective"
	VariantAggressive   StrategyVariant = "aggressive"
)

// CoinParams are the per-symbol overrides loaded once at startup.
// All threshold fields are explicit here; the signal generator never falls
// back to global constants, which would silently filter out low-volatility
// symbols.
type CoinParams struct {
	Symbol          string          `yaml:"symbol"`
	Excluded        bool            `yaml:"excluded"`
	StrategyVariant StrategyVariant `yaml:"strategy_variant"`

	HybridVolThresholdPct float64 `yaml:"hybrid_vol_threshold_pct"` // e.g. 0.0004
	ATRVolThresholdPct    float64 `yaml:"atr_vol_threshold_pct"`    // e.g. 0.0015
	BBBandMin             float64 `yaml:"bb_band_min"`
	BBBandMax             float64 `yaml:"bb_band_max"`
	BBBandwidthThreshold  float64 `yaml:"bb_bandwidth_threshold"` // compression reference
	CooldownSeconds       int     `yaml:"cooldown_seconds"`
	PositionSizeFraction  float64 `yaml:"position_size_fraction"`
	Leverage              int     `yaml:"leverage"`
	HardStopATRMultiplier float64 `yaml:"hard_stop_atr_multiplier"`
	MinLossFloorPct       float64 `yaml:"min_loss_floor_pct"`
	MinStrength           float64 `yaml:"min_strength"`
}

// Validate checks the load-time invariants.
func (p *CoinParams) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("coin params: empty symbol")
	}
	if p.BBBandMin >= p.BBBandMax {
		return fmt.Errorf("%s: bb_band_min (%v) must be < bb_band_max (%v)", p.Symbol, p.BBBandMin, p.BBBandMax)
	}
	if p.BBBandMin < 0 || p.BBBandMax > 1 {
		return fmt.Errorf("%s: bb band window must lie within [0,1]", p.Symbol)
	}
	if p.HardStopATRMultiplier < 1.0 {
		return fmt.Errorf("%s: hard_stop_atr_multiplier must be >= 1.0", p.Symbol)
	}
	if p.MinLossFloorPct <= 0 {
		return fmt.Errorf("%s: min_loss_floor_pct must be > 0", p.Symbol)
	}
	if p.HybridVolThresholdPct <= 0 || p.ATRVolThresholdPct <= 0 {
		return fmt.Errorf("%s: volatility thresholds must be positive", p.Symbol)
	}
	if p.BBBandwidthThreshold <= 0 {
		return fmt.Errorf("%s: bb_bandwidth_threshold must be positive", p.Symbol)
	}
	if p.PositionSizeFraction <= 0 || p.PositionSizeFraction > 1 {
		return fmt.Errorf("%s: position_size_fraction must be in (0,1]", p.Symbol)
	}
	if p.Leverage < 1 {
		return fmt.Errorf("%s: leverage must be >= 1", p.Symbol)
	}
	if p.CooldownSeconds < 0 {
		return fmt.Errorf("%s: cooldown_seconds must be >= 0", p.Symbol)
	}
	switch p.StrategyVariant {
	case VariantConservative, VariantSelective, VariantAggressive:
	default:
		return fmt.Errorf("%s: unknown strategy_variant %q", p.Symbol, p.StrategyVariant)
	}
	return nil
}

// DefaultParams returns the preset for a variant. Thresholds are percent of
// price expressed as fractions (0.0004 = 0.04%).
func DefaultParams(symbol string, variant StrategyVariant) CoinParams {
	p := CoinParams{
		Symbol:               strings.ToUpper(symbol),
		StrategyVariant:      variant,
		BBBandwidthThreshold: 0.05,
		PositionSizeFraction: 0.1,
		Leverage:             10,

		HardStopATRMultiplier: 2.0,
		MinLossFloorPct:       0.01,
		MinStrength:           0.5,
	}
	switch variant {
	case VariantSelective:
		p.HybridVolThresholdPct = 0.0008
		p.ATRVolThresholdPct = 0.0030
		p.BBBandMin = 0.48
		p.BBBandMax = 0.52
		p.CooldownSeconds = 300
	case VariantAggressive:
		p.HybridVolThresholdPct = 0.0002
		p.ATRVolThresholdPct = 0.0010
		p.BBBandMin = 0.35
		p.BBBandMax = 0.65
		p.CooldownSeconds = 180
	default: // conservative
		p.StrategyVariant = VariantConservative
		p.HybridVolThresholdPct = 0.0004
		p.ATRVolThresholdPct = 0.0015
		p.BBBandMin = 0.40
		p.BBBandMax = 0.60
		p.CooldownSeconds = 300
	}
	return p
}

type coinParamsFile struct {
	Coins []CoinParams `yaml:"coins"`
}

// LoadCoinParams reads the per-symbol parameter file. Symbols from cfg that
// have no entry in the file get the conservative preset. Duplicate symbols
// are a load error.
func LoadCoinParams(path string, symbols []string) (map[string]CoinParams, error) {
	out := make(map[string]CoinParams, len(symbols))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Coin params file not found, using conservative defaults")
			for _, s := range symbols {
				out[s] = DefaultParams(s, VariantConservative)
			}
			return out, nil
		}
		return nil, fmt.Errorf("read coin params: %w", err)
	}

	var file coinParamsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse coin params: %w", err)
	}

	for _, raw := range file.Coins {
		sym := strings.ToUpper(raw.Symbol)
		if _, dup := out[sym]; dup {
			return nil, fmt.Errorf("coin params: duplicate symbol %s", sym)
		}
		p := DefaultParams(sym, raw.StrategyVariant)
		mergeParams(&p, raw)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[sym] = p
	}

	for _, s := range symbols {
		if _, ok := out[s]; !ok {
			out[s] = DefaultParams(s, VariantConservative)
		}
	}

	log.Info().Int("symbols", len(out)).Str("path", path).Msg("Coin parameters loaded")
	return out, nil
}

// mergeParams overlays explicitly set fields from raw onto the preset.
func mergeParams(p *CoinParams, raw CoinParams) {
	p.Excluded = raw.Excluded
	if raw.HybridVolThresholdPct != 0 {
		p.HybridVolThresholdPct = raw.HybridVolThresholdPct
	}
	if raw.ATRVolThresholdPct != 0 {
		p.ATRVolThresholdPct = raw.ATRVolThresholdPct
	}
	if raw.BBBandMin != 0 || raw.BBBandMax != 0 {
		p.BBBandMin = raw.BBBandMin
		p.BBBandMax = raw.BBBandMax
	}
	if raw.BBBandwidthThreshold != 0 {
		p.BBBandwidthThreshold = raw.BBBandwidthThreshold
	}
	if raw.CooldownSeconds != 0 {
		p.CooldownSeconds = raw.CooldownSeconds
	}
	if raw.PositionSizeFraction != 0 {
		p.PositionSizeFraction = raw.PositionSizeFraction
	}
	if raw.Leverage != 0 {
		p.Leverage = raw.Leverage
	}
	if raw.HardStopATRMultiplier != 0 {
		p.HardStopATRMultiplier = raw.HardStopATRMultiplier
	}
	if raw.MinLossFloorPct != 0 {
		p.MinLossFloorPct = raw.MinLossFloorPct
	}
	if raw.MinStrength != 0 {
		p.MinStrength = raw.MinStrength
	}
}
