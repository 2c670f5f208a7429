package strategy

import (
	"fmt"
	"math"

	"github.com/tickforge/straddlebot/config"
	"github.com/tickforge/straddlebot/feeds"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNAL GENERATOR - Selective two-way (straddle) entries
// ═══════════════════════════════════════════════════════════════════════════════
//
// The engine calls Evaluate on a coarse cadence (every N ticks). One rule
// shape for all variants; variant-specific numbers live in CoinParams. The
// selective variant additionally requires momentum confirmation.
//
// Entry bets on volatility, not direction: when volatility is elevated and
// price sits near the band centre, open LONG and SHORT simultaneously and
// let the trailing stops sort out the winner.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Action is the generator's verdict.
type Action int

const (
	Hold Action = iota
	EntryBoth
	CloseAll
)

func (a Action) String() string {
	switch a {
	case EntryBoth:
		return "ENTRY_BOTH"
	case CloseAll:
		return "CLOSE_ALL"
	default:
		return "HOLD"
	}
}

// Close-rule constants: volatility collapse and extreme band excursion.
const (
	closeHybridCollapseRatio = 0.1
	closeBandLow             = 0.1
	closeBandHigh            = 0.9

	selectiveMomentumMin = 1e-4
)

// Decision carries the action plus its strength score and a loggable reason.
type Decision struct {
	Action   Action
	Strength float64
	Reason   string
}

// Generator evaluates one symbol's indicator snapshots against its params.
type Generator struct {
	params config.CoinParams
}

// NewGenerator creates a generator bound to one symbol's parameters.
func NewGenerator(params config.CoinParams) *Generator {
	return &Generator{params: params}
}

// Evaluate produces a decision from the latest snapshot.
//
// nowMs/lastEntryMs are milliseconds since epoch in tick time (not wall
// clock) so replay stays deterministic. hasOpen reports whether any position
// is open for the symbol on either side.
func (g *Generator) Evaluate(snap feeds.Snapshot, nowMs, lastEntryMs int64, hasOpen bool) Decision {
	if hasOpen {
		return g.evaluateClose(snap)
	}
	return g.evaluateEntry(snap, nowMs, lastEntryMs)
}

func (g *Generator) evaluateEntry(snap feeds.Snapshot, nowMs, lastEntryMs int64) Decision {
	p := g.params

	if p.Excluded {
		return Decision{Action: Hold, Reason: "symbol excluded"}
	}
	if lastEntryMs > 0 && nowMs-lastEntryMs < int64(p.CooldownSeconds)*1000 {
		return Decision{Action: Hold, Reason: "cooldown"}
	}
	if !snap.BandValid() {
		return Decision{Action: Hold, Reason: "no valid band"}
	}

	hybridPct := snap.HybridPct()
	atrPct := snap.ATRPct()

	if hybridPct < p.HybridVolThresholdPct {
		return Decision{Action: Hold, Reason: "hybrid volatility below threshold"}
	}
	if atrPct < p.ATRVolThresholdPct {
		return Decision{Action: Hold, Reason: "atr volatility below threshold"}
	}
	if snap.BBPosition < p.BBBandMin || snap.BBPosition > p.BBBandMax {
		return Decision{Action: Hold, Reason: "price outside band window"}
	}
	if p.StrategyVariant == config.VariantSelective && math.Abs(snap.Momentum) < selectiveMomentumMin {
		return Decision{Action: Hold, Reason: "momentum unconfirmed"}
	}

	strength := g.strength(snap, atrPct)
	if strength < p.MinStrength {
		return Decision{Action: Hold, Strength: strength, Reason: "strength below minimum"}
	}

	return Decision{
		Action:   EntryBoth,
		Strength: strength,
		Reason: fmt.Sprintf("hybrid %.4f%% atr %.4f%% bb %.3f strength %.2f",
			hybridPct*100, atrPct*100, snap.BBPosition, strength),
	}
}

// strength blends band compression and volatility expansion. Both reference
// thresholds come from CoinParams, never package constants: global numbers
// here silently filter out low-volatility symbols.
func (g *Generator) strength(snap feeds.Snapshot, atrPct float64) float64 {
	p := g.params

	bandwidth := snap.Bandwidth()
	if math.IsNaN(bandwidth) {
		return 0
	}
	compression := clamp((p.BBBandwidthThreshold-bandwidth)/p.BBBandwidthThreshold, 0, 1)
	expansion := clamp(atrPct/p.ATRVolThresholdPct, 0, 1)
	return 0.5*compression + 0.5*expansion
}

func (g *Generator) evaluateClose(snap feeds.Snapshot) Decision {
	if snap.HybridVol < closeHybridCollapseRatio*snap.ATRLikeVol {
		return Decision{
			Action: CloseAll,
			Reason: fmt.Sprintf("volatility collapsed (hybrid %.6f < 0.1*atr %.6f)", snap.HybridVol, snap.ATRLikeVol),
		}
	}
	if snap.BandValid() && (snap.BBPosition < closeBandLow || snap.BBPosition > closeBandHigh) {
		return Decision{
			Action: CloseAll,
			Reason: fmt.Sprintf("extreme band excursion (bb %.3f)", snap.BBPosition),
		}
	}
	return Decision{Action: Hold, Reason: "positions riding trailing stops"}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
