package risk

import (
	"errors"
	"math"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRAILING STOP - ATR-scaled dynamic stop with hard-stop floor
// ═══════════════════════════════════════════════════════════════════════════════
//
// Fixed-percentage stops overfit to recent volatility; ATR-scaled stops
// adapt. The stop ratchets in one direction only: a LONG stop never
// decreases, a SHORT stop never increases.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Volatility-regime multipliers for the base trailing distance.
const (
	highVolATRPct   = 0.03
	mediumVolATRPct = 0.01

	highVolMultiplier   = 2.2
	mediumVolMultiplier = 1.8
	lowVolMultiplier    = 1.5

	// Profit-based tightening.
	minProfitThreshold = 0.005
	accelerationStep   = 0.3
	deepProfitLevel    = 0.02
	tightenFloorMult   = 1.0
	deepTightenMult    = 0.5
	deepFloorMult      = 0.8
)

// ErrNotInitialized is returned when Update is called before the stop has
// been initialised for a position.
var ErrNotInitialized = errors.New("trailing stop: update before initialize")

// TrailingStop tracks one open position's favorable extreme and stop price.
type TrailingStop struct {
	side        types.Side
	entry       float64
	extreme     float64
	stop        float64
	hardATRMult float64
	minLossPct  float64
	initialized bool
}

// NewTrailingStop initialises stop tracking at entry. The initial stop sits
// at the hard-stop distance computed from the entry-time ATR snapshot.
func NewTrailingStop(side types.Side, entryPrice, atrPct, hardStopATRMult, minLossFloorPct float64) *TrailingStop {
	ts := &TrailingStop{
		side:        side,
		entry:       entryPrice,
		extreme:     entryPrice,
		hardATRMult: hardStopATRMult,
		minLossPct:  minLossFloorPct,
		initialized: true,
	}
	hardDist := ts.hardStopDistance(atrPct)
	if side == types.Long {
		ts.stop = entryPrice * (1 - hardDist)
	} else {
		ts.stop = entryPrice * (1 + hardDist)
	}
	return ts
}

// ResumeTrailingStop rebuilds stop tracking from persisted state after a
// restart. The ratchet continues from the saved stop, never loosening it.
func ResumeTrailingStop(side types.Side, entryPrice, extreme, stop, hardStopATRMult, minLossFloorPct float64) *TrailingStop {
	return &TrailingStop{
		side:        side,
		entry:       entryPrice,
		extreme:     extreme,
		stop:        stop,
		hardATRMult: hardStopATRMult,
		minLossPct:  minLossFloorPct,
		initialized: true,
	}
}

// Result of one stop evaluation.
type Result struct {
	Stop      float64
	Triggered bool
	Reason    types.ExitReason
}

// Update advances the stop for a new tick price and the contemporaneous
// ATR-relative volatility, and reports whether the stop fired.
func (ts *TrailingStop) Update(price, atrPct float64) (Result, error) {
	if !ts.initialized {
		return Result{}, ErrNotInitialized
	}

	// 1. Favorable extreme.
	if ts.side == types.Long {
		ts.extreme = math.Max(ts.extreme, price)
	} else {
		ts.extreme = math.Min(ts.extreme, price)
	}

	// 2-4. Trailing distance, tightened as profit accrues.
	dist := ts.trailingDistance(atrPct)

	// 5. Candidate trailing stop from the extreme.
	var candidate float64
	if ts.side == types.Long {
		candidate = ts.extreme * (1 - dist)
	} else {
		candidate = ts.extreme * (1 + dist)
	}

	// 6. Hard-stop floor from entry. In high-volatility symbols a fixed 1%
	// stop is too tight, so the floor scales with ATR.
	hardDist := ts.hardStopDistance(atrPct)
	var hardStop float64
	if ts.side == types.Long {
		hardStop = ts.entry * (1 - hardDist)
	} else {
		hardStop = ts.entry * (1 + hardDist)
	}

	// 7. Combine: whichever of trailing/hard-stop is wider from current
	// price, ratcheted so the stop only ever tightens.
	if ts.side == types.Long {
		ts.stop = math.Max(ts.stop, math.Min(candidate, hardStop))
	} else {
		ts.stop = math.Min(ts.stop, math.Max(candidate, hardStop))
	}

	// 8. Trigger check.
	res := Result{Stop: ts.stop}
	if ts.side == types.Long {
		res.Triggered = price <= ts.stop
	} else {
		res.Triggered = price >= ts.stop
	}
	if res.Triggered {
		res.Reason = types.ExitTrailingStop
		if ts.side == types.Long && candidate < hardStop {
			res.Reason = types.ExitHardStop
		}
		if ts.side == types.Short && candidate > hardStop {
			res.Reason = types.ExitHardStop
		}
	}
	return res, nil
}

// trailingDistance is the regime-scaled ATR distance, tightened as profit
// accrues above the activation threshold.
func (ts *TrailingStop) trailingDistance(atrPct float64) float64 {
	var mult float64
	switch {
	case atrPct > highVolATRPct:
		mult = highVolMultiplier
	case atrPct > mediumVolATRPct:
		mult = mediumVolMultiplier
	default:
		mult = lowVolMultiplier
	}
	dist := mult * atrPct

	p := ts.profitFraction()
	if p > minProfitThreshold {
		tightened := dist - 10*(p-minProfitThreshold)*accelerationStep*atrPct
		dist = math.Max(tightenFloorMult*atrPct, tightened)
	}
	if p > deepProfitLevel {
		dist = math.Max(deepFloorMult*atrPct, dist-deepTightenMult*atrPct)
	}
	return dist
}

// hardStopDistance is the ATR-scaled absolute loss cap, floored at the
// configured minimum loss.
func (ts *TrailingStop) hardStopDistance(atrPct float64) float64 {
	return math.Max(ts.minLossPct, atrPct*ts.hardATRMult)
}

// profitFraction is the extreme-vs-entry profit, sign-flipped for SHORT.
func (ts *TrailingStop) profitFraction() float64 {
	if ts.entry == 0 {
		return 0
	}
	if ts.side == types.Long {
		return (ts.extreme - ts.entry) / ts.entry
	}
	return (ts.entry - ts.extreme) / ts.entry
}

// Stop returns the current stop price.
func (ts *TrailingStop) Stop() float64 {
	return ts.stop
}

// Extreme returns the favorable extreme seen so far.
func (ts *TrailingStop) Extreme() float64 {
	return ts.extreme
}
