package feeds

import (
	"math"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TICK INDICATORS - Pure functions over a tick window
// ═══════════════════════════════════════════════════════════════════════════════
//
// No candle data. Everything is computed from tick prices and volumes:
//   - VWAP replaces SMA
//   - tick-variance volatility + ATR-like range volatility, combined into a
//     hybrid measure
//   - Bollinger bands centred on VWAP
//   - window momentum
//
// Indicators fail as "undefined" (ok=false or NaN), never panic; the signal
// generator treats any undefined input as HOLD.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	// Scaling factors bringing the two volatility measures into comparable
	// ranges. Design constants, not tunables.
	hybridTickVarScale = 10.0
	hybridATRScale     = 0.2

	// Bollinger band width in tick-variance standard deviations.
	bbNumStd = 2.0

	// Band is treated as degenerate when (upper-lower) <= epsilon*price.
	bbDegenerateEpsilon = 1e-6

	// ATRSubWindow is the fixed tick count per ATR-like sub-window.
	ATRSubWindow = 100
)

// Snapshot is the indicator state derived from one (buffer, lookback) pair.
// Snapshots are ephemeral; nothing here is persisted. BBPosition is NaN when
// the band is degenerate.
type Snapshot struct {
	Price           float64
	Timestamp       int64
	VWAP            float64
	TickVarianceVol float64
	ATRLikeVol      float64
	HybridVol       float64
	BBUpper         float64
	BBMiddle        float64
	BBLower         float64
	BBPosition      float64
	Momentum        float64
}

// BandValid reports whether the Bollinger band carries usable width.
func (s Snapshot) BandValid() bool {
	return !math.IsNaN(s.BBPosition)
}

// ComputeSnapshot derives the full indicator snapshot over the buffer's
// lookback window. ok is false when any required indicator is undefined
// (too few ticks, window not yet spanned).
func ComputeSnapshot(buf *TickBuffer, lookbackSeconds int) (Snapshot, bool) {
	last, haveTick := buf.Last()
	if !haveTick {
		return Snapshot{}, false
	}
	window := buf.Since(lookbackSeconds)
	if len(window) == 0 {
		return Snapshot{}, false
	}

	vwap, ok := VWAP(window)
	if !ok {
		return Snapshot{}, false
	}
	tickVar, ok := TickVarianceVol(window)
	if !ok {
		return Snapshot{}, false
	}
	atrLike, ok := ATRLikeVol(window, ATRSubWindow)
	if !ok {
		return Snapshot{}, false
	}
	momentum, ok := Momentum(window)
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		Price:           last.Price,
		Timestamp:       last.Timestamp,
		VWAP:            vwap,
		TickVarianceVol: tickVar,
		ATRLikeVol:      atrLike,
		HybridVol:       HybridVol(tickVar, atrLike),
		BBMiddle:        vwap,
		BBUpper:         vwap + bbNumStd*tickVar,
		BBLower:         vwap - bbNumStd*tickVar,
		Momentum:        momentum,
	}
	snap.BBPosition = bbPosition(last.Price, snap.BBUpper, snap.BBLower)
	return snap, true
}

// VWAP is sum(price*volume)/sum(volume) over the window, falling back to the
// arithmetic mean when the window carries no volume. Undefined on an empty
// window.
func VWAP(ticks []types.Tick) (float64, bool) {
	if len(ticks) == 0 {
		return 0, false
	}
	var pv, vol float64
	for _, t := range ticks {
		pv += t.Price * t.Volume
		vol += t.Volume
	}
	if vol == 0 {
		var sum float64
		for _, t := range ticks {
			sum += t.Price
		}
		return sum / float64(len(ticks)), true
	}
	return pv / vol, true
}

// TickVarianceVol is the sample standard deviation (n-1) of absolute
// tick-to-tick price changes. Requires at least two ticks.
func TickVarianceVol(ticks []types.Tick) (float64, bool) {
	if len(ticks) < 2 {
		return 0, false
	}
	n := len(ticks) - 1
	changes := make([]float64, n)
	var mean float64
	for i := 1; i < len(ticks); i++ {
		c := math.Abs(ticks[i].Price - ticks[i-1].Price)
		changes[i-1] = c
		mean += c
	}
	mean /= float64(n)

	if n < 2 {
		// A single change has no sample variance; report zero spread.
		return 0, true
	}
	var ss float64
	for _, c := range changes {
		d := c - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), true
}

// ATRLikeVol partitions the window into non-overlapping sub-windows of
// subWindow ticks, aligned from the newest tick backwards, and returns the
// mean of each sub-window's high-low range. Requires at least subWindow ticks.
func ATRLikeVol(ticks []types.Tick, subWindow int) (float64, bool) {
	if subWindow < 1 || len(ticks) < subWindow {
		return 0, false
	}
	var sum float64
	var count int
	for end := len(ticks); end-subWindow >= 0; end -= subWindow {
		lo, hi := ticks[end-1].Price, ticks[end-1].Price
		for _, t := range ticks[end-subWindow : end] {
			if t.Price < lo {
				lo = t.Price
			}
			if t.Price > hi {
				hi = t.Price
			}
		}
		sum += hi - lo
		count++
	}
	return sum / float64(count), true
}

// HybridVol combines the two volatility measures. Must be the max of the
// two scaled terms; the min form collapses to the tick-variance term and
// never triggers entries.
func HybridVol(tickVarianceVol, atrLikeVol float64) float64 {
	return math.Max(tickVarianceVol*hybridTickVarScale, atrLikeVol*hybridATRScale)
}

// Momentum is the fractional price change from the earliest tick in the
// window to the newest.
func Momentum(ticks []types.Tick) (float64, bool) {
	if len(ticks) < 2 {
		return 0, false
	}
	then := ticks[0].Price
	if then == 0 {
		return 0, false
	}
	return (ticks[len(ticks)-1].Price - then) / then, true
}

// bbPosition is the fractional location of price within the band, NaN when
// the band is numerically degenerate.
func bbPosition(price, upper, lower float64) float64 {
	width := upper - lower
	if width <= bbDegenerateEpsilon*price {
		return math.NaN()
	}
	return (price - lower) / width
}

// Bandwidth is (upper-lower)/middle, the compression measure used by the
// signal strength formula. NaN when middle is zero.
func (s Snapshot) Bandwidth() float64 {
	if s.BBMiddle == 0 {
		return math.NaN()
	}
	return (s.BBUpper - s.BBLower) / s.BBMiddle
}

// ATRPct is the ATR-like volatility relative to price.
func (s Snapshot) ATRPct() float64 {
	if s.Price == 0 {
		return 0
	}
	return s.ATRLikeVol / s.Price
}

// HybridPct is the hybrid volatility relative to price.
func (s Snapshot) HybridPct() float64 {
	if s.Price == 0 {
		return 0
	}
	return s.HybridVol / s.Price
}
