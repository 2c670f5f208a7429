package feeds

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickforge/straddlebot/types"
)

func ticksFrom(prices []float64, volumes []float64) []types.Tick {
	out := make([]types.Tick, len(prices))
	for i, p := range prices {
		v := 1.0
		if volumes != nil {
			v = volumes[i]
		}
		out[i] = types.Tick{Symbol: "BTCUSDT", Timestamp: int64(i) * 1000, Price: p, Volume: v}
	}
	return out
}

func TestVWAPWeighted(t *testing.T) {
	ticks := ticksFrom([]float64{100, 200}, []float64{3, 1})
	vwap, ok := VWAP(ticks)
	require.True(t, ok)
	// (100*3 + 200*1) / 4 = 125
	assert.InDelta(t, 125.0, vwap, 1e-9)
}

func TestVWAPZeroVolumeFallsBackToMean(t *testing.T) {
	ticks := ticksFrom([]float64{100, 110, 120}, []float64{0, 0, 0})
	vwap, ok := VWAP(ticks)
	require.True(t, ok)
	assert.InDelta(t, 110.0, vwap, 1e-9)
}

func TestVWAPEmptyUndefined(t *testing.T) {
	_, ok := VWAP(nil)
	assert.False(t, ok)
}

func TestTickVarianceVol(t *testing.T) {
	// Changes: |101-100|=1, |103-101|=2, |102-103|=1. Mean 4/3.
	// Sample variance = ((1/3)^2 + (2/3)^2 + (1/3)^2) / 2 = 1/3.
	ticks := ticksFrom([]float64{100, 101, 103, 102}, nil)
	vol, ok := TickVarianceVol(ticks)
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(1.0/3.0), vol, 1e-9)
}

func TestTickVarianceVolSingleChange(t *testing.T) {
	vol, ok := TickVarianceVol(ticksFrom([]float64{100, 105}, nil))
	require.True(t, ok)
	assert.Equal(t, 0.0, vol)
}

func TestTickVarianceVolUndefinedBelowTwoTicks(t *testing.T) {
	_, ok := TickVarianceVol(ticksFrom([]float64{100}, nil))
	assert.False(t, ok)
}

func TestATRLikeVolSubWindows(t *testing.T) {
	// 6 ticks, sub-window 3: windows are [4,5,6] range 2 and [1,2,3] range 2.
	ticks := ticksFrom([]float64{10, 11, 12, 20, 21, 22}, nil)
	atr, ok := ATRLikeVol(ticks, 3)
	require.True(t, ok)
	assert.InDelta(t, 2.0, atr, 1e-9)
}

func TestATRLikeVolAlignsFromNewest(t *testing.T) {
	// 5 ticks, sub-window 2: windows [t3,t4] and [t1,t2]; t0 is left over.
	ticks := ticksFrom([]float64{100, 10, 12, 30, 34}, nil)
	atr, ok := ATRLikeVol(ticks, 2)
	require.True(t, ok)
	// Ranges: |34-30|=4 and |12-10|=2, mean 3. The oversized 100 at the
	// head never enters a window.
	assert.InDelta(t, 3.0, atr, 1e-9)
}

func TestATRLikeVolUndefinedBelowSubWindow(t *testing.T) {
	_, ok := ATRLikeVol(ticksFrom([]float64{1, 2}, nil), 3)
	assert.False(t, ok)
}

func TestHybridVolTakesMax(t *testing.T) {
	// tickVar*10 dominates
	assert.InDelta(t, 50.0, HybridVol(5, 10), 1e-9)
	// atr*0.2 dominates
	assert.InDelta(t, 20.0, HybridVol(0.5, 100), 1e-9)
}

func TestMomentum(t *testing.T) {
	m, ok := Momentum(ticksFrom([]float64{100, 99, 103}, nil))
	require.True(t, ok)
	assert.InDelta(t, 0.03, m, 1e-9)
}

func TestComputeSnapshotRequiresSpannedWindow(t *testing.T) {
	buf := NewTickBuffer(1000)
	// 30 seconds of ticks cannot satisfy a 60 second lookback.
	for i := 0; i <= 30; i++ {
		buf.Append(types.Tick{Symbol: "X", Timestamp: int64(i) * 1000, Price: 100, Volume: 1})
	}
	_, ok := ComputeSnapshot(buf, 60)
	assert.False(t, ok)
}

func TestComputeSnapshotDegenerateBand(t *testing.T) {
	buf := NewTickBuffer(1000)
	// Constant price: tick variance 0, band width 0, BBPosition NaN.
	for i := 0; i <= 200; i++ {
		buf.Append(types.Tick{Symbol: "X", Timestamp: int64(i) * 1000, Price: 100, Volume: 1})
	}
	snap, ok := ComputeSnapshot(buf, 150)
	require.True(t, ok)
	assert.False(t, snap.BandValid())
	assert.True(t, math.IsNaN(snap.BBPosition))
	assert.Equal(t, 100.0, snap.VWAP)
}

func TestComputeSnapshotBandPosition(t *testing.T) {
	buf := NewTickBuffer(1000)
	// Vary change magnitudes so the tick variance (and band width) is nonzero.
	for i := 0; i <= 300; i++ {
		p := 100.0 + 0.1*float64(i%3)
		buf.Append(types.Tick{Symbol: "X", Timestamp: int64(i) * 1000, Price: p, Volume: 1})
	}
	snap, ok := ComputeSnapshot(buf, 120)
	require.True(t, ok)
	require.True(t, snap.BandValid())
	assert.Greater(t, snap.BBUpper, snap.BBLower)
	assert.InDelta(t, snap.VWAP, snap.BBMiddle, 1e-12)
	// Self-consistency: position is the fractional location within the band.
	want := (snap.Price - snap.BBLower) / (snap.BBUpper - snap.BBLower)
	assert.InDelta(t, want, snap.BBPosition, 1e-12)
}
