package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tickforge/straddlebot/config"
	"github.com/tickforge/straddlebot/feeds"
)

// entrySnapshot passes every conservative entry gate: volatility elevated,
// price mid-band, band compressed.
func entrySnapshot() feeds.Snapshot {
	return feeds.Snapshot{
		Price:           100,
		Timestamp:       1_000_000,
		VWAP:            100,
		TickVarianceVol: 0.005,
		ATRLikeVol:      0.2,  // atrPct 0.002 >= 0.0015
		HybridVol:       0.05, // hybridPct 0.0005 >= 0.0004
		BBMiddle:        100,
		BBUpper:         100.5,
		BBLower:         99.5, // bandwidth 0.01 < 0.05 threshold
		BBPosition:      0.5,
		Momentum:        0.001,
	}
}

func conservative() config.CoinParams {
	return config.DefaultParams("BTCUSDT", config.VariantConservative)
}

func TestEvaluateEntryFires(t *testing.T) {
	g := NewGenerator(conservative())
	d := g.Evaluate(entrySnapshot(), 1_000_000, 0, false)
	assert.Equal(t, EntryBoth, d.Action)
	assert.GreaterOrEqual(t, d.Strength, 0.5)
}

func TestEvaluateEntryCooldown(t *testing.T) {
	g := NewGenerator(conservative()) // 300s cooldown
	snap := entrySnapshot()

	nowMs := int64(1_000_000_000)

	// First entry accepted.
	d := g.Evaluate(snap, nowMs, 0, false)
	assert.Equal(t, EntryBoth, d.Action)

	// 100s later: still cooling down even though conditions hold.
	d = g.Evaluate(snap, nowMs+100_000, nowMs, false)
	assert.Equal(t, Hold, d.Action)
	assert.Equal(t, "cooldown", d.Reason)

	// 299s later: still blocked.
	d = g.Evaluate(snap, nowMs+299_000, nowMs, false)
	assert.Equal(t, Hold, d.Action)

	// 300s later: eligible again.
	d = g.Evaluate(snap, nowMs+300_000, nowMs, false)
	assert.Equal(t, EntryBoth, d.Action)
}

func TestEvaluateEntryExcluded(t *testing.T) {
	p := conservative()
	p.Excluded = true
	d := NewGenerator(p).Evaluate(entrySnapshot(), 1, 0, false)
	assert.Equal(t, Hold, d.Action)
}

func TestEvaluateEntryRequiresValidBand(t *testing.T) {
	snap := entrySnapshot()
	snap.BBUpper = snap.BBMiddle
	snap.BBLower = snap.BBMiddle
	snap.BBPosition = math.NaN()
	d := NewGenerator(conservative()).Evaluate(snap, 1, 0, false)
	assert.Equal(t, Hold, d.Action)
	assert.Equal(t, "no valid band", d.Reason)
}

func TestEvaluateEntryVolatilityGates(t *testing.T) {
	g := NewGenerator(conservative())

	snap := entrySnapshot()
	snap.HybridVol = 0.01 // hybridPct 0.0001 < 0.0004
	assert.Equal(t, Hold, g.Evaluate(snap, 1, 0, false).Action)

	snap = entrySnapshot()
	snap.ATRLikeVol = 0.05 // atrPct 0.0005 < 0.0015
	assert.Equal(t, Hold, g.Evaluate(snap, 1, 0, false).Action)
}

func TestEvaluateEntryBandWindow(t *testing.T) {
	g := NewGenerator(conservative()) // window [0.40, 0.60]

	snap := entrySnapshot()
	snap.BBPosition = 0.30
	assert.Equal(t, Hold, g.Evaluate(snap, 1, 0, false).Action)

	snap.BBPosition = 0.70
	assert.Equal(t, Hold, g.Evaluate(snap, 1, 0, false).Action)

	snap.BBPosition = 0.41
	assert.Equal(t, EntryBoth, g.Evaluate(snap, 1, 0, false).Action)
}

func TestSelectiveVariantRequiresMomentum(t *testing.T) {
	p := config.DefaultParams("BTCUSDT", config.VariantSelective)
	g := NewGenerator(p)

	snap := entrySnapshot()
	snap.HybridVol = 0.1  // hybridPct 0.001 >= 0.0008
	snap.ATRLikeVol = 0.4 // atrPct 0.004 >= 0.003
	snap.BBPosition = 0.5 // inside [0.48, 0.52]

	snap.Momentum = 0
	d := g.Evaluate(snap, 1, 0, false)
	assert.Equal(t, Hold, d.Action)
	assert.Equal(t, "momentum unconfirmed", d.Reason)

	snap.Momentum = -0.001 // either direction confirms
	assert.Equal(t, EntryBoth, g.Evaluate(snap, 1, 0, false).Action)
}

func TestEvaluateEntryStrengthGate(t *testing.T) {
	p := conservative()
	p.MinStrength = 0.9
	g := NewGenerator(p)

	// Wide band kills the compression half: strength tops out at 0.5.
	snap := entrySnapshot()
	snap.BBUpper = 103
	snap.BBLower = 97 // bandwidth 0.06 > 0.05
	snap.BBPosition = 0.5

	d := g.Evaluate(snap, 1, 0, false)
	assert.Equal(t, Hold, d.Action)
	assert.Equal(t, "strength below minimum", d.Reason)
	assert.InDelta(t, 0.5, d.Strength, 1e-9)
}

func TestEvaluateCloseOnVolatilityCollapse(t *testing.T) {
	g := NewGenerator(conservative())

	snap := entrySnapshot()
	snap.HybridVol = 0.01
	snap.ATRLikeVol = 0.2 // hybrid < 0.1*atr

	d := g.Evaluate(snap, 1, 0, true)
	assert.Equal(t, CloseAll, d.Action)
}

func TestEvaluateCloseOnBandExtreme(t *testing.T) {
	g := NewGenerator(conservative())

	snap := entrySnapshot()
	snap.BBPosition = 0.95
	assert.Equal(t, CloseAll, g.Evaluate(snap, 1, 0, true).Action)

	snap.BBPosition = 0.05
	assert.Equal(t, CloseAll, g.Evaluate(snap, 1, 0, true).Action)

	snap.BBPosition = 0.5
	assert.Equal(t, Hold, g.Evaluate(snap, 1, 0, true).Action)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "HOLD", Hold.String())
	assert.Equal(t, "ENTRY_BOTH", EntryBoth.String())
	assert.Equal(t, "CLOSE_ALL", CloseAll.String())
}
