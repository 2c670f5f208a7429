package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickforge/straddlebot/types"
)

func TestHardStopScaling(t *testing.T) {
	// 4% ATR with a 2x multiplier puts the hard stop at 92, not at the 1%
	// loss floor's 99.
	ts := NewTrailingStop(types.Long, 100, 0.04, 2.0, 0.01)
	assert.InDelta(t, 92.0, ts.Stop(), 1e-9)

	// 93 is above the stop: no trigger.
	res, err := ts.Update(93, 0.04)
	require.NoError(t, err)
	assert.False(t, res.Triggered)
	assert.InDelta(t, 92.0, res.Stop, 1e-9)

	// 91.9 crosses it. The trailing candidate (91.2) sits inside the hard
	// stop, so the exit is attributed to the hard stop.
	res, err = ts.Update(91.9, 0.04)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.Equal(t, types.ExitHardStop, res.Reason)
}

func TestTrailingStopTriggerAttribution(t *testing.T) {
	// Low volatility: trailing candidate stays outside the hard stop, so a
	// stop-out is a trailing exit.
	ts := NewTrailingStop(types.Long, 100, 0.01, 2.0, 0.01)
	assert.InDelta(t, 98.0, ts.Stop(), 1e-9)

	res, err := ts.Update(105, 0.01)
	require.NoError(t, err)
	require.False(t, res.Triggered)

	res, err = ts.Update(97.9, 0.01)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.Equal(t, types.ExitTrailingStop, res.Reason)
}

func TestLongStopMonotone(t *testing.T) {
	ts := NewTrailingStop(types.Long, 100, 0.02, 2.0, 0.01)
	prices := []float64{100.5, 101, 99.8, 102, 101.5, 103, 102.2, 104}
	atrs := []float64{0.02, 0.035, 0.008, 0.02, 0.05, 0.004, 0.02, 0.01}

	prev := ts.Stop()
	for i, p := range prices {
		res, err := ts.Update(p, atrs[i])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Stop, prev, "stop loosened at step %d", i)
		prev = res.Stop
	}
}

func TestShortStopMonotone(t *testing.T) {
	ts := NewTrailingStop(types.Short, 100, 0.02, 2.0, 0.01)
	prices := []float64{99.5, 99, 100.2, 98, 98.5, 97, 97.8, 96}
	atrs := []float64{0.02, 0.035, 0.008, 0.02, 0.05, 0.004, 0.02, 0.01}

	prev := ts.Stop()
	for i, p := range prices {
		res, err := ts.Update(p, atrs[i])
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Stop, prev, "stop loosened at step %d", i)
		prev = res.Stop
	}
}

func TestRegimeMultipliers(t *testing.T) {
	ts := NewTrailingStop(types.Long, 100, 0.02, 2.0, 0.01)

	// No profit yet: distance is purely regime-scaled ATR.
	assert.InDelta(t, 2.2*0.04, ts.trailingDistance(0.04), 1e-12)  // high vol
	assert.InDelta(t, 1.8*0.02, ts.trailingDistance(0.02), 1e-12)  // medium vol
	assert.InDelta(t, 1.5*0.005, ts.trailingDistance(0.005), 1e-12) // low vol
}

func TestProfitTightening(t *testing.T) {
	ts := NewTrailingStop(types.Long, 100, 0.02, 2.0, 0.01)

	// Extreme at 101.5: profit 1.5%, above the 0.5% activation.
	_, err := ts.Update(101.5, 0.02)
	require.NoError(t, err)
	assert.InDelta(t, 101.5, ts.Extreme(), 1e-9)

	// dist = 0.036 - 10*(0.015-0.005)*0.3*0.02 = 0.0354
	assert.InDelta(t, 0.0354, ts.trailingDistance(0.02), 1e-12)

	// Deep profit at 3%: a further half-ATR tightening applies.
	_, err = ts.Update(103, 0.02)
	require.NoError(t, err)
	// 0.036 - 10*0.025*0.3*0.02 = 0.0345, then -0.5*0.02 = 0.0245
	assert.InDelta(t, 0.0245, ts.trailingDistance(0.02), 1e-12)
}

func TestTighteningNeverBelowFloor(t *testing.T) {
	ts := NewTrailingStop(types.Long, 100, 0.001, 2.0, 0.01)
	// Massive profit drives the tightening formula deeply negative; the
	// distance must clamp at the deep-profit floor.
	_, err := ts.Update(150, 0.001)
	require.NoError(t, err)
	assert.InDelta(t, 0.8*0.001, ts.trailingDistance(0.001), 1e-12)
}

func TestUpdateBeforeInitialize(t *testing.T) {
	var ts TrailingStop
	_, err := ts.Update(100, 0.01)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestResumeContinuesRatchet(t *testing.T) {
	ts := ResumeTrailingStop(types.Long, 100, 104, 98.5, 2.0, 0.01)
	assert.InDelta(t, 98.5, ts.Stop(), 1e-9)
	assert.InDelta(t, 104.0, ts.Extreme(), 1e-9)

	// A lower price cannot loosen the resumed stop.
	res, err := ts.Update(99, 0.05)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Stop, 98.5)
}
