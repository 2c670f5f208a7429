package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickforge/straddlebot/types"
)

// flakyGateway fails with the scripted errors before succeeding.
type flakyGateway struct {
	failures []error
	calls    int
	fill     types.Fill
}

func (g *flakyGateway) PlaceMarket(ctx context.Context, symbol string, side types.OrderSide, quantity float64) (types.Fill, error) {
	g.calls++
	if len(g.failures) > 0 {
		err := g.failures[0]
		g.failures = g.failures[1:]
		return types.Fill{}, err
	}
	return g.fill, nil
}

func (g *flakyGateway) PlaceLimit(ctx context.Context, symbol string, side types.OrderSide, quantity, price float64) (types.Fill, error) {
	return g.PlaceMarket(ctx, symbol, side, quantity)
}

func transientErr() error {
	return &OrderError{Kind: Transient, Op: "market", Err: errors.New("connection reset")}
}

func TestRetrySucceedsAfterTransient(t *testing.T) {
	inner := &flakyGateway{
		failures: []error{transientErr(), transientErr()},
		fill:     types.Fill{Symbol: "BTCUSDT", Price: 100},
	}
	g := WithRetry(inner)

	fill, err := g.PlaceMarket(context.Background(), "BTCUSDT", types.Buy, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fill.Price)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	inner := &flakyGateway{
		failures: []error{transientErr(), transientErr(), transientErr(), transientErr()},
	}
	g := WithRetry(inner)

	_, err := g.PlaceMarket(context.Background(), "BTCUSDT", types.Buy, 1)
	var oerr *OrderError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, Exhausted, oerr.Kind)
	assert.Equal(t, maxAttempts, inner.calls)
}

func TestRetryPassesThroughRejection(t *testing.T) {
	inner := &flakyGateway{
		failures: []error{&OrderError{Kind: Rejected, Op: "market", Err: errors.New("bad qty")}},
	}
	g := WithRetry(inner)

	_, err := g.PlaceMarket(context.Background(), "BTCUSDT", types.Buy, 1)
	var oerr *OrderError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, Rejected, oerr.Kind)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryForwardsTicksToInnerObserver(t *testing.T) {
	paper := newTestGateway()
	g := WithRetry(paper)

	g.OnTick(types.Tick{Symbol: "BTCUSDT", Timestamp: 1000, Price: 100, Volume: 1})
	fill, err := g.PlaceMarket(context.Background(), "BTCUSDT", types.Buy, 1)
	require.NoError(t, err)
	assert.InDelta(t, 100.01, fill.Price, 1e-9)
}
