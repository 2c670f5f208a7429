package exec

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/types"
)

// Retry budget per order. The deadline on the context still wins: an order
// never retries past its own deadline.
const maxAttempts = 3

// RetryingGateway decorates another Gateway with bounded retries on
// transient failures. Rejections and timeouts pass through immediately.
type RetryingGateway struct {
	inner Gateway
}

// WithRetry wraps a gateway in the retry policy.
func WithRetry(inner Gateway) *RetryingGateway {
	return &RetryingGateway{inner: inner}
}

// OnTick forwards price updates when the wrapped gateway consumes them, so
// the retry decorator stays transparent to the engine's observer wiring.
func (g *RetryingGateway) OnTick(tick types.Tick) {
	if obs, ok := g.inner.(interface{ OnTick(types.Tick) }); ok {
		obs.OnTick(tick)
	}
}

func (g *RetryingGateway) PlaceMarket(ctx context.Context, symbol string, side types.OrderSide, quantity float64) (types.Fill, error) {
	return g.place(ctx, "market", func() (types.Fill, error) {
		return g.inner.PlaceMarket(ctx, symbol, side, quantity)
	})
}

func (g *RetryingGateway) PlaceLimit(ctx context.Context, symbol string, side types.OrderSide, quantity, price float64) (types.Fill, error) {
	return g.place(ctx, "limit", func() (types.Fill, error) {
		return g.inner.PlaceLimit(ctx, symbol, side, quantity, price)
	})
}

func (g *RetryingGateway) place(ctx context.Context, op string, attempt func() (types.Fill, error)) (types.Fill, error) {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	var lastErr error
	for i := 1; i <= maxAttempts; i++ {
		fill, err := attempt()
		if err == nil {
			return fill, nil
		}

		var oerr *OrderError
		if !errors.As(err, &oerr) || !oerr.Retryable() {
			return types.Fill{}, err
		}
		lastErr = err

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		log.Warn().Err(err).Int("attempt", i).Dur("retry_in", wait).Msg("⚠️ Order failed, retrying")
		select {
		case <-ctx.Done():
			return types.Fill{}, &OrderError{Kind: Timeout, Op: op, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return types.Fill{}, &OrderError{Kind: Exhausted, Op: op, Err: lastErr}
}
