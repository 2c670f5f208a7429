package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PAPER GATEWAY - Simulated fills against the live tick stream
// ═══════════════════════════════════════════════════════════════════════════════
//
// Market orders fill immediately at the last observed price shifted one
// slippage increment against the taker. Limit orders fill when a tick
// crosses the limit price, at the limit price with the maker fee.
//
// Replay feeds the same gateway, so paper results and replay results share
// one fill model.
//
// ═══════════════════════════════════════════════════════════════════════════════

type restingLimit struct {
	symbol   string
	side     types.OrderSide
	quantity float64
	price    float64
	filled   chan types.Fill // buffered, capacity 1
}

// PaperGateway simulates execution. OnTick must be fed the same stream the
// engine consumes.
type PaperGateway struct {
	mu         sync.Mutex
	lastPrice  map[string]float64
	lastTickMs map[string]int64
	resting    map[string][]*restingLimit

	slippage decimal.Decimal
	takerFee decimal.Decimal
	makerFee decimal.Decimal

	// Replay mode timestamps fills from tick time, not the wall clock.
	useTickTime bool
}

// NewPaperGateway creates a paper gateway with the given cost model.
func NewPaperGateway(slippage, takerFee, makerFee decimal.Decimal) *PaperGateway {
	return &PaperGateway{
		lastPrice:  make(map[string]float64),
		lastTickMs: make(map[string]int64),
		resting:    make(map[string][]*restingLimit),
		slippage:   slippage,
		takerFee:   takerFee,
		makerFee:   makerFee,
	}
}

// UseTickTime switches fill timestamps from wall clock to tick time, which
// replay needs for deterministic trade logs.
func (g *PaperGateway) UseTickTime() *PaperGateway {
	g.useTickTime = true
	return g
}

// OnTick updates the last-price book and fills any crossed resting limits.
func (g *PaperGateway) OnTick(tick types.Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastPrice[tick.Symbol] = tick.Price
	g.lastTickMs[tick.Symbol] = tick.Timestamp

	orders := g.resting[tick.Symbol]
	if len(orders) == 0 {
		return
	}
	remaining := orders[:0]
	for _, o := range orders {
		if o.crossed(tick.Price) {
			o.filled <- types.Fill{
				Symbol:    o.symbol,
				Side:      o.side,
				Quantity:  o.quantity,
				Price:     o.price,
				Timestamp: g.fillTime(tick.Symbol),
				FeeRate:   g.makerFee,
			}
		} else {
			remaining = append(remaining, o)
		}
	}
	g.resting[tick.Symbol] = remaining
}

func (o *restingLimit) crossed(price float64) bool {
	if o.side == types.Buy {
		return price <= o.price
	}
	return price >= o.price
}

// PlaceMarket fills at last price shifted one slippage increment against the
// order. Fails Rejected when no price has been observed yet.
func (g *PaperGateway) PlaceMarket(ctx context.Context, symbol string, side types.OrderSide, quantity float64) (types.Fill, error) {
	if err := ctx.Err(); err != nil {
		return types.Fill{}, &OrderError{Kind: Timeout, Op: "market", Err: err}
	}
	if quantity <= 0 {
		return types.Fill{}, &OrderError{Kind: Rejected, Op: "market", Err: fmt.Errorf("non-positive quantity %v", quantity)}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastPrice[symbol]
	if !ok {
		return types.Fill{}, &OrderError{Kind: Rejected, Op: "market", Err: fmt.Errorf("no price seen for %s", symbol)}
	}

	slip, _ := g.slippage.Float64()
	price := last * (1 + slip)
	if side == types.Sell {
		price = last * (1 - slip)
	}

	fill := types.Fill{
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: g.fillTime(symbol),
		FeeRate:   g.takerFee,
	}
	log.Debug().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("price", price).
		Float64("qty", quantity).
		Msg("Paper market fill")
	return fill, nil
}

// PlaceLimit rests the order until a tick crosses it or the context deadline
// expires.
func (g *PaperGateway) PlaceLimit(ctx context.Context, symbol string, side types.OrderSide, quantity, price float64) (types.Fill, error) {
	if quantity <= 0 || price <= 0 {
		return types.Fill{}, &OrderError{Kind: Rejected, Op: "limit", Err: fmt.Errorf("invalid quantity %v or price %v", quantity, price)}
	}

	o := &restingLimit{
		symbol:   symbol,
		side:     side,
		quantity: quantity,
		price:    price,
		filled:   make(chan types.Fill, 1),
	}

	g.mu.Lock()
	// An already-crossed limit fills immediately at the limit price.
	if last, ok := g.lastPrice[symbol]; ok && o.crossed(last) {
		fill := types.Fill{
			Symbol:    symbol,
			Side:      side,
			Quantity:  quantity,
			Price:     price,
			Timestamp: g.fillTime(symbol),
			FeeRate:   g.makerFee,
		}
		g.mu.Unlock()
		return fill, nil
	}
	g.resting[symbol] = append(g.resting[symbol], o)
	g.mu.Unlock()

	select {
	case fill := <-o.filled:
		return fill, nil
	case <-ctx.Done():
		g.cancel(symbol, o)
		// A fill can race the deadline; prefer the fill if it landed.
		select {
		case fill := <-o.filled:
			return fill, nil
		default:
		}
		return types.Fill{}, &OrderError{Kind: UnfilledTimeout, Op: "limit", Err: ctx.Err()}
	}
}

func (g *PaperGateway) cancel(symbol string, target *restingLimit) {
	g.mu.Lock()
	defer g.mu.Unlock()
	orders := g.resting[symbol]
	for i, o := range orders {
		if o == target {
			g.resting[symbol] = append(orders[:i], orders[i+1:]...)
			return
		}
	}
}

// fillTime must be called with the mutex held.
func (g *PaperGateway) fillTime(symbol string) time.Time {
	if g.useTickTime {
		if ms, ok := g.lastTickMs[symbol]; ok {
			return time.UnixMilli(ms)
		}
	}
	return time.Now()
}
