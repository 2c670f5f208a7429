package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Tick is a single trade print from the exchange, the atomic unit of market
// data in this engine. Timestamps are milliseconds since epoch and
// non-strictly monotonic within a symbol stream.
type Tick struct {
	Symbol       string  `json:"symbol"`
	Timestamp    int64   `json:"timestamp"`
	Price        float64 `json:"price"`
	Volume       float64 `json:"volume"`
	IsBuyerMaker bool    `json:"is_buyer_maker,omitempty"`
}

// Time returns the tick timestamp as time.Time.
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Side of a position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTrailingStop     ExitReason = "TRAILING_STOP"
	ExitHardStop         ExitReason = "HARD_STOP"
	ExitSignalClose      ExitReason = "SIGNAL_CLOSE"
	ExitLiquidationGuard ExitReason = "LIQUIDATION_GUARD"
)

// OrderSide for the execution gateway.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// EntrySide maps a position side to the gateway order side that opens it.
func EntrySide(s Side) OrderSide {
	if s == Long {
		return Buy
	}
	return Sell
}

// CloseSide maps a position side to the gateway order side that closes it.
func CloseSide(s Side) OrderSide {
	if s == Long {
		return Sell
	}
	return Buy
}

// Position is one open leg of a straddle. Prices are float64 because they
// live on the tick/indicator hot path; money amounts are computed in decimal
// by the ledger at close time.
type Position struct {
	ID         string
	Symbol     string
	Side       Side
	EntryPrice float64
	EntryTime  time.Time
	Quantity   float64
	Leverage   int
	SignalID   string

	// Trailing state, maintained by the stop manager.
	ExtremePrice float64
	StopPrice    float64
}

// ProfitFraction is the favorable-extreme profit as a fraction of entry,
// sign-flipped for SHORT so profit is always positive-good.
func (p *Position) ProfitFraction() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.Side == Long {
		return (p.ExtremePrice - p.EntryPrice) / p.EntryPrice
	}
	return (p.EntryPrice - p.ExtremePrice) / p.EntryPrice
}

// Trade is a closed position with realized economics.
// Invariant: NetPnl = GrossPnl - FeesPaid (slippage is folded into GrossPnl).
type Trade struct {
	PositionID string
	Symbol     string
	Side       Side
	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time
	Quantity   float64
	Leverage   int
	ExitReason ExitReason

	GrossPnl decimal.Decimal
	FeesPaid decimal.Decimal
	NetPnl   decimal.Decimal
}

// Fill is the gateway's answer to an order intent. The gateway is the sole
// authority on fill price.
type Fill struct {
	Symbol    string
	Side      OrderSide
	Quantity  float64
	Price     float64
	Timestamp time.Time
	FeeRate   decimal.Decimal
}
