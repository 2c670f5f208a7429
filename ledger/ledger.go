package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION LEDGER - Equity, open positions, closed trades, fees
// ═══════════════════════════════════════════════════════════════════════════════
//
// The one shared mutable structure in the engine. All mutations run under a
// single mutex; symbol workers own everything else. Readers get value
// copies, never references into ledger state.
//
// All reported figures are net of fees and slippage. A backtest that omits
// fees is wrong, not optimistic.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrDuplicateSide reports an attempt to open a second position on a side
// already occupied for the symbol.
type ErrDuplicateSide struct {
	Symbol string
	Side   types.Side
}

func (e ErrDuplicateSide) Error() string {
	return fmt.Sprintf("ledger: %s already has an open %s position", e.Symbol, e.Side)
}

// ErrPositionNotFound reports a close against a position the ledger does not
// hold.
type ErrPositionNotFound struct {
	Symbol string
	Side   types.Side
}

func (e ErrPositionNotFound) Error() string {
	return fmt.Sprintf("ledger: no open %s position for %s", e.Side, e.Symbol)
}

// Rates bundles the cost model applied on close.
type Rates struct {
	TakerFee decimal.Decimal
	MakerFee decimal.Decimal
	Slippage decimal.Decimal // per side
}

// SymbolStats aggregates per-symbol trading results.
type SymbolStats struct {
	Trades        int
	Wins          int
	Losses        int
	GrossPnl      decimal.Decimal
	NetPnl        decimal.Decimal
	FeesPaid      decimal.Decimal
	LastEntryTime time.Time
}

// Ledger is the account state: equity, open positions, trade log.
type Ledger struct {
	mu sync.Mutex

	initialEquity decimal.Decimal
	equity        decimal.Decimal
	peakEquity    decimal.Decimal
	maxDrawdown   decimal.Decimal // fraction of peak

	open      map[string]map[types.Side]*types.Position
	trades    []types.Trade
	perSymbol map[string]*SymbolStats
	totalFees decimal.Decimal

	rates Rates
}

// New creates a ledger with the given starting equity and cost model.
func New(initialEquity decimal.Decimal, rates Rates) *Ledger {
	return &Ledger{
		initialEquity: initialEquity,
		equity:        initialEquity,
		peakEquity:    initialEquity,
		open:          make(map[string]map[types.Side]*types.Position),
		perSymbol:     make(map[string]*SymbolStats),
		rates:         rates,
	}
}

// Equity returns the current account equity. Sizing reads this at the start
// of an entry attempt; a concurrent close in between is accepted, not
// retried.
func (l *Ledger) Equity() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equity
}

// Open registers a position. At most one LONG and one SHORT per symbol.
func (l *Ledger) Open(pos *types.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sides := l.open[pos.Symbol]
	if sides == nil {
		sides = make(map[types.Side]*types.Position, 2)
		l.open[pos.Symbol] = sides
	}
	if _, exists := sides[pos.Side]; exists {
		return ErrDuplicateSide{Symbol: pos.Symbol, Side: pos.Side}
	}
	cp := *pos
	sides[pos.Side] = &cp

	stats := l.statsFor(pos.Symbol)
	stats.LastEntryTime = pos.EntryTime
	return nil
}

// UpdateStop mirrors the worker's trailing state into the ledger copy so
// persisted open-position snapshots carry current stops.
func (l *Ledger) UpdateStop(symbol string, side types.Side, extreme, stop float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok := l.open[symbol][side]; ok {
		pos.ExtremePrice = extreme
		pos.StopPrice = stop
	}
}

// Close settles a position at the given exit price, applying slippage to
// both legs and the fee on entry+exit notional.
//
//	LONG:  gross = (exit·(1-slip) - entry·(1+slip)) · qty · leverage
//	SHORT: gross = (entry·(1-slip) - exit·(1+slip)) · qty · leverage
//	fee   = (entry + exit) · qty · feeRate
//	net   = gross - fee
func (l *Ledger) Close(symbol string, side types.Side, exitPrice float64, exitTime time.Time, reason types.ExitReason, feeRate decimal.Decimal) (types.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.open[symbol][side]
	if !ok {
		return types.Trade{}, ErrPositionNotFound{Symbol: symbol, Side: side}
	}
	delete(l.open[symbol], side)

	one := decimal.NewFromInt(1)
	entry := decimal.NewFromFloat(pos.EntryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	qty := decimal.NewFromFloat(pos.Quantity)
	lev := decimal.NewFromInt(int64(pos.Leverage))
	slip := l.rates.Slippage

	var gross decimal.Decimal
	if side == types.Long {
		gross = exit.Mul(one.Sub(slip)).Sub(entry.Mul(one.Add(slip))).Mul(qty).Mul(lev)
	} else {
		gross = entry.Mul(one.Sub(slip)).Sub(exit.Mul(one.Add(slip))).Mul(qty).Mul(lev)
	}
	fee := entry.Add(exit).Mul(qty).Mul(feeRate)
	net := gross.Sub(fee)

	trade := types.Trade{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		ExitPrice:  exitPrice,
		ExitTime:   exitTime,
		Quantity:   pos.Quantity,
		Leverage:   pos.Leverage,
		ExitReason: reason,
		GrossPnl:   gross,
		FeesPaid:   fee,
		NetPnl:     net,
	}
	l.trades = append(l.trades, trade)

	l.equity = l.equity.Add(net)
	l.totalFees = l.totalFees.Add(fee)
	if l.equity.GreaterThan(l.peakEquity) {
		l.peakEquity = l.equity
	}
	if l.peakEquity.IsPositive() {
		dd := l.peakEquity.Sub(l.equity).Div(l.peakEquity)
		if dd.GreaterThan(l.maxDrawdown) {
			l.maxDrawdown = dd
		}
	}

	stats := l.statsFor(symbol)
	stats.Trades++
	if net.IsPositive() {
		stats.Wins++
	} else {
		stats.Losses++
	}
	stats.GrossPnl = stats.GrossPnl.Add(gross)
	stats.NetPnl = stats.NetPnl.Add(net)
	stats.FeesPaid = stats.FeesPaid.Add(fee)

	log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("reason", string(reason)).
		Str("net_pnl", net.StringFixed(4)).
		Str("fees", fee.StringFixed(4)).
		Str("equity", l.equity.StringFixed(2)).
		Msg("📊 Position closed")

	return trade, nil
}

// TakerFee exposes the taker rate for market-order settlement.
func (l *Ledger) TakerFee() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rates.TakerFee
}

// HasOpen reports whether any position is open for the symbol.
func (l *Ledger) HasOpen(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open[symbol]) > 0
}

// OpenPosition returns a copy of the open position on a side, if any.
func (l *Ledger) OpenPosition(symbol string, side types.Side) (types.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.open[symbol][side]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// OpenPositions returns copies of every open position.
func (l *Ledger) OpenPositions() []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Position
	for _, sides := range l.open {
		for _, pos := range sides {
			out = append(out, *pos)
		}
	}
	return out
}

// Trades returns a copy of the closed-trade log, in close order.
func (l *Ledger) Trades() []types.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Stats returns a copy of one symbol's aggregates.
func (l *Ledger) Stats(symbol string) (SymbolStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.perSymbol[symbol]
	if !ok {
		return SymbolStats{}, false
	}
	return *s, true
}

// TotalFees returns the accumulated fees over all closed trades.
func (l *Ledger) TotalFees() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalFees
}

func (l *Ledger) statsFor(symbol string) *SymbolStats {
	s, ok := l.perSymbol[symbol]
	if !ok {
		s = &SymbolStats{}
		l.perSymbol[symbol] = s
	}
	return s
}
