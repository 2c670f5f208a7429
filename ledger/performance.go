package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tickforge/straddlebot/types"
)

// PerformanceSnapshot is a point-in-time account report. Unrealized figures
// are marked against the prices the caller supplies; positions without a
// price contribute zero unrealized P&L.
type PerformanceSnapshot struct {
	Time            time.Time
	InitialEquity   decimal.Decimal
	Equity          decimal.Decimal
	RealizedNet     decimal.Decimal
	UnrealizedGross decimal.Decimal
	TotalFees       decimal.Decimal
	TotalReturnPct  decimal.Decimal
	MaxDrawdownPct  decimal.Decimal
	ProfitFactor    float64
	WinRate         float64
	TotalTrades     int
	TradesToday     int
	OpenPositions   int
}

// Performance computes the snapshot at the given wall-clock instant.
// lastPrices maps symbol to the latest observed price; TradesToday counts
// closed trades whose exit falls on the same UTC day as now.
func (l *Ledger) Performance(now time.Time, lastPrices map[string]float64) PerformanceSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := PerformanceSnapshot{
		Time:          now,
		InitialEquity: l.initialEquity,
		Equity:        l.equity,
		RealizedNet:   l.equity.Sub(l.initialEquity),
		TotalFees:     l.totalFees,
		TotalTrades:   len(l.trades),
	}

	if l.initialEquity.IsPositive() {
		snap.TotalReturnPct = snap.RealizedNet.Div(l.initialEquity).Mul(decimal.NewFromInt(100))
	}
	snap.MaxDrawdownPct = l.maxDrawdown.Mul(decimal.NewFromInt(100))

	var wins int
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	y, m, d := now.UTC().Date()
	for _, t := range l.trades {
		if t.NetPnl.IsPositive() {
			wins++
			grossProfit = grossProfit.Add(t.NetPnl)
		} else {
			grossLoss = grossLoss.Add(t.NetPnl.Neg())
		}
		ty, tm, td := t.ExitTime.UTC().Date()
		if ty == y && tm == m && td == d {
			snap.TradesToday++
		}
	}
	if len(l.trades) > 0 {
		snap.WinRate = float64(wins) / float64(len(l.trades))
	}
	if grossLoss.IsPositive() {
		pf, _ := grossProfit.Div(grossLoss).Float64()
		snap.ProfitFactor = pf
	} else if grossProfit.IsPositive() {
		snap.ProfitFactor = math.Inf(1)
	}

	one := decimal.NewFromInt(1)
	for _, sides := range l.open {
		for _, pos := range sides {
			snap.OpenPositions++
			price, ok := lastPrices[pos.Symbol]
			if !ok || price <= 0 {
				continue
			}
			mark := decimal.NewFromFloat(price)
			entry := decimal.NewFromFloat(pos.EntryPrice)
			qty := decimal.NewFromFloat(pos.Quantity)
			lev := decimal.NewFromInt(int64(pos.Leverage))
			slip := l.rates.Slippage

			var gross decimal.Decimal
			if pos.Side == types.Long {
				gross = mark.Mul(one.Sub(slip)).Sub(entry.Mul(one.Add(slip))).Mul(qty).Mul(lev)
			} else {
				gross = entry.Mul(one.Sub(slip)).Sub(mark.Mul(one.Add(slip))).Mul(qty).Mul(lev)
			}
			snap.UnrealizedGross = snap.UnrealizedGross.Add(gross)
		}
	}

	return snap
}
