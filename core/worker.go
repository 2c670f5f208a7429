package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/config"
	"github.com/tickforge/straddlebot/exec"
	"github.com/tickforge/straddlebot/feeds"
	"github.com/tickforge/straddlebot/ledger"
	"github.com/tickforge/straddlebot/risk"
	"github.com/tickforge/straddlebot/strategy"
	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SYMBOL WORKER - One goroutine per symbol owns all per-symbol state
// ═══════════════════════════════════════════════════════════════════════════════
//
// The worker is the only writer of its buffer, trailing stops, cooldown
// stamp and dedup state, so none of it needs locking. The ledger is the one
// shared structure and serialises internally.
//
// Per-tick pipeline, in fixed order:
//  1. dedup / out-of-order drop
//  2. append to buffer
//  3. notify price observers (paper fills)
//  4. evaluate trailing stops, LONG before SHORT
//  5. every N ticks, run the signal generator
//  6. mirror stop state into the ledger
//
// ═══════════════════════════════════════════════════════════════════════════════

// worker drives one symbol.
type worker struct {
	symbol string
	params config.CoinParams
	cfg    *config.Config

	buf     *feeds.TickBuffer
	gen     *strategy.Generator
	book    *ledger.Ledger
	gateway exec.Gateway
	store   Store
	events  EventSink

	observers []PriceObserver

	stops       map[types.Side]*risk.TrailingStop
	lastEntryMs int64
	tickCount   int64

	// Dedup state: last accepted tick identity and timestamp.
	lastTs     int64
	lastPrice  float64
	lastVolume float64
	haveLast   bool

	dropped int64 // duplicates + out-of-order

	logger zerolog.Logger
}

func newWorker(symbol string, params config.CoinParams, cfg *config.Config, book *ledger.Ledger, gateway exec.Gateway, store Store, events EventSink, observers []PriceObserver) *worker {
	return &worker{
		symbol:    symbol,
		params:    params,
		cfg:       cfg,
		buf:       feeds.NewTickBuffer(cfg.TickBufferSize),
		gen:       strategy.NewGenerator(params),
		book:      book,
		gateway:   gateway,
		store:     store,
		events:    events,
		observers: observers,
		stops:     make(map[types.Side]*risk.TrailingStop),
		logger:    log.With().Str("symbol", symbol).Logger(),
	}
}

// run consumes the tick channel until it closes or stopCh fires.
func (w *worker) run(ticks <-chan types.Tick, stopCh <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-stopCh:
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if err := w.processTick(tick); err != nil {
				// State invariants are broken; trading on is worse than
				// stopping this symbol.
				w.logger.Error().Err(err).Msg("🛑 Worker halted on invariant violation")
				return
			}
		}
	}
}

// processTick runs the full per-tick pipeline. An error return means the
// worker's view of its positions disagrees with the ledger.
func (w *worker) processTick(tick types.Tick) error {
	if !w.accept(tick) {
		return nil
	}

	w.buf.Append(tick)
	w.tickCount++

	for _, o := range w.observers {
		o.OnTick(tick)
	}

	closedThisTick, err := w.evaluateStops(tick)
	if err != nil {
		return err
	}

	if w.tickCount%int64(w.cfg.SignalEveryTicks) == 0 {
		if err := w.evaluateSignal(tick, closedThisTick); err != nil {
			return err
		}
	}

	w.mirrorStops()
	return nil
}

// accept applies dedup and ordering. Exact duplicates of the previous tick
// arrive across reconnects; older-than-last ticks arrive from interleaved
// streams. Both are dropped.
func (w *worker) accept(tick types.Tick) bool {
	if w.haveLast {
		if tick.Timestamp < w.lastTs {
			w.dropped++
			return false
		}
		if tick.Timestamp == w.lastTs && tick.Price == w.lastPrice && tick.Volume == w.lastVolume {
			w.dropped++
			return false
		}
	}
	w.lastTs = tick.Timestamp
	w.lastPrice = tick.Price
	w.lastVolume = tick.Volume
	w.haveLast = true
	return true
}

// evaluateStops updates each open side's trailing stop and closes triggered
// positions, LONG before SHORT. Reports whether any position closed.
func (w *worker) evaluateStops(tick types.Tick) (bool, error) {
	if len(w.stops) == 0 {
		return false, nil
	}

	snap, ok := feeds.ComputeSnapshot(w.buf, w.cfg.LookbackSeconds)
	atrPct := 0.0
	if ok {
		atrPct = snap.ATRPct()
	}

	closed := false
	for _, side := range []types.Side{types.Long, types.Short} {
		ts, open := w.stops[side]
		if !open {
			continue
		}
		res, err := ts.Update(tick.Price, atrPct)
		if err != nil {
			return closed, fmt.Errorf("stop update %s %s: %w", w.symbol, side, err)
		}
		if !res.Triggered {
			continue
		}
		if err := w.closePosition(tick, side, res.Reason); err != nil {
			// Order failed; stop stays armed and re-triggers next tick.
			w.logger.Warn().Err(err).Str("side", string(side)).Msg("⚠️ Stop close failed, will retry")
			continue
		}
		closed = true
	}
	return closed, nil
}

// evaluateSignal runs the generator on its cadence and acts on the verdict.
// closedThisTick blocks re-entry on the very tick a stop fired.
func (w *worker) evaluateSignal(tick types.Tick, closedThisTick bool) error {
	snap, ok := feeds.ComputeSnapshot(w.buf, w.cfg.LookbackSeconds)
	if !ok {
		return nil
	}

	decision := w.gen.Evaluate(snap, tick.Timestamp, w.lastEntryMs, w.book.HasOpen(w.symbol))

	switch decision.Action {
	case strategy.EntryBoth:
		if closedThisTick {
			w.logger.Debug().Msg("Entry suppressed, position closed this tick")
			return nil
		}
		return w.openStraddle(tick, snap, decision)
	case strategy.CloseAll:
		return w.closeAll(tick, decision)
	}
	return nil
}

// openStraddle places both legs. The straddle is atomic: if the second leg
// fails, the first is rolled back with an immediate market close.
func (w *worker) openStraddle(tick types.Tick, snap feeds.Snapshot, decision strategy.Decision) error {
	equity, _ := w.book.Equity().Float64()
	if equity <= 0 || tick.Price <= 0 {
		return nil
	}
	quantity := equity * w.params.PositionSizeFraction / tick.Price
	if quantity <= 0 {
		return nil
	}

	signalID := uuid.New().String()
	atrPct := snap.ATRPct()

	fills := make(map[types.Side]types.Fill, 2)
	for _, side := range []types.Side{types.Long, types.Short} {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.MarketDeadline)
		fill, err := w.gateway.PlaceMarket(ctx, w.symbol, types.EntrySide(side), quantity)
		cancel()
		if err != nil {
			w.logger.Warn().Err(err).Str("side", string(side)).Msg("⚠️ Entry leg failed")
			w.rollback(fills)
			return nil
		}
		fills[side] = fill
	}

	for _, side := range []types.Side{types.Long, types.Short} {
		fill := fills[side]
		pos := &types.Position{
			ID:           uuid.New().String(),
			Symbol:       w.symbol,
			Side:         side,
			EntryPrice:   fill.Price,
			EntryTime:    fill.Timestamp,
			Quantity:     fill.Quantity,
			Leverage:     w.params.Leverage,
			SignalID:     signalID,
			ExtremePrice: fill.Price,
		}
		stop := risk.NewTrailingStop(side, fill.Price, atrPct, w.params.HardStopATRMultiplier, w.params.MinLossFloorPct)
		pos.StopPrice = stop.Stop()

		if err := w.book.Open(pos); err != nil {
			return fmt.Errorf("open %s leg: %w", side, err)
		}
		w.stops[side] = stop

		if w.store != nil {
			if err := w.store.SaveOpenPosition(*pos); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to persist open position")
			}
		}
	}

	w.lastEntryMs = tick.Timestamp
	w.logger.Info().
		Float64("price", tick.Price).
		Float64("qty", quantity).
		Float64("strength", decision.Strength).
		Str("reason", decision.Reason).
		Msg("🚀 Straddle opened")

	if w.events != nil {
		w.events.StraddleOpened(w.symbol, tick.Price, quantity, decision.Strength)
	}
	return nil
}

// rollback flattens any legs that filled before the straddle failed.
func (w *worker) rollback(fills map[types.Side]types.Fill) {
	for side, fill := range fills {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.MarketDeadline)
		_, err := w.gateway.PlaceMarket(ctx, w.symbol, types.CloseSide(side), fill.Quantity)
		cancel()
		if err != nil {
			// Manual intervention territory. Log loudly and move on.
			w.logger.Error().Err(err).Str("side", string(side)).Msg("🛑 Rollback close failed, leg may be stranded")
		} else {
			w.logger.Info().Str("side", string(side)).Msg("Entry leg rolled back")
		}
	}
}

// closeAll flattens both sides on a signal close, LONG first, and restarts
// the cooldown so the next entry cannot fire immediately after.
func (w *worker) closeAll(tick types.Tick, decision strategy.Decision) error {
	for _, side := range []types.Side{types.Long, types.Short} {
		if _, open := w.stops[side]; !open {
			continue
		}
		if err := w.closePosition(tick, side, types.ExitSignalClose); err != nil {
			w.logger.Warn().Err(err).Str("side", string(side)).Msg("⚠️ Signal close failed, will retry")
		}
	}
	w.lastEntryMs = tick.Timestamp
	w.logger.Info().Str("reason", decision.Reason).Msg("📉 Close-all signal")
	return nil
}

// closePosition settles one side through the gateway and the ledger.
func (w *worker) closePosition(tick types.Tick, side types.Side, reason types.ExitReason) error {
	pos, ok := w.book.OpenPosition(w.symbol, side)
	if !ok {
		return fmt.Errorf("close %s %s: ledger holds no position but worker tracks a stop", w.symbol, side)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.MarketDeadline)
	fill, err := w.gateway.PlaceMarket(ctx, w.symbol, types.CloseSide(side), pos.Quantity)
	cancel()
	if err != nil {
		return err
	}

	trade, err := w.book.Close(w.symbol, side, fill.Price, fill.Timestamp, reason, fill.FeeRate)
	if err != nil {
		return fmt.Errorf("ledger close %s %s: %w", w.symbol, side, err)
	}
	delete(w.stops, side)

	if w.store != nil {
		if err := w.store.SaveTrade(trade); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to persist trade")
		}
		if err := w.store.DeleteOpenPosition(pos.ID); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to delete open position record")
		}
	}
	if w.events != nil {
		w.events.TradeClosed(trade)
	}
	return nil
}

// mirrorStops copies trailing state into the ledger so persisted snapshots
// and performance reports see current stops.
func (w *worker) mirrorStops() {
	for side, ts := range w.stops {
		w.book.UpdateStop(w.symbol, side, ts.Extreme(), ts.Stop())
	}
}

// adoptPosition restores a persisted position into the worker after a
// restart. The stop resumes from the persisted extreme and stop price.
func (w *worker) adoptPosition(pos types.Position) error {
	if err := w.book.Open(&pos); err != nil {
		return err
	}
	w.stops[pos.Side] = risk.ResumeTrailingStop(pos.Side, pos.EntryPrice, pos.ExtremePrice, pos.StopPrice, w.params.HardStopATRMultiplier, w.params.MinLossFloorPct)
	w.lastEntryMs = pos.EntryTime.UnixMilli()
	w.logger.Info().Str("side", string(pos.Side)).Float64("entry", pos.EntryPrice).Msg("♻️ Resumed open position")
	return nil
}

// Dropped returns the count of ticks discarded by dedup and ordering.
func (w *worker) Dropped() int64 {
	return w.dropped
}
