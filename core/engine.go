package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/config"
	"github.com/tickforge/straddlebot/exec"
	"github.com/tickforge/straddlebot/ledger"
	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADING ENGINE - Orchestrates feed, workers, ledger, gateway
// ═══════════════════════════════════════════════════════════════════════════════

// Store persists trades and open positions. Nil disables persistence.
type Store interface {
	SaveTrade(types.Trade) error
	SaveOpenPosition(types.Position) error
	DeleteOpenPosition(id string) error
	LoadOpenPositions() ([]types.Position, error)
}

// EventSink receives trading events for notification fan-out. Nil disables
// notifications.
type EventSink interface {
	StraddleOpened(symbol string, price, quantity, strength float64)
	TradeClosed(trade types.Trade)
}

// PriceObserver sees every accepted tick before stop and signal evaluation.
// The paper gateway registers here so fills always use the current price.
type PriceObserver interface {
	OnTick(tick types.Tick)
}

// TickSource is the feed abstraction the engine consumes.
type TickSource interface {
	Subscribe(symbol string, capacity int) <-chan types.Tick
	Start()
	Stop()
}

// Engine wires the tick feed to per-symbol workers over bounded drop-oldest
// queues, so one stalled symbol never blocks the others.
type Engine struct {
	cfg     *config.Config
	params  map[string]config.CoinParams
	book    *ledger.Ledger
	gateway exec.Gateway
	store   Store
	events  EventSink

	observers []PriceObserver

	workers map[string]*worker
	queues  map[string]chan types.Tick

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	queueDrops atomic.Int64
}

// New assembles an engine. params must carry an entry for every configured
// symbol.
func New(cfg *config.Config, params map[string]config.CoinParams, book *ledger.Ledger, gateway exec.Gateway, store Store, events EventSink) (*Engine, error) {
	e := &Engine{
		cfg:     cfg,
		params:  params,
		book:    book,
		gateway: gateway,
		store:   store,
		events:  events,
		workers: make(map[string]*worker),
		queues:  make(map[string]chan types.Tick),
		stopCh:  make(chan struct{}),
	}

	if obs, ok := gateway.(PriceObserver); ok {
		e.observers = append(e.observers, obs)
	}

	for _, symbol := range cfg.Symbols {
		p, ok := params[symbol]
		if !ok {
			return nil, fmt.Errorf("engine: no coin params for %s", symbol)
		}
		e.workers[symbol] = newWorker(symbol, p, cfg, book, gateway, store, events, e.observers)
	}
	return e, nil
}

// Resume reloads persisted open positions into their workers. Call before
// Start so stops are armed before the first tick.
func (e *Engine) Resume() error {
	if e.store == nil {
		return nil
	}
	positions, err := e.store.LoadOpenPositions()
	if err != nil {
		return fmt.Errorf("engine: load open positions: %w", err)
	}
	for _, pos := range positions {
		w, ok := e.workers[pos.Symbol]
		if !ok {
			log.Warn().Str("symbol", pos.Symbol).Msg("⚠️ Persisted position for unconfigured symbol, ignoring")
			continue
		}
		if err := w.adoptPosition(pos); err != nil {
			return fmt.Errorf("engine: resume %s %s: %w", pos.Symbol, pos.Side, err)
		}
	}
	if len(positions) > 0 {
		log.Info().Int("count", len(positions)).Msg("♻️ Resumed open positions")
	}
	return nil
}

// Start subscribes every symbol and launches its worker. Each subscription
// is pumped through a bounded queue that drops the oldest tick on overflow;
// trading on the freshest price beats trading on every price.
func (e *Engine) Start(source TickSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	for symbol, w := range e.workers {
		sub := source.Subscribe(symbol, e.cfg.TickChanCapacity)
		queue := make(chan types.Tick, e.cfg.TickChanCapacity)
		e.queues[symbol] = queue

		e.wg.Add(2)
		go e.pump(sub, queue)
		go w.run(queue, e.stopCh, &e.wg)
	}

	source.Start()
	log.Info().Int("symbols", len(e.workers)).Msg("⚙️ Engine started")
}

// pump moves ticks from the feed subscription into the worker queue,
// discarding the oldest queued tick when the worker falls behind.
func (e *Engine) pump(src <-chan types.Tick, dst chan types.Tick) {
	defer e.wg.Done()
	defer close(dst)
	for {
		select {
		case <-e.stopCh:
			return
		case tick, ok := <-src:
			if !ok {
				return
			}
			select {
			case dst <- tick:
			default:
				select {
				case <-dst:
					e.queueDrops.Add(1)
				default:
				}
				select {
				case dst <- tick:
				default:
				}
			}
		}
	}
}

// Stop halts workers without flattening positions. Open positions persist
// and resume with their stops on the next start.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()

	open := e.book.OpenPositions()
	log.Info().
		Int("open_positions", len(open)).
		Int64("queue_drops", e.queueDrops.Load()).
		Msg("⚙️ Engine stopped, positions left open for resume")
}

// Performance reports account state marked to each symbol's latest buffered
// price.
func (e *Engine) Performance(now time.Time) ledger.PerformanceSnapshot {
	prices := make(map[string]float64, len(e.workers))
	for symbol, w := range e.workers {
		if last, ok := w.buf.Last(); ok {
			prices[symbol] = last.Price
		}
	}
	return e.book.Performance(now, prices)
}

// QueueDrops returns ticks discarded by backpressure across all symbols.
func (e *Engine) QueueDrops() int64 {
	return e.queueDrops.Load()
}
