package feeds

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BINANCE FUTURES TICK FEED - aggTrade WebSocket stream
// ═══════════════════════════════════════════════════════════════════════════════
//
// One combined-stream connection for all symbols. The feed owns reconnect
// logic; a tick may be duplicated across a reconnect boundary, so consumers
// dedupe on (symbol, timestamp, price, volume).
//
// ═══════════════════════════════════════════════════════════════════════════════

// BinanceFeed streams trade ticks for a set of futures symbols.
type BinanceFeed struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}

	streamURL string
	symbols   []string

	subscribers map[string][]chan types.Tick
}

// NewBinanceFeed creates a feed for the given symbols (e.g. "BTCUSDT").
func NewBinanceFeed(streamURL string, symbols []string) *BinanceFeed {
	return &BinanceFeed{
		streamURL:   streamURL,
		symbols:     symbols,
		stopCh:      make(chan struct{}),
		subscribers: make(map[string][]chan types.Tick),
	}
}

// Subscribe returns a channel of ticks for one symbol. Must be called before
// Start. The channel is buffered; slow consumers lose the oldest ticks at the
// engine's bounded queue, not here.
func (f *BinanceFeed) Subscribe(symbol string, capacity int) <-chan types.Tick {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan types.Tick, capacity)
	f.subscribers[symbol] = append(f.subscribers[symbol], ch)
	return ch
}

// Start connects and begins streaming.
func (f *BinanceFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.runLoop()
	log.Info().Strs("symbols", f.symbols).Msg("📈 Binance tick feed started")
}

// Stop closes the connection. Subscriber channels stay open but go quiet;
// consumers shut down on their own stop signal.
func (f *BinanceFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)
	log.Info().Msg("Binance tick feed stopped")
}

func (f *BinanceFeed) isRunning() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

// runLoop reconnects forever with exponential backoff until stopped.
func (f *BinanceFeed) runLoop() {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry indefinitely

	for f.isRunning() {
		err := f.streamOnce()
		if !f.isRunning() {
			break
		}
		wait := bo.NextBackOff()
		log.Warn().Err(err).Dur("retry_in", wait).Msg("⚠️ Binance stream dropped, reconnecting")
		select {
		case <-f.stopCh:
			return
		case <-time.After(wait):
		}
		if err == nil {
			bo.Reset()
		}
	}
}

// combinedStreamURL builds the multiplexed aggTrade URL.
func (f *BinanceFeed) combinedStreamURL() string {
	streams := make([]string, len(f.symbols))
	for i, s := range f.symbols {
		streams[i] = strings.ToLower(s) + "@aggTrade"
	}
	return fmt.Sprintf("%s?streams=%s", f.streamURL, strings.Join(streams, "/"))
}

type combinedStreamMsg struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type aggTradeEvent struct {
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

func (f *BinanceFeed) streamOnce() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.combinedStreamURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info().Msg("✅ Binance stream connected")

	// Close the socket when Stop is called so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-f.stopCh:
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg combinedStreamMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug().Err(err).Msg("Skipping malformed stream message")
			continue
		}
		var ev aggTradeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}

		tick, err := ev.toTick()
		if err != nil {
			log.Debug().Err(err).Str("symbol", ev.Symbol).Msg("Skipping unparsable trade event")
			continue
		}
		f.broadcast(tick)
	}
}

func (e aggTradeEvent) toTick() (types.Tick, error) {
	price, err := strconv.ParseFloat(e.Price, 64)
	if err != nil {
		return types.Tick{}, fmt.Errorf("parse price: %w", err)
	}
	qty, err := strconv.ParseFloat(e.Quantity, 64)
	if err != nil {
		return types.Tick{}, fmt.Errorf("parse quantity: %w", err)
	}
	return types.Tick{
		Symbol:       e.Symbol,
		Timestamp:    e.TradeTime,
		Price:        price,
		Volume:       qty,
		IsBuyerMaker: e.IsBuyerMaker,
	}, nil
}

func (f *BinanceFeed) broadcast(tick types.Tick) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subscribers[tick.Symbol] {
		select {
		case ch <- tick:
		default:
			// Subscriber full; engine-side queue handles drop accounting.
		}
	}
}
