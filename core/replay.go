package core

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REPLAY - Deterministic synchronous tick processing
// ═══════════════════════════════════════════════════════════════════════════════
//
// Replay bypasses the feed, queues and worker goroutines entirely: ticks are
// processed inline in call order, so the same tick file always produces the
// same trade log. Pair with a paper gateway in tick-time mode.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ProcessTick routes one tick to its symbol worker synchronously. Ticks for
// unconfigured symbols are skipped.
func (e *Engine) ProcessTick(tick types.Tick) error {
	w, ok := e.workers[tick.Symbol]
	if !ok {
		return nil
	}
	if err := w.processTick(tick); err != nil {
		return fmt.Errorf("replay: %s: %w", tick.Symbol, err)
	}
	return nil
}

// Replay processes a tick sequence in order and returns the count consumed.
func (e *Engine) Replay(ticks []types.Tick) (int, error) {
	for i, tick := range ticks {
		if err := e.ProcessTick(tick); err != nil {
			return i, err
		}
	}
	log.Info().Int("ticks", len(ticks)).Msg("🔁 Replay complete")
	return len(ticks), nil
}
