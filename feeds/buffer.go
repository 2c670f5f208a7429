package feeds

import (
	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TICK BUFFER - Bounded ring of recent ticks, one per symbol
// ═══════════════════════════════════════════════════════════════════════════════
//
// Exclusively owned by its symbol worker: no locking here by construction.
// Window operations fail silently (empty slice) when the buffer cannot
// satisfy them; callers decide whether to skip indicator computation.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TickBuffer is a fixed-capacity ordered sequence of the most recent ticks.
type TickBuffer struct {
	ticks []types.Tick
	head  int // index of oldest element
	size  int
}

// NewTickBuffer creates a buffer with the given capacity.
func NewTickBuffer(capacity int) *TickBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &TickBuffer{ticks: make([]types.Tick, capacity)}
}

// Append adds a tick, evicting the oldest when full. O(1).
func (b *TickBuffer) Append(t types.Tick) {
	if b.size < len(b.ticks) {
		b.ticks[(b.head+b.size)%len(b.ticks)] = t
		b.size++
		return
	}
	b.ticks[b.head] = t
	b.head = (b.head + 1) % len(b.ticks)
}

// Len returns the number of buffered ticks.
func (b *TickBuffer) Len() int {
	return b.size
}

// Last returns the newest tick and whether the buffer is non-empty.
func (b *TickBuffer) Last() (types.Tick, bool) {
	if b.size == 0 {
		return types.Tick{}, false
	}
	return b.at(b.size - 1), true
}

// Recent returns the last k ticks, oldest first. Returns an empty slice when
// fewer than k ticks are buffered.
func (b *TickBuffer) Recent(k int) []types.Tick {
	if k <= 0 || b.size < k {
		return nil
	}
	out := make([]types.Tick, k)
	for i := 0; i < k; i++ {
		out[i] = b.at(b.size - k + i)
	}
	return out
}

// Since returns all ticks within [newest-seconds, newest], oldest first.
// "Now" is the newest tick's timestamp, not wall clock. Returns an empty
// slice when the buffer spans less than the requested window.
func (b *TickBuffer) Since(seconds int) []types.Tick {
	if b.size == 0 {
		return nil
	}
	newest := b.at(b.size - 1).Timestamp
	if b.SpanSeconds() < float64(seconds) {
		return nil
	}
	cutoff := newest - int64(seconds)*1000

	// Binary search for the first tick at or after the cutoff.
	lo, hi := 0, b.size
	for lo < hi {
		mid := (lo + hi) / 2
		if b.at(mid).Timestamp < cutoff {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	out := make([]types.Tick, b.size-lo)
	for i := lo; i < b.size; i++ {
		out[i-lo] = b.at(i)
	}
	return out
}

// SpanSeconds is the time covered by the buffer, newest minus oldest.
func (b *TickBuffer) SpanSeconds() float64 {
	if b.size < 2 {
		return 0
	}
	return float64(b.at(b.size-1).Timestamp-b.at(0).Timestamp) / 1000.0
}

// at returns the i-th buffered tick in logical (oldest-first) order.
func (b *TickBuffer) at(i int) types.Tick {
	return b.ticks[(b.head+i)%len(b.ticks)]
}
