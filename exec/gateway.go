package exec

import (
	"context"
	"fmt"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXECUTION GATEWAY - Order placement abstraction
// ═══════════════════════════════════════════════════════════════════════════════
//
// The engine never talks to an exchange directly. Everything goes through a
// Gateway so the trading logic runs unchanged against paper fills, replay
// fills, or a live connector.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrorKind classifies a gateway failure for the retry layer.
type ErrorKind int

const (
	// Transient failures are safe to retry: network blips, rate limits.
	Transient ErrorKind = iota
	// Rejected orders failed validation at the venue; retrying is pointless.
	Rejected
	// UnfilledTimeout means a limit order rested past its deadline unfilled.
	UnfilledTimeout
	// Timeout means the order deadline elapsed before an acknowledgement.
	Timeout
	// Exhausted means the retry budget ran out on transient failures.
	Exhausted
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "TRANSIENT"
	case Rejected:
		return "REJECTED"
	case UnfilledTimeout:
		return "UNFILLED_TIMEOUT"
	case Timeout:
		return "TIMEOUT"
	case Exhausted:
		return "EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// OrderError wraps a gateway failure with its retry classification.
type OrderError struct {
	Kind ErrorKind
	Op   string // "market" or "limit"
	Err  error
}

func (e *OrderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exec: %s order %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("exec: %s order %s: %v", e.Op, e.Kind, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

// Retryable reports whether the retry layer may attempt the order again.
func (e *OrderError) Retryable() bool { return e.Kind == Transient }

// Gateway places orders. Implementations must be safe for concurrent use by
// multiple symbol workers.
type Gateway interface {
	// PlaceMarket executes at the best available price. The context carries
	// the order deadline.
	PlaceMarket(ctx context.Context, symbol string, side types.OrderSide, quantity float64) (types.Fill, error)

	// PlaceLimit rests an order at the given price and waits for a fill
	// until the context deadline; an unfilled expiry is an UnfilledTimeout.
	PlaceLimit(ctx context.Context, symbol string, side types.OrderSide, quantity, price float64) (types.Fill, error)
}
