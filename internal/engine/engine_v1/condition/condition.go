// Package condition defines the evaluator capability the node graph consumes.
// The engine hands condition trees to an Evaluator opaquely; the default
// TreeEvaluator in this package is the reference implementation, but any
// grammar can be plugged in behind the interface.
package condition

import (
	"time"

	"github.com/tradelayout/tickgraph/internal/types"
)

// MarketView is the read-only slice of market state conditions can observe.
// The shared market cache implements it.
type MarketView interface {
	// LTP returns the last traded price for a symbol.
	LTP(symbol string) (float64, bool)
	// PrevBar returns the most recent completed bar for (symbol, interval).
	PrevBar(symbol string, interval types.Interval) (types.Bar, bool)
	// IndicatorValue returns the named indicator's current value for
	// (symbol, interval).
	IndicatorValue(symbol string, interval types.Interval, name string) (float64, error)
}

// VarLookup resolves a node-variable reference "<node_id>.<var>" from the
// owning strategy instance's state table.
type VarLookup func(nodeID, name string) (float64, bool)

// ExecutionContext is the environment a condition tree is evaluated against:
// the current tick, the strategy's series coordinates, market state, and the
// instance's node variables.
type ExecutionContext struct {
	Tick      types.Tick
	TickIndex int
	Now       time.Time
	Symbol    string
	Interval  types.Interval
	Market    MarketView
	Vars      VarLookup
}

// Evaluator evaluates one condition tree against a context. Implementations
// must be side-effect free; errors are downgraded by the caller to
// "condition not met".
type Evaluator interface {
	Evaluate(cond *types.Condition, ctx *ExecutionContext) (bool, error)
}
