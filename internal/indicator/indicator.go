package indicator

import "github.com/tradelayout/tickgraph/internal/types"

// IndicatorName identifies an indicator formula plus its parameters, e.g.
// "ema(21)". Names are the cache keys strategies reference in conditions.
type IndicatorName string

// Indicator is an incrementally updated technical indicator. One instance
// tracks one (symbol, interval) series; the market cache owns instances so
// every strategy sharing a series pays the computation once.
type Indicator interface {
	// Name returns the canonical name of this instance.
	Name() IndicatorName
	// Update folds one completed bar into the indicator state and returns the
	// current value. Returns ErrCodeInsufficientData until the warm-up period
	// has been seen.
	Update(bar types.Bar) (float64, error)
	// Value returns the last computed value without mutating state. The
	// second return is false during warm-up.
	Value() (float64, bool)
}
