package indicator

import (
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// EMA is an incrementally updated Exponential Moving Average. It seeds with
// the simple average of the first period closes, then applies the standard
// smoothing factor 2/(period+1).
type EMA struct {
	period int
	alpha  float64
	seen   int
	sum    float64
	value  float64
}

// NewEMA creates a new EMA instance for the given period.
func NewEMA(period int) Indicator {
	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1.0),
	}
}

// Name returns the canonical name of this instance.
func (e *EMA) Name() IndicatorName {
	return FormatName("ema", e.period)
}

// Update implements Indicator.
func (e *EMA) Update(bar types.Bar) (float64, error) {
	e.seen++

	if e.seen <= e.period {
		e.sum += bar.Close
		if e.seen < e.period {
			return 0, errors.Newf(errors.ErrCodeInsufficientData, "ema(%d): have %d of %d bars", e.period, e.seen, e.period)
		}

		e.value = e.sum / float64(e.period)

		return e.value, nil
	}

	e.value = e.alpha*bar.Close + (1-e.alpha)*e.value

	return e.value, nil
}

// Value implements Indicator.
func (e *EMA) Value() (float64, bool) {
	return e.value, e.seen >= e.period
}
