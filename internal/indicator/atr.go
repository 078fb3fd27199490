package indicator

import (
	"math"

	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// ATR is an incrementally updated Average True Range using Wilder's
// smoothing. The first bar's true range is its high-low span; later bars use
// the previous close.
type ATR struct {
	period    int
	seen      int
	prevClose float64
	trSum     float64
	value     float64
}

// NewATR creates a new ATR instance for the given period.
func NewATR(period int) Indicator {
	return &ATR{period: period}
}

// Name returns the canonical name of this instance.
func (a *ATR) Name() IndicatorName {
	return FormatName("atr", a.period)
}

// Update implements Indicator.
func (a *ATR) Update(bar types.Bar) (float64, error) {
	tr := bar.High - bar.Low
	if a.seen > 0 {
		tr = math.Max(tr, math.Max(
			math.Abs(bar.High-a.prevClose),
			math.Abs(bar.Low-a.prevClose),
		))
	}

	a.prevClose = bar.Close
	a.seen++

	if a.seen <= a.period {
		a.trSum += tr
		if a.seen < a.period {
			return 0, errors.Newf(errors.ErrCodeInsufficientData, "atr(%d): have %d of %d bars", a.period, a.seen, a.period)
		}

		a.value = a.trSum / float64(a.period)

		return a.value, nil
	}

	a.value = (a.value*float64(a.period-1) + tr) / float64(a.period)

	return a.value, nil
}

// Value implements Indicator.
func (a *ATR) Value() (float64, bool) {
	return a.value, a.seen >= a.period
}
