package indicator

import (
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// RSI is an incrementally updated Relative Strength Index using Wilder's
// smoothing. Warm-up needs period+1 bars (the first close only anchors the
// first delta).
type RSI struct {
	period    int
	seen      int
	prevClose float64
	gainSum   float64
	lossSum   float64
	avgGain   float64
	avgLoss   float64
	value     float64
}

// NewRSI creates a new RSI instance for the given period.
func NewRSI(period int) Indicator {
	return &RSI{period: period}
}

// Name returns the canonical name of this instance.
func (r *RSI) Name() IndicatorName {
	return FormatName("rsi", r.period)
}

// Update implements Indicator.
func (r *RSI) Update(bar types.Bar) (float64, error) {
	r.seen++

	if r.seen == 1 {
		r.prevClose = bar.Close

		return 0, errors.Newf(errors.ErrCodeInsufficientData, "rsi(%d): have 1 of %d bars", r.period, r.period+1)
	}

	delta := bar.Close - r.prevClose
	r.prevClose = bar.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	switch {
	case r.seen <= r.period:
		r.gainSum += gain
		r.lossSum += loss

		return 0, errors.Newf(errors.ErrCodeInsufficientData, "rsi(%d): have %d of %d bars", r.period, r.seen, r.period+1)
	case r.seen == r.period+1:
		r.gainSum += gain
		r.lossSum += loss
		r.avgGain = r.gainSum / float64(r.period)
		r.avgLoss = r.lossSum / float64(r.period)
	default:
		r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
	}

	if r.avgLoss == 0 {
		r.value = 100

		return r.value, nil
	}

	rs := r.avgGain / r.avgLoss
	r.value = 100 - 100/(1+rs)

	return r.value, nil
}

// Value implements Indicator.
func (r *RSI) Value() (float64, bool) {
	return r.value, r.seen > r.period
}
