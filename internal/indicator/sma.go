package indicator

import (
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// SMA is an incrementally updated Simple Moving Average over closes, using a
// fixed ring buffer so each bar costs O(1).
type SMA struct {
	period int
	window []float64
	next   int
	seen   int
	sum    float64
}

// NewSMA creates a new SMA instance for the given period.
func NewSMA(period int) Indicator {
	return &SMA{
		period: period,
		window: make([]float64, period),
	}
}

// Name returns the canonical name of this instance.
func (s *SMA) Name() IndicatorName {
	return FormatName("sma", s.period)
}

// Update implements Indicator.
func (s *SMA) Update(bar types.Bar) (float64, error) {
	if s.seen >= s.period {
		s.sum -= s.window[s.next]
	}

	s.window[s.next] = bar.Close
	s.sum += bar.Close
	s.next = (s.next + 1) % s.period
	s.seen++

	if s.seen < s.period {
		return 0, errors.Newf(errors.ErrCodeInsufficientData, "sma(%d): have %d of %d bars", s.period, s.seen, s.period)
	}

	return s.sum / float64(s.period), nil
}

// Value implements Indicator.
func (s *SMA) Value() (float64, bool) {
	if s.seen < s.period {
		return 0, false
	}

	return s.sum / float64(s.period), true
}
