package types

import (
	"time"

	"github.com/tradelayout/tickgraph/pkg/errors"
)

// Tick is a single trade print for a symbol.
type Tick struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	// Price is the last traded price at Time.
	Price  float64 `yaml:"price" json:"price" csv:"price"`
	Volume float64 `yaml:"volume" json:"volume" csv:"volume"`
}

// Interval is a candle timeframe.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval1d:  24 * time.Hour,
}

// Duration returns the length of one candle period for the interval.
func (i Interval) Duration() (time.Duration, error) {
	d, ok := intervalDurations[i]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeInvalidInterval, "unknown interval %q", string(i))
	}

	return d, nil
}

// Truncate rounds t down to the start of the candle period containing it.
func (i Interval) Truncate(t time.Time) (time.Time, error) {
	d, err := i.Duration()
	if err != nil {
		return time.Time{}, err
	}

	return t.Truncate(d), nil
}

// Valid reports whether the interval is one of the supported timeframes.
func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]

	return ok
}

// Bar is an OHLCV aggregate of ticks over one interval period.
type Bar struct {
	Symbol   string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Interval Interval  `yaml:"interval" json:"interval" csv:"interval"`
	Start    time.Time `yaml:"start" json:"start" csv:"start"`
	Open     float64   `yaml:"open" json:"open" csv:"open"`
	High     float64   `yaml:"high" json:"high" csv:"high"`
	Low      float64   `yaml:"low" json:"low" csv:"low"`
	Close    float64   `yaml:"close" json:"close" csv:"close"`
	Volume   float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Apply folds a tick into the bar, updating high/low/close and volume.
func (b *Bar) Apply(tick Tick) {
	if tick.Price > b.High {
		b.High = tick.Price
	}

	if tick.Price < b.Low {
		b.Low = tick.Price
	}

	b.Close = tick.Price
	b.Volume += tick.Volume
}

// NewBarFromTick opens a fresh bar seeded from a tick: open=high=low=close.
func NewBarFromTick(tick Tick, interval Interval, start time.Time) Bar {
	return Bar{
		Symbol:   tick.Symbol,
		Interval: interval,
		Start:    start,
		Open:     tick.Price,
		High:     tick.Price,
		Low:      tick.Price,
		Close:    tick.Price,
		Volume:   tick.Volume,
	}
}
