// Package candle folds raw ticks into OHLCV bars, one building bar per
// tracked (symbol, interval) series.
package candle

import (
	"sort"

	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

type seriesKey struct {
	symbol   string
	interval types.Interval
}

type series struct {
	current  *types.Bar
	lastSeen int64 // unix nanos of the last accepted tick
}

// Aggregator builds bars incrementally from a tick stream. It is not safe
// for concurrent use; the engine drives it from a single goroutine.
type Aggregator struct {
	series     map[seriesKey]*series
	staleTicks int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		series: make(map[seriesKey]*series),
	}
}

// Track registers a (symbol, interval) series. Ticks for untracked symbols
// are ignored.
func (a *Aggregator) Track(symbol string, interval types.Interval) error {
	if !interval.Valid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "cannot track %s on interval %q", symbol, string(interval))
	}

	key := seriesKey{symbol: symbol, interval: interval}
	if _, ok := a.series[key]; !ok {
		a.series[key] = &series{}
	}

	return nil
}

// OnTick folds one tick into every tracked series for its symbol and returns
// the bars that were sealed by this tick, if any. A bar seals when a tick
// arrives whose truncated period start is later than the building bar's.
// Out-of-order ticks (older than the last accepted tick for a series) are
// dropped and counted, never folded.
func (a *Aggregator) OnTick(tick types.Tick) ([]types.Bar, error) {
	var sealed []types.Bar

	for key, s := range a.series {
		if key.symbol != tick.Symbol {
			continue
		}

		ns := tick.Time.UnixNano()
		if s.lastSeen != 0 && ns < s.lastSeen {
			a.staleTicks++
			continue
		}

		s.lastSeen = ns

		start, err := key.interval.Truncate(tick.Time)
		if err != nil {
			return nil, err
		}

		switch {
		case s.current == nil:
			bar := types.NewBarFromTick(tick, key.interval, start)
			s.current = &bar
		case start.After(s.current.Start):
			sealed = append(sealed, *s.current)
			bar := types.NewBarFromTick(tick, key.interval, start)
			s.current = &bar
		default:
			s.current.Apply(tick)
		}
	}

	// Map iteration order is random; callers append sealed bars to series
	// state, so keep the output deterministic.
	sort.Slice(sealed, func(i, j int) bool {
		if sealed[i].Symbol != sealed[j].Symbol {
			return sealed[i].Symbol < sealed[j].Symbol
		}

		return sealed[i].Interval < sealed[j].Interval
	})

	return sealed, nil
}

// Current returns the building (not yet sealed) bar for a series.
func (a *Aggregator) Current(symbol string, interval types.Interval) (types.Bar, bool) {
	s, ok := a.series[seriesKey{symbol: symbol, interval: interval}]
	if !ok || s.current == nil {
		return types.Bar{}, false
	}

	return *s.current, true
}

// Flush seals and returns every building bar, leaving every series empty.
// The final partial bars never seal through OnTick; callers that need them
// at end of stream collect them here. The engine itself squares off on the
// last traded price and does not use partial bars.
func (a *Aggregator) Flush() []types.Bar {
	var sealed []types.Bar

	for _, s := range a.series {
		if s.current != nil {
			sealed = append(sealed, *s.current)
			s.current = nil
		}
	}

	sort.Slice(sealed, func(i, j int) bool {
		if sealed[i].Symbol != sealed[j].Symbol {
			return sealed[i].Symbol < sealed[j].Symbol
		}

		return sealed[i].Interval < sealed[j].Interval
	})

	return sealed
}

// StaleTicks reports how many out-of-order ticks were dropped.
func (a *Aggregator) StaleTicks() int {
	return a.staleTicks
}
