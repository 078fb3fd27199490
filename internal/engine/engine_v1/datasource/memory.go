package datasource

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/tradelayout/tickgraph/internal/types"
)

// MemoryTickSource serves ticks from a slice. Used by tests and synthetic
// runs; Initialize is a no-op.
type MemoryTickSource struct {
	ticks []types.Tick
}

func NewMemoryTickSource(ticks []types.Tick) *MemoryTickSource {
	sorted := make([]types.Tick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	return &MemoryTickSource{ticks: sorted}
}

// Initialize implements TickSource.
func (m *MemoryTickSource) Initialize(path string) error {
	return nil
}

// ReadAll implements TickSource.
func (m *MemoryTickSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Tick, error) bool) {
	return func(yield func(types.Tick, error) bool) {
		for _, tick := range m.ticks {
			if start.IsSome() && tick.Time.Before(start.Unwrap()) {
				continue
			}

			if end.IsSome() && tick.Time.After(end.Unwrap()) {
				continue
			}

			if !yield(tick, nil) {
				return
			}
		}
	}
}

// Count implements TickSource.
func (m *MemoryTickSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	count := 0

	for _, tick := range m.ticks {
		if start.IsSome() && tick.Time.Before(start.Unwrap()) {
			continue
		}

		if end.IsSome() && tick.Time.After(end.Unwrap()) {
			continue
		}

		count++
	}

	return count, nil
}

// LoadBars implements TickSource by replaying the tick slice through bar
// truncation. The bound is floored to the interval so only fully completed
// periods qualify.
func (m *MemoryTickSource) LoadBars(symbol string, interval types.Interval, lookback int, before optional.Option[time.Time]) ([]types.Bar, error) {
	if lookback <= 0 {
		return nil, nil
	}

	var bound time.Time

	if before.IsSome() {
		floored, err := interval.Truncate(before.Unwrap())
		if err != nil {
			return nil, err
		}

		bound = floored
	}

	var bars []types.Bar

	for _, tick := range m.ticks {
		if before.IsSome() && !tick.Time.Before(bound) {
			break
		}

		if tick.Symbol != symbol {
			continue
		}

		start, err := interval.Truncate(tick.Time)
		if err != nil {
			return nil, err
		}

		if len(bars) == 0 || start.After(bars[len(bars)-1].Start) {
			bars = append(bars, types.NewBarFromTick(tick, interval, start))
			continue
		}

		bars[len(bars)-1].Apply(tick)
	}

	if lookback > 0 && len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}

	return bars, nil
}

// Close implements TickSource.
func (m *MemoryTickSource) Close() error {
	return nil
}
