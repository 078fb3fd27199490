// Package datasource provides the historical tick store behind a run:
// a DuckDB-backed source for parquet/csv files and an in-memory source for
// tests.
package datasource

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/tradelayout/tickgraph/internal/types"
)

// TickSource is a chronological tick stream plus the historical bar loads
// the market cache performs on cold start.
type TickSource interface {
	// Initialize points the source at a tick file. Parquet and CSV are
	// supported; the file must carry symbol, time, price, volume columns.
	Initialize(path string) error
	// ReadAll yields ticks in time order, optionally bounded by start/end.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Tick, error) bool)
	// Count returns the number of ticks in the optional time range.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// LoadBars aggregates the most recent lookback completed bars for
	// (symbol, interval), oldest first. When before is set, only bars whose
	// period ends at or before that time are returned, so a bounded load
	// never contains data from inside the replay window.
	LoadBars(symbol string, interval types.Interval, lookback int, before optional.Option[time.Time]) ([]types.Bar, error)
	// Close releases the source's resources.
	Close() error
}
