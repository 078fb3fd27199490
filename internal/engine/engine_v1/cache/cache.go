// Package cache holds the market state shared by every strategy instance in
// a run: last traded prices, completed-bar series, and incrementally
// maintained indicator instances. Strategies referencing the same series pay
// for bar history and indicator computation exactly once.
package cache

import (
	"go.uber.org/zap"

	"github.com/tradelayout/tickgraph/internal/indicator"
	"github.com/tradelayout/tickgraph/internal/logger"
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// BarLoader supplies historical completed bars for a series, newest last.
// The datasource implements it for warm-up loads.
type BarLoader func(symbol string, interval types.Interval, lookback int) ([]types.Bar, error)

type seriesKey struct {
	symbol   string
	interval types.Interval
}

type indicatorEntry struct {
	inst indicator.Indicator
	// epoch is the bar count of the series when inst last consumed a bar.
	// When it matches the series length the cached value is current.
	epoch int
}

type seriesEntry struct {
	bars       []types.Bar
	indicators map[indicator.IndicatorName]*indicatorEntry
}

// Stats counts cache effectiveness over a run.
type Stats struct {
	BarHits        int
	BarMisses      int
	IndicatorHits  int
	IndicatorComps int
}

// SharedMarketCache is the single market-state store for a run. It is not
// safe for concurrent use; the engine drives it tick at a time.
type SharedMarketCache struct {
	ltp      map[string]float64
	series   map[seriesKey]*seriesEntry
	registry indicator.Registry
	loader   BarLoader
	lookback int
	stats    Stats
	logger   *logger.Logger
}

// NewSharedMarketCache builds an empty cache. loader may be nil, in which
// case series start empty and fill only from appended bars.
func NewSharedMarketCache(registry indicator.Registry, loader BarLoader, lookback int, l *logger.Logger) *SharedMarketCache {
	if l == nil {
		l = logger.NewNopLogger()
	}

	return &SharedMarketCache{
		ltp:      make(map[string]float64),
		series:   make(map[seriesKey]*seriesEntry),
		registry: registry,
		loader:   loader,
		lookback: lookback,
		logger:   l,
	}
}

// UpdateLTP records the last traded price for a symbol.
func (c *SharedMarketCache) UpdateLTP(symbol string, price float64) {
	c.ltp[symbol] = price
}

// LTP returns the last traded price for a symbol.
func (c *SharedMarketCache) LTP(symbol string) (float64, bool) {
	price, ok := c.ltp[symbol]

	return price, ok
}

// GetOrLoadBars returns the completed-bar series for (symbol, interval),
// loading warm-up history through the BarLoader on first request.
func (c *SharedMarketCache) GetOrLoadBars(symbol string, interval types.Interval) ([]types.Bar, error) {
	entry, err := c.seriesFor(symbol, interval)
	if err != nil {
		return nil, err
	}

	return entry.bars, nil
}

// AppendBar adds a sealed bar to its series. The engine calls it whenever
// the aggregator seals a bar, before any node executes on the tick.
func (c *SharedMarketCache) AppendBar(bar types.Bar) error {
	entry, err := c.seriesFor(bar.Symbol, bar.Interval)
	if err != nil {
		return err
	}

	entry.bars = append(entry.bars, bar)

	return nil
}

// PrevBar returns the most recent completed bar for (symbol, interval).
func (c *SharedMarketCache) PrevBar(symbol string, interval types.Interval) (types.Bar, bool) {
	entry, err := c.seriesFor(symbol, interval)
	if err != nil || len(entry.bars) == 0 {
		return types.Bar{}, false
	}

	return entry.bars[len(entry.bars)-1], true
}

// IndicatorValue returns the named indicator's value over the completed bars
// of (symbol, interval). The first request for a name instantiates the
// indicator and replays the series into it; later requests fold in only the
// bars appended since.
func (c *SharedMarketCache) IndicatorValue(symbol string, interval types.Interval, name string) (float64, error) {
	entry, err := c.seriesFor(symbol, interval)
	if err != nil {
		return 0, err
	}

	indName := indicator.IndicatorName(name)

	ind, ok := entry.indicators[indName]
	if !ok {
		inst, err := c.registry.New(indName)
		if err != nil {
			return 0, err
		}

		ind = &indicatorEntry{inst: inst}
		entry.indicators[indName] = ind

		c.logger.Debug("instantiated indicator",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
			zap.String("indicator", name),
		)
	}

	if ind.epoch == len(entry.bars) {
		if v, ready := ind.inst.Value(); ready {
			c.stats.IndicatorHits++

			return v, nil
		}
	}

	for _, bar := range entry.bars[ind.epoch:] {
		if _, err := ind.inst.Update(bar); err != nil && !errors.HasCode(err, errors.ErrCodeInsufficientData) {
			return 0, err
		}

		c.stats.IndicatorComps++
	}

	ind.epoch = len(entry.bars)

	v, ready := ind.inst.Value()
	if !ready {
		return 0, errors.Newf(errors.ErrCodeInsufficientData,
			"indicator %s on %s/%s still warming up after %d bars", name, symbol, interval, len(entry.bars))
	}

	return v, nil
}

// Stats returns cache hit and computation counters.
func (c *SharedMarketCache) Stats() Stats {
	return c.stats
}

// Reset drops every price, series, and indicator instance.
func (c *SharedMarketCache) Reset() {
	c.ltp = make(map[string]float64)
	c.series = make(map[seriesKey]*seriesEntry)
	c.stats = Stats{}
}

func (c *SharedMarketCache) seriesFor(symbol string, interval types.Interval) (*seriesEntry, error) {
	key := seriesKey{symbol: symbol, interval: interval}

	if entry, ok := c.series[key]; ok {
		c.stats.BarHits++

		return entry, nil
	}

	c.stats.BarMisses++

	entry := &seriesEntry{
		indicators: make(map[indicator.IndicatorName]*indicatorEntry),
	}

	if c.loader != nil && c.lookback > 0 {
		bars, err := c.loader(symbol, interval, c.lookback)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataSourceFailed, err,
				"loading warm-up bars for %s/%s", symbol, interval)
		}

		entry.bars = bars

		c.logger.Debug("loaded warm-up bars",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
			zap.Int("bars", len(bars)),
		)
	}

	c.series[key] = entry

	return entry, nil
}
