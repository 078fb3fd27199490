package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tradelayout/tickgraph/internal/indicator"
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	cache    *SharedMarketCache
	loaded   int
	warmBars []types.Bar
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func (s *CacheTestSuite) SetupTest() {
	s.loaded = 0
	s.warmBars = barSeries("NIFTY", types.Interval1m, []float64{100, 101, 102})

	loader := func(symbol string, interval types.Interval, lookback int) ([]types.Bar, error) {
		s.loaded++

		if symbol != "NIFTY" || interval != types.Interval1m {
			return nil, nil
		}

		return s.warmBars, nil
	}

	s.cache = NewSharedMarketCache(indicator.DefaultRegistry(), loader, 50, nil)
}

func barSeries(symbol string, interval types.Interval, closes []float64) []types.Bar {
	start := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	bars := make([]types.Bar, 0, len(closes))

	for i, c := range closes {
		bars = append(bars, types.Bar{
			Symbol:   symbol,
			Interval: interval,
			Start:    start.Add(time.Duration(i) * time.Minute),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   100,
		})
	}

	return bars
}

func (s *CacheTestSuite) TestLTP() {
	_, ok := s.cache.LTP("NIFTY")
	s.Assert().False(ok)

	s.cache.UpdateLTP("NIFTY", 105.5)

	price, ok := s.cache.LTP("NIFTY")
	s.Require().True(ok)
	s.Assert().Equal(105.5, price)
}

func (s *CacheTestSuite) TestLoadsWarmupOnce() {
	bars, err := s.cache.GetOrLoadBars("NIFTY", types.Interval1m)
	s.Require().NoError(err)
	s.Assert().Len(bars, 3)
	s.Assert().Equal(1, s.loaded)

	_, err = s.cache.GetOrLoadBars("NIFTY", types.Interval1m)
	s.Require().NoError(err)
	s.Assert().Equal(1, s.loaded)

	stats := s.cache.Stats()
	s.Assert().Equal(1, stats.BarMisses)
	s.Assert().Equal(1, stats.BarHits)
}

func (s *CacheTestSuite) TestAppendBarAndPrevBar() {
	_, ok := s.cache.PrevBar("BANKNIFTY", types.Interval1m)
	s.Assert().False(ok)

	sealed := barSeries("NIFTY", types.Interval1m, []float64{103})[0]
	s.Require().NoError(s.cache.AppendBar(sealed))

	prev, ok := s.cache.PrevBar("NIFTY", types.Interval1m)
	s.Require().True(ok)
	s.Assert().Equal(103.0, prev.Close)

	bars, err := s.cache.GetOrLoadBars("NIFTY", types.Interval1m)
	s.Require().NoError(err)
	s.Assert().Len(bars, 4)
}

func (s *CacheTestSuite) TestIndicatorReplayAndMemoization() {
	_, err := s.cache.IndicatorValue("NIFTY", types.Interval1m, "sma(3)")
	s.Require().NoError(err)

	v, err := s.cache.IndicatorValue("NIFTY", types.Interval1m, "sma(3)")
	s.Require().NoError(err)
	s.Assert().InDelta(101.0, v, 1e-9)

	stats := s.cache.Stats()
	s.Assert().Equal(3, stats.IndicatorComps)
	s.Assert().Equal(1, stats.IndicatorHits)

	// Appending a bar advances the series; the next request folds in only
	// the new bar.
	s.Require().NoError(s.cache.AppendBar(barSeries("NIFTY", types.Interval1m, []float64{106})[0]))

	v, err = s.cache.IndicatorValue("NIFTY", types.Interval1m, "sma(3)")
	s.Require().NoError(err)
	s.Assert().InDelta(103.0, v, 1e-9)
	s.Assert().Equal(4, s.cache.Stats().IndicatorComps)
}

func (s *CacheTestSuite) TestIndicatorWarmup() {
	_, err := s.cache.IndicatorValue("NIFTY", types.Interval1m, "sma(10)")
	s.Require().Error(err)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeInsufficientData))
}

func (s *CacheTestSuite) TestUnknownIndicator() {
	_, err := s.cache.IndicatorValue("NIFTY", types.Interval1m, "vwap(20)")
	s.Require().Error(err)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeIndicatorNotFound))
}

func (s *CacheTestSuite) TestReset() {
	s.cache.UpdateLTP("NIFTY", 100)
	_, err := s.cache.GetOrLoadBars("NIFTY", types.Interval1m)
	s.Require().NoError(err)

	s.cache.Reset()

	_, ok := s.cache.LTP("NIFTY")
	s.Assert().False(ok)
	s.Assert().Equal(Stats{}, s.cache.Stats())

	// Series reload after a reset.
	_, err = s.cache.GetOrLoadBars("NIFTY", types.Interval1m)
	s.Require().NoError(err)
	s.Assert().Equal(2, s.loaded)
}

func (s *CacheTestSuite) TestNilLoaderStartsEmpty() {
	c := NewSharedMarketCache(indicator.DefaultRegistry(), nil, 0, nil)

	bars, err := c.GetOrLoadBars("NIFTY", types.Interval1m)
	s.Require().NoError(err)
	s.Assert().Empty(bars)
}
