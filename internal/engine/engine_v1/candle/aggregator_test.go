package candle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tradelayout/tickgraph/internal/types"
)

type AggregatorTestSuite struct {
	suite.Suite
	agg *Aggregator
}

func TestAggregatorTestSuite(t *testing.T) {
	suite.Run(t, new(AggregatorTestSuite))
}

func (s *AggregatorTestSuite) SetupTest() {
	s.agg = NewAggregator()
	s.Require().NoError(s.agg.Track("NIFTY", types.Interval1m))
}

func tick(sec int, price, volume float64) types.Tick {
	return types.Tick{
		Symbol: "NIFTY",
		Time:   time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second),
		Price:  price,
		Volume: volume,
	}
}

func (s *AggregatorTestSuite) TestTrackRejectsUnknownInterval() {
	s.Assert().Error(s.agg.Track("NIFTY", types.Interval("2m")))
}

func (s *AggregatorTestSuite) TestBuildsAndSealsBars() {
	sealed, err := s.agg.OnTick(tick(0, 100, 10))
	s.Require().NoError(err)
	s.Assert().Empty(sealed)

	sealed, err = s.agg.OnTick(tick(30, 103, 5))
	s.Require().NoError(err)
	s.Assert().Empty(sealed)

	current, ok := s.agg.Current("NIFTY", types.Interval1m)
	s.Require().True(ok)
	s.Assert().Equal(100.0, current.Open)
	s.Assert().Equal(103.0, current.High)
	s.Assert().Equal(103.0, current.Close)
	s.Assert().Equal(15.0, current.Volume)

	// First tick of the next minute seals the bar.
	sealed, err = s.agg.OnTick(tick(61, 99, 2))
	s.Require().NoError(err)
	s.Require().Len(sealed, 1)
	s.Assert().Equal(100.0, sealed[0].Open)
	s.Assert().Equal(103.0, sealed[0].High)
	s.Assert().Equal(103.0, sealed[0].Close)

	current, ok = s.agg.Current("NIFTY", types.Interval1m)
	s.Require().True(ok)
	s.Assert().Equal(99.0, current.Open)
}

func (s *AggregatorTestSuite) TestDropsStaleTicks() {
	_, err := s.agg.OnTick(tick(30, 100, 1))
	s.Require().NoError(err)

	_, err = s.agg.OnTick(tick(10, 90, 1))
	s.Require().NoError(err)

	s.Assert().Equal(1, s.agg.StaleTicks())

	current, ok := s.agg.Current("NIFTY", types.Interval1m)
	s.Require().True(ok)
	s.Assert().Equal(100.0, current.Low)
}

func (s *AggregatorTestSuite) TestIgnoresUntrackedSymbols() {
	sealed, err := s.agg.OnTick(types.Tick{Symbol: "BANKNIFTY", Time: time.Now(), Price: 1})
	s.Require().NoError(err)
	s.Assert().Empty(sealed)

	_, ok := s.agg.Current("BANKNIFTY", types.Interval1m)
	s.Assert().False(ok)
}

func (s *AggregatorTestSuite) TestMultipleIntervals() {
	s.Require().NoError(s.agg.Track("NIFTY", types.Interval5m))

	_, err := s.agg.OnTick(tick(0, 100, 1))
	s.Require().NoError(err)

	sealed, err := s.agg.OnTick(tick(65, 101, 1))
	s.Require().NoError(err)
	s.Require().Len(sealed, 1)
	s.Assert().Equal(types.Interval1m, sealed[0].Interval)

	// Crossing the 5m boundary seals both series at once.
	sealed, err = s.agg.OnTick(tick(305, 102, 1))
	s.Require().NoError(err)
	s.Require().Len(sealed, 2)
	s.Assert().Equal(types.Interval1m, sealed[0].Interval)
	s.Assert().Equal(types.Interval5m, sealed[1].Interval)
}

func (s *AggregatorTestSuite) TestFlush() {
	_, err := s.agg.OnTick(tick(0, 100, 1))
	s.Require().NoError(err)

	sealed := s.agg.Flush()
	s.Require().Len(sealed, 1)
	s.Assert().Equal(100.0, sealed[0].Close)

	_, ok := s.agg.Current("NIFTY", types.Interval1m)
	s.Assert().False(ok)
	s.Assert().Empty(s.agg.Flush())
}
