package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/tradelayout/tickgraph/internal/engine"
	"github.com/tradelayout/tickgraph/internal/types"
)

type ResultWriterTestSuite struct {
	suite.Suite
	folder string
	writer *ResultWriter
}

func TestResultWriterTestSuite(t *testing.T) {
	suite.Run(t, new(ResultWriterTestSuite))
}

func (s *ResultWriterTestSuite) SetupTest() {
	s.folder = s.T().TempDir()

	writer, err := NewResultWriter(s.folder, nil)
	s.Require().NoError(err)

	s.writer = writer
}

func (s *ResultWriterTestSuite) TearDownTest() {
	s.Require().NoError(s.writer.Close())
}

func (s *ResultWriterTestSuite) TestWriteArtifacts() {
	now := time.Date(2024, 1, 2, 9, 16, 0, 0, time.UTC)

	summary := engine.RunSummary{
		StrategyID:     "breakout",
		TicksProcessed: 3,
		TradeCount:     1,
		RealizedPnL:    -500,
	}

	transactions := []types.Transaction{
		{
			ID:         "txn-1",
			PositionID: "leg-1",
			NodeID:     "entry",
			Symbol:     "NIFTY",
			Side:       types.SideLong,
			Quantity:   50,
			EntryTime:  now,
			EntryPrice: 105,
			Exit: optional.Some(types.ExitFill{
				Time:   now.Add(time.Minute),
				Price:  95,
				Reason: types.ExitReasonSignal,
			}),
		},
		{
			ID:         "txn-2",
			PositionID: "leg-2",
			NodeID:     "entry",
			Symbol:     "NIFTY",
			Side:       types.SideShort,
			Quantity:   25,
			EntryTime:  now,
			EntryPrice: 105,
		},
	}

	events := []types.ExecutionEvent{
		{Tick: 2, Time: now, StrategyID: "breakout", NodeID: "entry", Transition: types.TransitionOrderPlaced},
		{Tick: 2, Time: now, StrategyID: "other", NodeID: "entry", Transition: types.TransitionOrderPlaced},
	}

	s.Require().NoError(s.writer.Write(summary, transactions, events))

	dir := filepath.Join(s.folder, "breakout")

	summaryData, err := os.ReadFile(filepath.Join(dir, "summary.yaml"))
	s.Require().NoError(err)
	s.Assert().Contains(string(summaryData), "strategy_id: breakout")
	s.Assert().Contains(string(summaryData), "realized_pnl: -500")

	// Events from other strategies are filtered out.
	eventsData, err := os.ReadFile(filepath.Join(dir, "events.yaml"))
	s.Require().NoError(err)
	s.Assert().Contains(string(eventsData), "node_id: entry")
	s.Assert().NotContains(string(eventsData), "other")

	info, err := os.Stat(filepath.Join(dir, "transactions.parquet"))
	s.Require().NoError(err)
	s.Assert().Greater(info.Size(), int64(0))
}
