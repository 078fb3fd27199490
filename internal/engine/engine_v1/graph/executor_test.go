package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/condition"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/position"
	"github.com/tradelayout/tickgraph/internal/types"
)

type stubMarket struct {
	ltp    map[string]float64
	prev   map[string]types.Bar
	indVal map[string]float64
}

func (m *stubMarket) LTP(symbol string) (float64, bool) {
	v, ok := m.ltp[symbol]

	return v, ok
}

func (m *stubMarket) PrevBar(symbol string, interval types.Interval) (types.Bar, bool) {
	bar, ok := m.prev[symbol]

	return bar, ok
}

func (m *stubMarket) IndicatorValue(symbol string, interval types.Interval, name string) (float64, error) {
	return m.indVal[name], nil
}

type ExecutorTestSuite struct {
	suite.Suite
	market *stubMarket
	store  *position.Store
	events []types.ExecutionEvent
	ticks  int
}

func TestExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

func (s *ExecutorTestSuite) SetupTest() {
	s.market = &stubMarket{ltp: map[string]float64{"NIFTY": 100}}
	s.store = position.NewStore(nil)
	s.events = nil
	s.ticks = 0
}

func (s *ExecutorTestSuite) newExecutor(def *types.StrategyDefinition) *Executor {
	s.Require().NoError(def.Validate())

	return NewExecutor(def, condition.NewTreeEvaluator(), s.store, func(ev types.ExecutionEvent) {
		s.events = append(s.events, ev)
	}, nil)
}

// step feeds one tick at the given price through the executor.
func (s *ExecutorTestSuite) step(exec *Executor, price float64) {
	s.ticks++
	s.market.ltp["NIFTY"] = price

	ctx := &condition.ExecutionContext{
		Tick:      types.Tick{Symbol: "NIFTY", Price: price},
		TickIndex: s.ticks,
		Now:       time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC).Add(time.Duration(s.ticks) * time.Second),
		Symbol:    "NIFTY",
		Interval:  types.Interval1m,
		Market:    s.market,
		Vars:      exec.States().Var,
	}

	exec.BeginTick()
	s.Require().NoError(exec.ExecuteRoot(ctx))
}

func ltpAbove(threshold float64) *types.Condition {
	return &types.Condition{
		Op:    types.CompareGT,
		Left:  &types.Operand{Kind: types.OperandLTP},
		Right: &types.Operand{Kind: types.OperandLiteral, Value: threshold},
	}
}

func ltpBelow(threshold float64) *types.Condition {
	return &types.Condition{
		Op:    types.CompareLT,
		Left:  &types.Operand{Kind: types.OperandLTP},
		Right: &types.Operand{Kind: types.OperandLiteral, Value: threshold},
	}
}

// roundTripDef builds the canonical entry/exit/re-entry graph: the
// controller drives an entry branch and an exit branch, the exit's child
// re-entry signal re-arms both branches up to maxReEntries times.
func roundTripDef(maxReEntries int) *types.StrategyDefinition {
	return &types.StrategyDefinition{
		ID:            "round-trip",
		SchemaVersion: "1.0.0",
		Symbol:        "NIFTY",
		Interval:      types.Interval1m,
		RootNodeID:    "root",
		Nodes: []types.NodeDefinition{
			{ID: "root", Type: types.NodeTypeController, Children: []string{"entry-gate", "exit-signal"}},
			{ID: "entry-gate", Type: types.NodeTypeCondition, Children: []string{"entry"}, Config: types.NodeConfig{
				Condition: ltpAbove(100),
			}},
			{ID: "entry", Type: types.NodeTypeEntrySignal, Config: types.NodeConfig{
				VPI:      "leg-1",
				Side:     types.SideLong,
				Quantity: 50,
			}},
			{ID: "exit-signal", Type: types.NodeTypeExitSignal, Children: []string{"exit"}, Config: types.NodeConfig{
				Condition: ltpBelow(100),
			}},
			{ID: "exit", Type: types.NodeTypeExit, Children: []string{"re-entry"}, Config: types.NodeConfig{
				TargetPositionVPI: "leg-1",
			}},
			{ID: "re-entry", Type: types.NodeTypeReEntrySignal, Config: types.NodeConfig{
				MaxReEntries: maxReEntries,
				ReArmTargets: []string{"entry", "exit-signal", "exit"},
			}},
		},
	}
}

func (s *ExecutorTestSuite) countEvents(nodeID string, transition types.Transition) int {
	n := 0

	for _, ev := range s.events {
		if ev.NodeID == nodeID && ev.Transition == transition {
			n++
		}
	}

	return n
}

func (s *ExecutorTestSuite) TestEntryExitRoundTrip() {
	exec := s.newExecutor(roundTripDef(0))

	s.step(exec, 99)
	s.Assert().Empty(s.store.ListOpen())

	s.step(exec, 105)

	open := s.store.ListOpen()
	s.Require().Len(open, 1)
	txn := open[0].OpenTransaction()
	s.Require().NotNil(txn)
	s.Assert().Equal(105.0, txn.EntryPrice)
	s.Assert().Equal(0, txn.ReEntryIndex)

	s.step(exec, 95)

	closed := s.store.ListClosed()
	s.Require().Len(closed, 1)
	s.Assert().InDelta((95-105)*50.0, closed[0].RealizedPnL(), 1e-9)
	s.Assert().Equal(1, s.countEvents("entry", types.TransitionOrderPlaced))
	s.Assert().Equal(1, s.countEvents("exit", types.TransitionPositionClosed))
}

func (s *ExecutorTestSuite) TestExactlyOnceOrderPerActivationCycle() {
	exec := s.newExecutor(roundTripDef(0))

	// Entry condition stays true for many ticks; only the first places an
	// order because the node goes Inactive after completing.
	for i := 0; i < 5; i++ {
		s.step(exec, 105)
	}

	s.Assert().Equal(1, s.countEvents("entry", types.TransitionOrderPlaced))

	pos, err := s.store.Get("leg-1")
	s.Require().NoError(err)
	s.Assert().Len(pos.Transactions, 1)
}

func (s *ExecutorTestSuite) TestReEntryBound() {
	const maxReEntries = 2

	exec := s.newExecutor(roundTripDef(maxReEntries))

	// Conditions flip true on every alternating tick; entries are bounded
	// at maxReEntries+1 no matter how long the sequence runs.
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			s.step(exec, 105)
		} else {
			s.step(exec, 95)
		}
	}

	s.Assert().Equal(maxReEntries+1, s.countEvents("entry", types.TransitionOrderPlaced))
	s.Assert().Equal(1, s.countEvents("re-entry", types.TransitionExhausted))

	pos, err := s.store.Get("leg-1")
	s.Require().NoError(err)
	s.Require().Len(pos.Transactions, maxReEntries+1)

	for i, txn := range pos.Transactions {
		s.Assert().Equal(i, txn.ReEntryIndex)
		s.Assert().False(txn.IsOpen())
	}
}

func (s *ExecutorTestSuite) TestDiamondExecutesSharedChildOnce() {
	def := &types.StrategyDefinition{
		ID:            "diamond",
		SchemaVersion: "1.0.0",
		Symbol:        "NIFTY",
		Interval:      types.Interval1m,
		RootNodeID:    "root",
		Nodes: []types.NodeDefinition{
			{ID: "root", Type: types.NodeTypeController, Children: []string{"left", "right"}},
			{ID: "left", Type: types.NodeTypeCondition, Children: []string{"entry"}},
			{ID: "right", Type: types.NodeTypeCondition, Children: []string{"entry"}},
			{ID: "entry", Type: types.NodeTypeEntrySignal, Config: types.NodeConfig{
				VPI:      "leg-1",
				Side:     types.SideLong,
				Quantity: 1,
			}},
		},
	}

	exec := s.newExecutor(def)
	s.step(exec, 100)

	s.Assert().Equal(1, s.countEvents("entry", types.TransitionOrderPlaced))
	s.Assert().Equal(0, s.countEvents("entry", types.TransitionRetry))

	pos, err := s.store.Get("leg-1")
	s.Require().NoError(err)
	s.Assert().Len(pos.Transactions, 1)
}

func (s *ExecutorTestSuite) TestPriceUnavailableRetries() {
	exec := s.newExecutor(roundTripDef(0))

	delete(s.market.ltp, "NIFTY")
	s.ticks++
	ctx := &condition.ExecutionContext{
		TickIndex: s.ticks,
		Now:       time.Now(),
		Symbol:    "NIFTY",
		Interval:  types.Interval1m,
		Market:    s.market,
		Vars:      exec.States().Var,
	}
	exec.BeginTick()
	s.Require().NoError(exec.ExecuteRoot(ctx))

	// No price at all: conditions on LTP fail as retryable evaluation
	// errors, nothing is opened, and the nodes stay Active.
	s.Assert().Empty(s.store.ListOpen())
	s.Assert().Equal(StatusActive, exec.States().Get("entry-gate").Status)

	// Price shows up on the next tick and the entry goes through.
	s.step(exec, 105)
	s.Assert().Equal(1, s.countEvents("entry", types.TransitionOrderPlaced))
}

func (s *ExecutorTestSuite) TestExitRetriesOnMissingPosition() {
	def := roundTripDef(0)
	exec := s.newExecutor(def)

	// Exit condition true before any position exists: the close attempt
	// fails as retryable and the exit node stays Active.
	s.step(exec, 95)
	s.Assert().Equal(1, s.countEvents("exit", types.TransitionRetry))
	s.Assert().Equal(StatusActive, exec.States().Get("exit").Status)
	s.Assert().Equal(1, exec.RetryCountsByType()[types.NodeTypeExit])

	s.step(exec, 105)
	s.step(exec, 95)
	s.Require().Len(s.store.ListClosed(), 1)
	s.Assert().Equal(StatusInactive, exec.States().Get("exit").Status)
}

func (s *ExecutorTestSuite) TestReEntryPicksAlternateExitCondition() {
	def := roundTripDef(1)

	// Primary exit fires below 100; after the first re-entry the alternate
	// set fires below 90 instead.
	for i := range def.Nodes {
		if def.Nodes[i].ID == "exit-signal" {
			def.Nodes[i].Config.ReEntryCondition = ltpBelow(90)
		}
	}

	exec := s.newExecutor(def)

	s.step(exec, 105) // entry 0 opens
	s.step(exec, 95)  // primary exit closes, re-entry re-arms
	s.step(exec, 105) // entry 1 opens
	s.step(exec, 95)  // alternate set: 95 is not below 90, stays open

	open := s.store.ListOpen()
	s.Require().Len(open, 1)
	s.Assert().Equal(1, open[0].OpenTransaction().ReEntryIndex)

	s.step(exec, 85) // alternate set fires

	s.Assert().Empty(s.store.ListOpen())
	s.Assert().Equal(2, s.countEvents("exit", types.TransitionPositionClosed))
}

func (s *ExecutorTestSuite) TestEntryRecordsNodeVariables() {
	def := roundTripDef(0)
	for i := range def.Nodes {
		if def.Nodes[i].ID == "entry" {
			def.Nodes[i].Config.StrikeStep = 50
			def.Nodes[i].Config.StrikeOffset = 1
		}
	}

	exec := s.newExecutor(def)
	s.step(exec, 123)

	v, ok := exec.States().Var("entry", "entry_price")
	s.Require().True(ok)
	s.Assert().Equal(123.0, v)

	// round(123/50)*50 + 1*50
	strike, ok := exec.States().Var("entry", "strike")
	s.Require().True(ok)
	s.Assert().Equal(150.0, strike)

	// The resolved strike travels onto the opened transaction, not just the
	// node variables.
	open := s.store.ListOpen()
	s.Require().Len(open, 1)
	s.Assert().Equal(150.0, open[0].OpenTransaction().Strike)
	s.Assert().Equal(123.0, open[0].OpenTransaction().EntryPrice)
}
