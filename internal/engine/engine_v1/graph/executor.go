package graph

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/condition"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/position"
	"github.com/tradelayout/tickgraph/internal/logger"
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// PositionBook is the slice of the position store the executor mutates.
type PositionBook interface {
	Open(req position.OpenRequest) (types.Transaction, error)
	Close(vpi string, price float64, at time.Time, reason types.ExitReason) (types.Transaction, error)
}

// EventSink receives one structured record per node transition. A nil sink
// discards events.
type EventSink func(types.ExecutionEvent)

// Executor drives one strategy instance's node graph. It owns the instance's
// StateTable; market data and the condition grammar come in through the
// evaluator context, position mutations go out through the PositionBook.
//
// The executor is single-threaded: the scheduler calls BeginTick then
// ExecuteRoot once per tick, never concurrently.
type Executor struct {
	def       *types.StrategyDefinition
	states    *StateTable
	evaluator condition.Evaluator
	positions PositionBook
	sink      EventSink
	logger    *logger.Logger

	retryByType map[types.NodeType]int
}

func NewExecutor(
	def *types.StrategyDefinition,
	evaluator condition.Evaluator,
	positions PositionBook,
	sink EventSink,
	l *logger.Logger,
) *Executor {
	if l == nil {
		l = logger.NewNopLogger()
	}

	return &Executor{
		def:         def,
		states:      NewStateTable(def),
		evaluator:   evaluator,
		positions:   positions,
		sink:        sink,
		logger:      l,
		retryByType: make(map[types.NodeType]int),
	}
}

// States exposes the instance's state table, for variable lookups and
// reporting.
func (e *Executor) States() *StateTable {
	return e.states
}

// RetryCountsByType reports transient-failure counts per node type.
func (e *Executor) RetryCountsByType() map[types.NodeType]int {
	out := make(map[types.NodeType]int, len(e.retryByType))
	for k, v := range e.retryByType {
		out[k] = v
	}

	return out
}

// BeginTick clears every node's visited flag. Must be called before
// ExecuteRoot on each tick.
func (e *Executor) BeginTick() {
	e.states.ResetVisited()
}

// ExecuteRoot runs one depth-first pass over the graph starting at the root.
// All per-node failures are downgraded to no-ops for this tick; only
// backing-store failures propagate.
func (e *Executor) ExecuteRoot(ctx *condition.ExecutionContext) error {
	return e.execute(e.def.RootNodeID, ctx)
}

// execute runs one node's per-tick logic. The visited flag makes this
// idempotent within a tick regardless of how many parents reach the node.
func (e *Executor) execute(id string, ctx *condition.ExecutionContext) error {
	st := e.states.Get(id)
	if st.Visited {
		return nil
	}

	st.Visited = true

	if st.Status != StatusActive {
		return nil
	}

	node, _ := e.def.Node(id)

	var (
		completed bool
		runKids   bool
		err       error
	)

	switch node.Type {
	case types.NodeTypeController:
		runKids = true
	case types.NodeTypeCondition:
		completed, runKids, err = e.runCondition(node, st, ctx)
	case types.NodeTypeEntrySignal:
		completed, runKids, err = e.runEntrySignal(node, st, ctx)
	case types.NodeTypeExitSignal:
		completed, runKids, err = e.runExitSignal(node, st, ctx)
	case types.NodeTypeExit:
		completed, runKids, err = e.runExit(node, st, ctx)
	case types.NodeTypeReEntrySignal:
		completed, err = e.runReEntrySignal(node, st, ctx)
	default:
		return errors.Newf(errors.ErrCodeUnknownNodeType, "execute: node %s has unknown type %q", id, string(node.Type))
	}

	if err != nil {
		if fatal(err) {
			return err
		}

		// Transient failures leave the node Active for the next tick.
		st.RetryCount++
		e.retryByType[node.Type]++
		e.emit(ctx, id, transitionFor(err), err.Error())
		e.logger.Debug("node retry",
			zap.String("strategy_id", e.def.ID),
			zap.String("node_id", id),
			zap.Error(err),
		)

		return nil
	}

	if completed {
		st.Status = StatusInactive
		e.emit(ctx, id, types.TransitionCompleted, "")
	}

	if runKids {
		for _, child := range node.Children {
			e.activate(child, ctx)

			if err := e.execute(child, ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// activate moves a Pending child to Active. Active children are left alone;
// Inactive children stay Inactive until a re-entry signal re-arms them.
func (e *Executor) activate(id string, ctx *condition.ExecutionContext) {
	st := e.states.Get(id)
	if st.Status != StatusPending {
		return
	}

	st.Status = StatusActive
	e.emit(ctx, id, types.TransitionActivated, "")
}

func (e *Executor) runCondition(node types.NodeDefinition, st *NodeState, ctx *condition.ExecutionContext) (bool, bool, error) {
	met, err := e.evalCondition(node.Config.Condition, ctx)
	if err != nil {
		return false, false, err
	}

	if !met {
		return false, false, nil
	}

	return node.Config.FireOnce, true, nil
}

func (e *Executor) runEntrySignal(node types.NodeDefinition, st *NodeState, ctx *condition.ExecutionContext) (bool, bool, error) {
	met, err := e.evalCondition(node.Config.Condition, ctx)
	if err != nil || !met {
		return false, false, err
	}

	ltp, ok := ctx.Market.LTP(ctx.Symbol)
	if !ok {
		return false, false, errors.Newf(errors.ErrCodePriceUnavailable, "entry node %s: no price for %s", node.ID, ctx.Symbol)
	}

	strike := resolveStrike(ltp, node.Config.StrikeStep, node.Config.StrikeOffset)

	txn, err := e.positions.Open(position.OpenRequest{
		VPI:          node.Config.VPI,
		NodeID:       node.ID,
		Symbol:       ctx.Symbol,
		Side:         node.Config.Side,
		Quantity:     node.Config.Quantity,
		Price:        ltp,
		Strike:       strike,
		Time:         ctx.Now,
		ReEntryIndex: st.ReEntryNum,
	})
	if err != nil {
		return false, false, err
	}

	st.OrderRef = optional.Some(txn.ID)
	st.Vars["entry_price"] = ltp
	st.Vars["strike"] = strike
	st.Vars["re_entry_num"] = float64(st.ReEntryNum)

	e.emit(ctx, node.ID, types.TransitionOrderPlaced, txn.ID)
	e.logger.Info("order placed",
		zap.String("strategy_id", e.def.ID),
		zap.String("node_id", node.ID),
		zap.String("vpi", node.Config.VPI),
		zap.Float64("price", ltp),
		zap.Float64("strike", strike),
		zap.Int("re_entry_index", st.ReEntryNum),
	)

	return true, true, nil
}

// runExitSignal picks which condition set applies: once the lineage is in a
// re-entry window (reEntryNum > 0) and an alternate set is configured, the
// alternate wins. The signal itself never touches positions; it only arms
// its exit children.
func (e *Executor) runExitSignal(node types.NodeDefinition, st *NodeState, ctx *condition.ExecutionContext) (bool, bool, error) {
	cond := node.Config.Condition
	if st.ReEntryNum > 0 && node.Config.ReEntryCondition != nil {
		cond = node.Config.ReEntryCondition
	}

	met, err := e.evalCondition(cond, ctx)
	if err != nil || !met {
		return false, false, err
	}

	return node.Config.FireOnce, true, nil
}

func (e *Executor) runExit(node types.NodeDefinition, st *NodeState, ctx *condition.ExecutionContext) (bool, bool, error) {
	ltp, ok := ctx.Market.LTP(ctx.Symbol)
	if !ok {
		return false, false, errors.Newf(errors.ErrCodePriceUnavailable, "exit node %s: no price for %s", node.ID, ctx.Symbol)
	}

	reason := node.Config.ExitReason
	if reason == "" {
		reason = types.ExitReasonSignal
	}

	txn, err := e.positions.Close(node.Config.TargetPositionVPI, ltp, ctx.Now, reason)
	if err != nil {
		return false, false, err
	}

	st.Vars["exit_price"] = ltp

	e.emit(ctx, node.ID, types.TransitionPositionClosed, txn.ID)
	e.logger.Info("position closed",
		zap.String("strategy_id", e.def.ID),
		zap.String("node_id", node.ID),
		zap.String("vpi", node.Config.TargetPositionVPI),
		zap.Float64("price", ltp),
		zap.Float64("pnl", txn.PnL()),
	)

	return true, true, nil
}

// runReEntrySignal is the single choke point bounding orders per lineage. It
// re-arms its targets at most MaxReEntries times, then goes Inactive for the
// rest of the run.
func (e *Executor) runReEntrySignal(node types.NodeDefinition, st *NodeState, ctx *condition.ExecutionContext) (bool, error) {
	met, err := e.evalCondition(node.Config.Condition, ctx)
	if err != nil || !met {
		return false, err
	}

	if st.ReEntryNum >= node.Config.MaxReEntries {
		e.emit(ctx, node.ID, types.TransitionExhausted, "max re-entries reached")
		e.logger.Info("re-entry exhausted",
			zap.String("strategy_id", e.def.ID),
			zap.String("node_id", node.ID),
			zap.Int("re_entry_num", st.ReEntryNum),
		)

		return true, nil
	}

	st.ReEntryNum++
	e.reArm(node.Config.ReArmTargets, st.ReEntryNum, ctx)
	e.emit(ctx, node.ID, types.TransitionReArmed, "")

	// Back to Pending so the next exit cycle can trigger it again. The
	// counter persists across re-arms; only exhaustion retires the node.
	st.Status = StatusPending

	return false, nil
}

// reArm resets a subgraph for another entry cycle: targets go Active,
// their descendants go back to Pending, and everyone picks up the new
// re-entry count so strike and price resolution use the new index. Visited
// flags are left alone: a node that already ran this tick does not run again.
func (e *Executor) reArm(targets []string, count int, ctx *condition.ExecutionContext) {
	descendants := make(map[string]bool)
	for _, target := range targets {
		e.collectDescendants(target, descendants)
	}

	inTargets := make(map[string]bool, len(targets))
	for _, target := range targets {
		inTargets[target] = true
	}

	for _, target := range targets {
		st := e.states.Get(target)
		st.Status = StatusActive
		st.OrderRef = optional.None[string]()
		st.ReEntryNum = count
	}

	for id := range descendants {
		if inTargets[id] {
			continue
		}

		st := e.states.Get(id)
		st.Status = StatusPending
		st.OrderRef = optional.None[string]()
		st.ReEntryNum = count
	}
}

// collectDescendants gathers the strict descendants of id over children
// edges. The load-time cycle check makes unbounded recursion impossible.
func (e *Executor) collectDescendants(id string, out map[string]bool) {
	node, ok := e.def.Node(id)
	if !ok {
		return
	}

	for _, child := range node.Children {
		if out[child] {
			continue
		}

		out[child] = true
		e.collectDescendants(child, out)
	}
}

// evalCondition treats a nil tree as unconditionally true. Evaluator errors
// are tagged as condition-evaluation failures so they stay transient.
func (e *Executor) evalCondition(cond *types.Condition, ctx *condition.ExecutionContext) (bool, error) {
	if cond == nil {
		return true, nil
	}

	met, err := e.evaluator.Evaluate(cond, ctx)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeUnknown {
			return false, errors.Wrap(errors.ErrCodeConditionEvaluation, "condition evaluation failed", err)
		}

		return false, err
	}

	return met, nil
}

func (e *Executor) emit(ctx *condition.ExecutionContext, nodeID string, transition types.Transition, reason string) {
	if e.sink == nil {
		return
	}

	e.sink(types.ExecutionEvent{
		Tick:       ctx.TickIndex,
		Time:       ctx.Now,
		StrategyID: e.def.ID,
		NodeID:     nodeID,
		Transition: transition,
		Reason:     reason,
	})
}

// fatal reports whether a node failure must abort the run instead of being
// downgraded to a per-tick no-op.
func fatal(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeDataSourceFailed, errors.ErrCodeQueryFailed, errors.ErrCodeUnknownNodeType:
		return true
	default:
		return false
	}
}

func transitionFor(err error) types.Transition {
	if errors.HasCode(err, errors.ErrCodeConditionEvaluation) {
		return types.TransitionEvalError
	}

	return types.TransitionRetry
}

// resolveStrike rounds the reference price to the instrument's strike
// granularity and applies the configured offset. A zero step trades the
// reference price itself.
func resolveStrike(ltp, step float64, offset int) float64 {
	if step <= 0 {
		return ltp
	}

	return math.Round(ltp/step)*step + float64(offset)*step
}
