package condition

import (
	"strings"

	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// TreeEvaluator is the default condition evaluator: boolean AND/OR/NOT over
// comparisons of market, indicator, node-variable and literal operands.
type TreeEvaluator struct{}

// NewTreeEvaluator creates the default evaluator.
func NewTreeEvaluator() Evaluator {
	return &TreeEvaluator{}
}

// Evaluate implements Evaluator.
func (e *TreeEvaluator) Evaluate(cond *types.Condition, ctx *ExecutionContext) (bool, error) {
	if cond == nil {
		return false, errors.New(errors.ErrCodeConditionEvaluation, "nil condition")
	}

	if ctx == nil || ctx.Market == nil {
		return false, errors.New(errors.ErrCodeConditionEvaluation, "nil execution context")
	}

	switch {
	case len(cond.All) > 0:
		for i := range cond.All {
			ok, err := e.Evaluate(&cond.All[i], ctx)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	case len(cond.Any) > 0:
		for i := range cond.Any {
			ok, err := e.Evaluate(&cond.Any[i], ctx)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	case cond.Not != nil:
		ok, err := e.Evaluate(cond.Not, ctx)
		if err != nil {
			return false, err
		}

		return !ok, nil
	}

	return e.compare(cond, ctx)
}

func (e *TreeEvaluator) compare(cond *types.Condition, ctx *ExecutionContext) (bool, error) {
	if cond.Left == nil || cond.Right == nil {
		return false, errors.New(errors.ErrCodeConditionEvaluation, "comparison is missing an operand")
	}

	left, err := e.resolve(cond.Left, ctx)
	if err != nil {
		return false, err
	}

	right, err := e.resolve(cond.Right, ctx)
	if err != nil {
		return false, err
	}

	switch cond.Op {
	case types.CompareGT:
		return left > right, nil
	case types.CompareGTE:
		return left >= right, nil
	case types.CompareLT:
		return left < right, nil
	case types.CompareLTE:
		return left <= right, nil
	case types.CompareEQ:
		return left == right, nil
	case types.CompareNEQ:
		return left != right, nil
	default:
		return false, errors.Newf(errors.ErrCodeConditionEvaluation, "unknown comparison operator %q", string(cond.Op))
	}
}

func (e *TreeEvaluator) resolve(op *types.Operand, ctx *ExecutionContext) (float64, error) {
	switch op.Kind {
	case types.OperandLiteral:
		return op.Value, nil
	case types.OperandLTP:
		symbol := op.Name
		if symbol == "" {
			symbol = ctx.Symbol
		}

		ltp, ok := ctx.Market.LTP(symbol)
		if !ok {
			return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no ltp for %s", symbol)
		}

		return ltp, nil
	case types.OperandPrevOpen, types.OperandPrevHigh, types.OperandPrevLow, types.OperandPrevClose, types.OperandPrevVolume:
		bar, ok := ctx.Market.PrevBar(ctx.Symbol, ctx.Interval)
		if !ok {
			return 0, errors.Newf(errors.ErrCodeNoBarsAvailable, "no completed bar for %s:%s", ctx.Symbol, string(ctx.Interval))
		}

		return barField(bar, op.Kind), nil
	case types.OperandIndicator:
		return ctx.Market.IndicatorValue(ctx.Symbol, ctx.Interval, op.Name)
	case types.OperandNodeVar:
		if ctx.Vars == nil {
			return 0, errors.New(errors.ErrCodeConditionEvaluation, "no node variables in context")
		}

		nodeID, varName, ok := strings.Cut(op.Name, ".")
		if !ok {
			return 0, errors.Newf(errors.ErrCodeConditionEvaluation, "node_var reference %q is not <node_id>.<var>", op.Name)
		}

		value, found := ctx.Vars(nodeID, varName)
		if !found {
			return 0, errors.Newf(errors.ErrCodeConditionEvaluation, "node variable %q not set", op.Name)
		}

		return value, nil
	default:
		return 0, errors.Newf(errors.ErrCodeConditionEvaluation, "unknown operand kind %q", string(op.Kind))
	}
}

func barField(bar types.Bar, kind types.OperandKind) float64 {
	switch kind {
	case types.OperandPrevOpen:
		return bar.Open
	case types.OperandPrevHigh:
		return bar.High
	case types.OperandPrevLow:
		return bar.Low
	case types.OperandPrevVolume:
		return bar.Volume
	default:
		return bar.Close
	}
}
