// Package engine contains BacktestEngineV1, the tick scheduler: it replays a
// chronological tick stream through every registered strategy graph, one tick
// at a time, and collects positions, events, and run statistics.
package engine

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tradelayout/tickgraph/internal/engine"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/cache"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/candle"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/condition"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/datasource"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/graph"
	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/position"
	"github.com/tradelayout/tickgraph/internal/indicator"
	"github.com/tradelayout/tickgraph/internal/logger"
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/internal/version"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// strategyInstance is one running copy of a strategy definition with its
// exclusively owned executor and position store.
type strategyInstance struct {
	def      *types.StrategyDefinition
	executor *graph.Executor
	store    *position.Store
}

type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	log           *logger.Logger
	registry      indicator.Registry
	source        datasource.TickSource
	dataPath      string
	resultsFolder string
	callback      engine.OnTickCallback

	instances []*strategyInstance
	events    []types.ExecutionEvent
	summaries []engine.RunSummary
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:   EmptyConfig(),
		registry: indicator.DefaultRegistry(),
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeEngineConfigError, "failed to parse engine config", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(b.config.LogLevel)
	if err != nil {
		return err
	}

	b.log = log
	b.log.Debug("backtest engine initialized",
		zap.Int("warmup_bars", b.config.WarmupBars),
		zap.String("log_level", b.config.LogLevel),
	)

	return nil
}

// SetDataPath implements engine.Engine.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(errors.ErrCodeDataNotFound, err, "tick file %s not readable", path)
	}

	b.dataPath = path

	return nil
}

// SetTickSource implements engine.Engine.
func (b *BacktestEngineV1) SetTickSource(source datasource.TickSource) {
	b.source = source
}

// AddStrategy implements engine.Engine.
func (b *BacktestEngineV1) AddStrategy(def *types.StrategyDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	if err := version.CheckSchemaCompatibility(version.SchemaVersion, def.SchemaVersion); err != nil {
		return err
	}

	for _, inst := range b.instances {
		if inst.def.ID == def.ID {
			return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s already registered", def.ID)
		}
	}

	b.instances = append(b.instances, &strategyInstance{def: def})

	return nil
}

// AddStrategyFromFile implements engine.Engine.
func (b *BacktestEngineV1) AddStrategyFromFile(path string) error {
	def, err := types.LoadStrategyDefinition(path)
	if err != nil {
		return err
	}

	return b.AddStrategy(def)
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "cannot create results folder %s", path)
	}

	b.resultsFolder = path

	return nil
}

// SetOnTickCallback implements engine.Engine.
func (b *BacktestEngineV1) SetOnTickCallback(callback engine.OnTickCallback) {
	b.callback = callback
}

// Summaries implements engine.Engine.
func (b *BacktestEngineV1) Summaries() []engine.RunSummary {
	return b.summaries
}

// Events implements engine.Engine.
func (b *BacktestEngineV1) Events() []types.ExecutionEvent {
	return b.events
}

func (b *BacktestEngineV1) preRunCheck() error {
	if b.log == nil {
		return errors.New(errors.ErrCodeEngineNotReady, "engine not initialized")
	}

	if len(b.instances) == 0 {
		return errors.New(errors.ErrCodeEngineNotReady, "no strategies registered")
	}

	if b.source == nil && b.dataPath == "" {
		return errors.New(errors.ErrCodeEngineNotReady, "no tick source configured")
	}

	return nil
}

// Run implements engine.Engine. Each tick runs to completion before the next
// is admitted: cache and aggregator update first, then every matching
// strategy's graph executes depth-first from its root. That phase ordering
// gives a total order of side effects matching tick arrival order.
func (b *BacktestEngineV1) Run(ctx context.Context) error {
	if err := b.preRunCheck(); err != nil {
		return err
	}

	source := b.source
	if source == nil {
		duck, err := datasource.NewDuckDBTickSource("", b.log)
		if err != nil {
			return err
		}

		if err := duck.Initialize(b.dataPath); err != nil {
			return err
		}

		defer duck.Close()

		source = duck
	}

	total, err := source.Count(b.config.StartTime, b.config.EndTime)
	if err != nil {
		return err
	}

	// Warm-up loads are bounded by the run's start time so the cache never
	// sees bars from inside the replay window. Without a start time the
	// replay begins at the first tick and no pre-run history exists.
	loadBars := func(symbol string, interval types.Interval, lookback int) ([]types.Bar, error) {
		if b.config.StartTime.IsNone() {
			return nil, nil
		}

		return source.LoadBars(symbol, interval, lookback, b.config.StartTime)
	}

	marketCache := cache.NewSharedMarketCache(b.registry, loadBars, b.config.WarmupBars, b.log)
	aggregator := candle.NewAggregator()
	evaluator := condition.NewTreeEvaluator()

	b.events = nil
	b.summaries = nil

	sink := func(ev types.ExecutionEvent) {
		b.events = append(b.events, ev)
	}

	for _, inst := range b.instances {
		if err := aggregator.Track(inst.def.Symbol, inst.def.Interval); err != nil {
			return err
		}

		// Warm-up bars reach the cache before the first tick.
		if _, err := marketCache.GetOrLoadBars(inst.def.Symbol, inst.def.Interval); err != nil {
			return err
		}

		inst.store = position.NewStore(b.log)
		inst.executor = graph.NewExecutor(inst.def, evaluator, inst.store, sink, b.log)
	}

	startedAt := time.Now()

	var (
		tickIndex int
		lastTick  types.Tick
		runErr    error
		squared   bool
	)

	source.ReadAll(b.config.StartTime, b.config.EndTime)(func(tick types.Tick, err error) bool {
		if err != nil {
			runErr = err

			return false
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = ctxErr

			return false
		}

		// Session end: square off everything at this tick's price, then stop
		// admitting ticks.
		if b.config.SessionEnd.IsSome() && !tick.Time.Before(b.config.SessionEnd.Unwrap()) {
			marketCache.UpdateLTP(tick.Symbol, tick.Price)
			b.squareOff(tick.Time, marketCache)

			squared = true

			return false
		}

		tickIndex++
		lastTick = tick

		// Phase 1: market state. All cache mutation happens before any node
		// executes on this tick.
		marketCache.UpdateLTP(tick.Symbol, tick.Price)

		sealed, aggErr := aggregator.OnTick(tick)
		if aggErr != nil {
			runErr = aggErr

			return false
		}

		for _, bar := range sealed {
			if appendErr := marketCache.AppendBar(bar); appendErr != nil {
				runErr = appendErr

				return false
			}
		}

		// Phase 2: graph execution, depth-first per instance.
		for _, inst := range b.instances {
			if inst.def.Symbol != tick.Symbol {
				continue
			}

			execCtx := &condition.ExecutionContext{
				Tick:      tick,
				TickIndex: tickIndex,
				Now:       tick.Time,
				Symbol:    inst.def.Symbol,
				Interval:  inst.def.Interval,
				Market:    marketCache,
				Vars:      inst.executor.States().Var,
			}

			inst.executor.BeginTick()

			if execErr := inst.executor.ExecuteRoot(execCtx); execErr != nil {
				runErr = errors.Wrapf(errors.GetCode(execErr), execErr, "strategy %s aborted", inst.def.ID)

				return false
			}
		}

		if b.callback != nil {
			if cbErr := b.callback(tickIndex, total); cbErr != nil {
				runErr = cbErr

				return false
			}
		}

		return true
	})

	if runErr != nil {
		return runErr
	}

	// End of stream behaves like session end: open positions never outlive
	// the run.
	if !squared && tickIndex > 0 {
		b.squareOff(lastTick.Time, marketCache)
	}

	elapsed := time.Since(startedAt)
	stats := marketCache.Stats()

	for _, inst := range b.instances {
		closed := inst.store.ListClosed()

		b.summaries = append(b.summaries, engine.RunSummary{
			StrategyID:      inst.def.ID,
			TicksProcessed:  tickIndex,
			ElapsedSeconds:  elapsed.Seconds(),
			TradeCount:      len(inst.store.Transactions()),
			RealizedPnL:     inst.store.RealizedPnL(),
			OpenPositions:   inst.store.ListOpen(),
			ClosedPositions: closed,
			RetryCounts:     inst.executor.RetryCountsByType(),
			CacheBarHits:    stats.BarHits,
			CacheBarMisses:  stats.BarMisses,
			StaleTicks:      aggregator.StaleTicks(),
		})
	}

	b.log.Info("run complete",
		zap.Int("ticks", tickIndex),
		zap.Duration("elapsed", elapsed),
		zap.Int("strategies", len(b.instances)),
		zap.Int("events", len(b.events)),
	)

	if b.resultsFolder != "" {
		return b.writeResults()
	}

	return nil
}

// squareOff force-closes every open position at the current cached price
// with reason session_end. It runs even when no exit node fired.
func (b *BacktestEngineV1) squareOff(at time.Time, marketCache *cache.SharedMarketCache) {
	for _, inst := range b.instances {
		for _, pos := range inst.store.ListOpen() {
			open := pos.OpenTransaction()
			if open == nil {
				continue
			}

			price, ok := marketCache.LTP(open.Symbol)
			if !ok {
				price = open.EntryPrice
			}

			if _, err := inst.store.Close(pos.VPI, price, at, types.ExitReasonSessionEnd); err != nil {
				b.log.Warn("square-off failed",
					zap.String("strategy_id", inst.def.ID),
					zap.String("vpi", pos.VPI),
					zap.Error(err),
				)

				continue
			}

			b.events = append(b.events, types.ExecutionEvent{
				Time:       at,
				StrategyID: inst.def.ID,
				NodeID:     "",
				Transition: types.TransitionPositionClosed,
				Reason:     string(types.ExitReasonSessionEnd),
			})
		}
	}
}

func (b *BacktestEngineV1) writeResults() error {
	writer, err := NewResultWriter(b.resultsFolder, b.log)
	if err != nil {
		return err
	}

	defer writer.Close()

	for i, inst := range b.instances {
		if err := writer.Write(b.summaries[i], inst.store.Transactions(), b.events); err != nil {
			return err
		}
	}

	return nil
}
