// Package engine defines the backtest engine surface consumed by the CLI.
package engine

import (
	"context"

	"github.com/tradelayout/tickgraph/internal/engine/engine_v1/datasource"
	"github.com/tradelayout/tickgraph/internal/types"
)

// OnTickCallback is called after every processed tick. Returning an error
// aborts the run.
type OnTickCallback func(current int, total int) error

// RunSummary is the per-strategy outcome of a completed run.
type RunSummary struct {
	StrategyID      string                 `yaml:"strategy_id" json:"strategy_id"`
	TicksProcessed  int                    `yaml:"ticks_processed" json:"ticks_processed"`
	ElapsedSeconds  float64                `yaml:"elapsed_seconds" json:"elapsed_seconds"`
	TradeCount      int                    `yaml:"trade_count" json:"trade_count"`
	RealizedPnL     float64                `yaml:"realized_pnl" json:"realized_pnl"`
	OpenPositions   []types.Position       `yaml:"open_positions" json:"open_positions"`
	ClosedPositions []types.Position       `yaml:"closed_positions" json:"closed_positions"`
	RetryCounts     map[types.NodeType]int `yaml:"retry_counts,omitempty" json:"retry_counts,omitempty"`
	CacheBarHits    int                    `yaml:"cache_bar_hits" json:"cache_bar_hits"`
	CacheBarMisses  int                    `yaml:"cache_bar_misses" json:"cache_bar_misses"`
	StaleTicks      int                    `yaml:"stale_ticks" json:"stale_ticks"`
}

// Engine replays a tick stream through one or more strategy graphs.
type Engine interface {
	// Initialize configures the engine from YAML content.
	Initialize(config string) error
	// SetDataPath points the engine at a tick file (parquet or csv).
	SetDataPath(path string) error
	// SetTickSource injects a tick source directly, bypassing SetDataPath.
	SetTickSource(source datasource.TickSource)
	// AddStrategy registers a validated strategy definition.
	AddStrategy(def *types.StrategyDefinition) error
	// AddStrategyFromFile loads, validates, and registers a strategy.
	AddStrategyFromFile(path string) error
	// SetResultsFolder sets where run artifacts are written.
	SetResultsFolder(path string) error
	// SetOnTickCallback registers a per-tick progress callback.
	SetOnTickCallback(callback OnTickCallback)
	// Run replays the stream to completion or context cancellation.
	Run(ctx context.Context) error
	// Summaries returns the per-strategy outcomes of the last Run.
	Summaries() []RunSummary
	// Events returns the execution events collected during the last Run.
	Events() []types.ExecutionEvent
}
