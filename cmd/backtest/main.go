package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/tradelayout/tickgraph/internal/engine"
	engine_v1 "github.com/tradelayout/tickgraph/internal/engine/engine_v1"
	"github.com/tradelayout/tickgraph/internal/version"
	"github.com/tradelayout/tickgraph/pkg/strategy"
)

// runAction wires a configured engine and replays the tick file through
// every strategy passed on the command line.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	resultsFolder := cmd.String("output")
	strategyPaths := cmd.StringSlice("strategy")

	backtester := engine_v1.NewBacktestEngineV1()

	config := []byte("{}")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", configPath, err)
		}

		config = content
	}

	if err := backtester.Initialize(string(config)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := backtester.SetDataPath(dataPath); err != nil {
		return err
	}

	for _, path := range strategyPaths {
		if err := backtester.AddStrategyFromFile(path); err != nil {
			return fmt.Errorf("failed to load strategy %s: %w", path, err)
		}
	}

	if resultsFolder != "" {
		if err := backtester.SetResultsFolder(resultsFolder); err != nil {
			return err
		}
	}

	var bar *progressbar.ProgressBar

	backtester.SetOnTickCallback(func(current, total int) error {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Replaying ticks"),
				progressbar.OptionShowCount(),
			)
		}

		return bar.Set(current)
	})

	if err := backtester.Run(ctx); err != nil {
		return err
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	printSummaries(backtester.Summaries())

	return nil
}

func printSummaries(summaries []engine.RunSummary) {
	for _, summary := range summaries {
		fmt.Printf("strategy %s: %d ticks in %.2fs, %d trades, pnl %.2f (%d open, %d closed)\n",
			summary.StrategyID,
			summary.TicksProcessed,
			summary.ElapsedSeconds,
			summary.TradeCount,
			summary.RealizedPnL,
			len(summary.OpenPositions),
			len(summary.ClosedPositions),
		)

		for nodeType, count := range summary.RetryCounts {
			fmt.Printf("  retries %s: %d\n", nodeType, count)
		}
	}
}

// schemaAction prints the JSON schema of the engine config or of strategy
// definition files, for editor integration.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	switch kind := cmd.String("kind"); kind {
	case "config":
		config := engine_v1.EmptyConfig()
		schema, err = config.GenerateSchemaJSON()
	case "strategy":
		schema, err = strategy.DefinitionSchemaJSON()
	default:
		return fmt.Errorf("unknown schema kind %q, want config or strategy", kind)
	}

	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Replay historical ticks through node-graph trading strategies",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Tick file to replay (parquet or csv)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "strategy",
						Aliases:  []string{"s"},
						Usage:    "Strategy definition YAML (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Engine configuration YAML",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Results folder; omit to skip writing artifacts",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Print the engine config or strategy definition JSON schema",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Usage:   "Which schema to print: config or strategy",
						Value:   "config",
					},
				},
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
