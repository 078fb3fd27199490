package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tradelayout/tickgraph/internal/engine"
	"github.com/tradelayout/tickgraph/internal/logger"
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// ResultWriter persists one run's artifacts: a summary.yaml and an
// events.yaml per strategy, plus a transactions.parquet exported through an
// in-memory DuckDB table.
type ResultWriter struct {
	folder string
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
}

func NewResultWriter(folder string, l *logger.Logger) (*ResultWriter, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to open results database", err)
	}

	return &ResultWriter{
		folder: folder,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: l,
	}, nil
}

// Write persists the artifacts for one strategy under
// <folder>/<strategy_id>/.
func (w *ResultWriter) Write(summary engine.RunSummary, transactions []types.Transaction, events []types.ExecutionEvent) error {
	dir := filepath.Join(w.folder, summary.StrategyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "cannot create %s", dir)
	}

	if err := w.writeYAML(filepath.Join(dir, "summary.yaml"), summary); err != nil {
		return err
	}

	strategyEvents := make([]types.ExecutionEvent, 0, len(events))
	for _, ev := range events {
		if ev.StrategyID == summary.StrategyID {
			strategyEvents = append(strategyEvents, ev)
		}
	}

	if err := w.writeYAML(filepath.Join(dir, "events.yaml"), strategyEvents); err != nil {
		return err
	}

	if err := w.writeTransactionsParquet(dir, transactions); err != nil {
		return err
	}

	w.logger.Debug("results written",
		zap.String("strategy_id", summary.StrategyID),
		zap.String("folder", dir),
		zap.Int("transactions", len(transactions)),
	)

	return nil
}

func (w *ResultWriter) writeYAML(path string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "cannot marshal %s", path)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "cannot write %s", path)
	}

	return nil
}

func (w *ResultWriter) writeTransactionsParquet(dir string, transactions []types.Transaction) error {
	if _, err := w.db.Exec(`
		CREATE OR REPLACE TABLE transactions (
			id VARCHAR,
			position_id VARCHAR,
			node_id VARCHAR,
			symbol VARCHAR,
			side VARCHAR,
			quantity DOUBLE,
			entry_time TIMESTAMP,
			entry_price DOUBLE,
			strike DOUBLE,
			re_entry_index INTEGER,
			exit_time TIMESTAMP,
			exit_price DOUBLE,
			exit_reason VARCHAR,
			pnl DOUBLE
		);
	`); err != nil {
		return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to create transactions table", err)
	}

	for _, txn := range transactions {
		builder := w.sq.Insert("transactions").Columns(
			"id", "position_id", "node_id", "symbol", "side", "quantity",
			"entry_time", "entry_price", "strike", "re_entry_index",
			"exit_time", "exit_price", "exit_reason", "pnl",
		)

		var (
			exitTime   any
			exitPrice  any
			exitReason any
		)

		if txn.Exit.IsSome() {
			exit := txn.Exit.Unwrap()
			exitTime = exit.Time
			exitPrice = exit.Price
			exitReason = string(exit.Reason)
		}

		builder = builder.Values(
			txn.ID, txn.PositionID, txn.NodeID, txn.Symbol, string(txn.Side), txn.Quantity,
			txn.EntryTime, txn.EntryPrice, txn.Strike, txn.ReEntryIndex,
			exitTime, exitPrice, exitReason, txn.PnL(),
		)

		query, params, err := builder.ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to build transaction insert", err)
		}

		if _, err := w.db.Exec(query, params...); err != nil {
			return errors.Wrap(errors.ErrCodeResultsWriteFailed, "failed to insert transaction", err)
		}
	}

	// Squirrel has no COPY support; the path is engine-controlled.
	path := filepath.Join(dir, "transactions.parquet")
	if _, err := w.db.Exec(fmt.Sprintf(`COPY transactions TO '%s' (FORMAT PARQUET)`, path)); err != nil {
		return errors.Wrapf(errors.ErrCodeResultsWriteFailed, err, "failed to export %s", path)
	}

	return nil
}

func (w *ResultWriter) Close() error {
	return w.db.Close()
}
