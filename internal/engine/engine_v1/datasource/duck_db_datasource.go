package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/tradelayout/tickgraph/internal/logger"
	"github.com/tradelayout/tickgraph/internal/types"
	"github.com/tradelayout/tickgraph/pkg/errors"
)

// DuckDBTickSource serves ticks from a parquet or csv file through an
// in-process DuckDB view.
type DuckDBTickSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBTickSource opens the backing database. path may be an on-disk
// database file or empty for in-memory. Initialize() must be called before
// reading.
func NewDuckDBTickSource(path string, l *logger.Logger) (*DuckDBTickSource, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to open duckdb", err)
	}

	_, err = db.Exec(`
		SET memory_limit='4GB';
		SET threads=4;
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to configure duckdb", err)
	}

	return &DuckDBTickSource{
		db:     db,
		logger: l,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements TickSource.
func (d *DuckDBTickSource) Initialize(path string) error {
	d.logger.Debug("initializing duckdb tick source", zap.String("path", path))

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS ticks;`); err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to drop existing view", err)
	}

	reader := "read_parquet"
	if strings.HasSuffix(path, ".csv") {
		reader = "read_csv_auto"
	}

	// CREATE VIEW has no placeholder support; the path comes from config,
	// not user input.
	query := fmt.Sprintf(`
		CREATE VIEW ticks AS
		SELECT symbol, time, price, volume FROM %s('%s');
	`, reader, path)

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceFailed, err, "failed to create tick view over %s", path)
	}

	return nil
}

// Count implements TickSource.
func (d *DuckDBTickSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	builder := d.sq.Select("COUNT(*)").From("ticks")
	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, params, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, params...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count ticks", err)
	}

	return count, nil
}

// ReadAll implements TickSource with batched reads so large tick files do
// not live in memory all at once.
func (d *DuckDBTickSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Tick, error) bool) {
	const batchSize = 10000

	return func(yield func(types.Tick, error) bool) {
		offset := uint64(0)

		for {
			builder := d.sq.Select("symbol", "time", "price", "volume").
				From("ticks").
				OrderBy("time ASC, symbol ASC").
				Limit(batchSize).
				Offset(offset)

			if start.IsSome() {
				builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
			}

			if end.IsSome() {
				builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
			}

			query, params, err := builder.ToSql()
			if err != nil {
				yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build tick query", err))

				return
			}

			rows, err := d.db.Query(query, params...)
			if err != nil {
				yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read ticks", err))

				return
			}

			read := 0

			for rows.Next() {
				var tick types.Tick
				if err := rows.Scan(&tick.Symbol, &tick.Time, &tick.Price, &tick.Volume); err != nil {
					rows.Close()
					yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan tick", err))

					return
				}

				read++

				if !yield(tick, nil) {
					rows.Close()

					return
				}
			}

			if err := rows.Err(); err != nil {
				rows.Close()
				yield(types.Tick{}, errors.Wrap(errors.ErrCodeQueryFailed, "tick iteration failed", err))

				return
			}

			rows.Close()

			if read < batchSize {
				return
			}

			offset += batchSize
		}
	}
}

// LoadBars implements TickSource by bucketing ticks into completed bars with
// DuckDB's time_bucket and returning the most recent lookback of them,
// oldest first. A set bound is floored to the interval so only fully
// completed buckets qualify.
func (d *DuckDBTickSource) LoadBars(symbol string, interval types.Interval, lookback int, before optional.Option[time.Time]) ([]types.Bar, error) {
	duration, err := interval.Duration()
	if err != nil {
		return nil, err
	}

	minutes := int(duration.Minutes())

	tickFilter := "symbol = $1"
	params := []any{symbol, lookback}

	if before.IsSome() {
		bound, truncErr := interval.Truncate(before.Unwrap())
		if truncErr != nil {
			return nil, truncErr
		}

		tickFilter += " AND time < $3"
		params = append(params, bound)
	}

	query := fmt.Sprintf(`
		WITH buckets AS MATERIALIZED (
			SELECT
				time_bucket(INTERVAL '%d minutes', time) as bucket_time,
				symbol,
				FIRST_VALUE(price) OVER w as open,
				MAX(price) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time), symbol) as high,
				MIN(price) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time), symbol) as low,
				LAST_VALUE(price) OVER (w ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) as close,
				SUM(volume) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time), symbol) as volume
			FROM ticks
			WHERE %s
			WINDOW w AS (PARTITION BY time_bucket(INTERVAL '%d minutes', time), symbol ORDER BY time)
		)
		SELECT DISTINCT bucket_time, symbol, open, high, low, close, volume
		FROM buckets
		ORDER BY bucket_time DESC
		LIMIT $2
	`, minutes, minutes, minutes, minutes, tickFilter, minutes)

	rows, err := d.db.Query(query, params...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to load bars for %s/%s", symbol, interval)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		bar := types.Bar{Interval: interval}
		if err := rows.Scan(&bar.Start, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "bar iteration failed", err)
	}

	// Newest-first from the query; callers expect oldest-first.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

// Close implements TickSource.
func (d *DuckDBTickSource) Close() error {
	return d.db.Close()
}
