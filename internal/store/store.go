// Package store persists batch results into DuckDB and exports them to
// Parquet and YAML artifacts.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// ResultStore accumulates run results in an embedded DuckDB database. It is
// written to by the collector goroutine only, after workers have finished, so
// it carries no locking.
type ResultStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewResultStore opens an in-memory store.
func NewResultStore(log *logger.Logger) (*ResultStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to open result store", err)
	}

	store := &ResultStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *ResultStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			strategy_name TEXT,
			dataset_id TEXT,
			config_label TEXT,
			status TEXT,
			error TEXT,
			starting_cash DOUBLE,
			final_equity DOUBLE,
			total_return DOUBLE,
			max_drawdown DOUBLE,
			sharpe_ratio DOUBLE,
			win_rate DOUBLE,
			num_trades INTEGER,
			total_fees DOUBLE,
			realized_pnl DOUBLE,
			runtime_ms BIGINT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to create runs table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT,
			order_id TEXT,
			symbol TEXT,
			side TEXT,
			quantity DOUBLE,
			price DOUBLE,
			commission DOUBLE,
			executed_at TIMESTAMP,
			strategy_name TEXT,
			pnl DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to create trades table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS equity (
			run_id TEXT,
			time TIMESTAMP,
			equity DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to create equity table", err)
	}

	return nil
}

// Insert records one run with its trades and equity curve.
func (s *ResultStore) Insert(result *types.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to begin transaction", err)
	}

	m := result.Metrics

	_, err = s.sq.
		Insert("runs").
		Columns(
			"run_id", "strategy_name", "dataset_id", "config_label", "status", "error",
			"starting_cash", "final_equity", "total_return", "max_drawdown", "sharpe_ratio",
			"win_rate", "num_trades", "total_fees", "realized_pnl", "runtime_ms",
		).
		Values(
			result.RunID, result.StrategyName, result.DatasetID, result.ConfigLabel,
			string(result.Status), result.Error,
			m.StartingCash, m.FinalEquity, m.TotalReturn, m.MaxDrawdown, m.SharpeRatio,
			m.WinRate, m.NumTrades, m.TotalFees, m.RealizedPnL, result.Runtime.Milliseconds(),
		).
		RunWith(tx).
		Exec()
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to insert run", err)
	}

	for _, trade := range result.Trades {
		_, err = s.sq.
			Insert("trades").
			Columns(
				"run_id", "order_id", "symbol", "side", "quantity", "price",
				"commission", "executed_at", "strategy_name", "pnl",
			).
			Values(
				result.RunID, trade.OrderID, trade.Symbol, string(trade.Side), trade.Quantity,
				trade.Price, trade.Commission, trade.Time, trade.StrategyName, trade.PnL,
			).
			RunWith(tx).
			Exec()
		if err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeStoreFailed, "failed to insert trade", err)
		}
	}

	for _, point := range result.EquityCurve {
		_, err = s.sq.
			Insert("equity").
			Columns("run_id", "time", "equity").
			Values(result.RunID, point.Time, point.Equity).
			RunWith(tx).
			Exec()
		if err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeStoreFailed, "failed to insert equity point", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to commit result", err)
	}

	return nil
}

// InsertAll records a slice of results.
func (s *ResultStore) InsertAll(results []*types.Result) error {
	for _, result := range results {
		if err := s.Insert(result); err != nil {
			return err
		}
	}

	return nil
}

// Count returns the number of stored runs.
func (s *ResultStore) Count() (int, error) {
	var count int

	err := s.sq.
		Select("COUNT(*)").
		From("runs").
		RunWith(s.db).
		QueryRow().
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreFailed, "failed to count runs", err)
	}

	return count, nil
}

// BestRuns returns the run IDs of completed runs ordered by the given metric
// column, best first.
func (s *ResultStore) BestRuns(metric string, limit int) ([]string, error) {
	switch metric {
	case "sharpe_ratio", "total_return", "final_equity", "win_rate", "realized_pnl":
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown ranking metric %q", metric)
	}

	rows, err := s.sq.
		Select("run_id").
		From("runs").
		Where(squirrel.Eq{"status": string(types.RunStatusCompleted)}).
		OrderBy(metric + " DESC").
		Limit(uint64(limit)).
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to query best runs", err)
	}

	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to scan run id", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to iterate best runs", err)
	}

	return ids, nil
}

// Export writes the batch artifacts into folder: one Parquet file per table
// and a YAML summary of every run.
func (s *ResultStore) Export(folder string, results []*types.Result) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to create results folder %s", folder)
	}

	// Squirrel has no COPY support, so the exports stay raw SQL.
	for _, table := range []string{"runs", "trades", "equity"} {
		path := filepath.Join(folder, table+".parquet")

		if _, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, path)); err != nil {
			return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to export %s", table)
		}
	}

	summaries := make([]types.Summary, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, result.Summarize())
	}

	summaryPath := filepath.Join(folder, "summary.yaml")
	if err := types.WriteSummaries(summaryPath, summaries); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to write summaries", err)
	}

	s.logger.Info("Results exported",
		zap.String("folder", folder),
		zap.Int("runs", len(results)),
	)

	return nil
}

// Close releases the database.
func (s *ResultStore) Close() error {
	return s.db.Close()
}
