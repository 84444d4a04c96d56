package series

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// requiredColumns are the columns a tabular source must provide. The loader
// never repairs malformed input; anything missing fails the whole batch.
var requiredColumns = []string{"datetime", "open", "high", "low", "close", "volume"}

// LoadOptions controls how a tabular source is read into a TimeSeries.
type LoadOptions struct {
	// Symbol overrides the symbol attached to the series. Defaults to the
	// file name without extension.
	Symbol optional.Option[string]
	// Start and End bound the loaded window (inclusive).
	Start optional.Option[time.Time]
	End   optional.Option[time.Time]
}

// Loader reads CSV or Parquet sources into immutable TimeSeries values
// through an in-memory DuckDB instance.
type Loader struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewLoader creates a Loader backed by an in-memory DuckDB database.
func NewLoader(log *logger.Logger) (*Loader, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable, "failed to open duckdb", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Loader{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Close releases the underlying database.
func (l *Loader) Close() error {
	return l.db.Close()
}

// Load reads the source at path into a TimeSeries. CSV and Parquet are
// supported, selected by extension.
func (l *Loader) Load(path string, opts LoadOptions) (*TimeSeries, error) {
	l.logger.Debug("Loading time series", zap.String("path", path))

	reader, err := readFunction(path)
	if err != nil {
		return nil, err
	}

	// A fresh view per load; the view name is constant so loads on one
	// Loader must not run concurrently.
	if _, err := l.db.Exec(`DROP VIEW IF EXISTS bars`); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop bars view", err)
	}

	createView := fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s('%s')`, reader, path)
	if _, err := l.db.Exec(createView); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSourceUnavailable, err, "failed to read source %s", path)
	}

	if err := l.checkColumns(); err != nil {
		return nil, err
	}

	symbol := opts.Symbol.TakeOr(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	bars, err := l.readBars(symbol, opts)
	if err != nil {
		return nil, err
	}

	ts, err := New(symbol, bars)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Time series loaded",
		zap.String("symbol", symbol),
		zap.String("series_id", ts.ID()),
		zap.Int("bars", ts.Len()),
	)

	return ts, nil
}

func readFunction(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "read_csv_auto", nil
	case ".parquet":
		return "read_parquet", nil
	default:
		return "", errors.Newf(errors.ErrCodeMalformedInput, "unsupported source format: %s", path)
	}
}

// checkColumns verifies the source exposes every required column.
func (l *Loader) checkColumns() error {
	rows, err := l.db.Query(`SELECT column_name FROM information_schema.columns WHERE table_name = 'bars'`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to inspect source columns", err)
	}
	defer rows.Close()

	present := make(map[string]bool)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan column name", err)
		}

		present[strings.ToLower(name)] = true
	}

	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "error iterating columns", err)
	}

	for _, col := range requiredColumns {
		if !present[col] {
			return errors.Newf(errors.ErrCodeMissingColumn, "source is missing required column %q", col)
		}
	}

	return nil
}

func (l *Loader) readBars(symbol string, opts LoadOptions) ([]types.Bar, error) {
	// Rows are read in source order on purpose: series construction validates
	// monotonicity, and sorting here would repair a malformed source instead
	// of rejecting it.
	query := l.sq.
		Select("datetime", "open", "high", "low", "close", "volume").
		From("bars")

	if opts.Start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"datetime": opts.Start.Unwrap()})
	}

	if opts.End.IsSome() {
		query = query.Where(squirrel.LtOrEq{"datetime": opts.End.Unwrap()})
	}

	rows, err := query.RunWith(l.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		bar.Symbol = symbol
		if err := rows.Scan(&bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			// A VARCHAR datetime column means the source timestamps were
			// not parseable by the reader.
			return nil, errors.Wrap(errors.ErrCodeBadTimestamp, "failed to scan bar (unparseable datetime?)", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err)
	}

	return bars, nil
}
