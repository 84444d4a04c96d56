// Package backtest replays one time series through one strategy against one
// simulated exchange and reduces the outcome to a Result. Runs are the unit
// of work the orchestrator fans out.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stratforge/backtest/internal/backtest/cache"
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/strategy"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// Run binds one strategy factory to one series and one broker configuration.
// Every run gets its own strategy instance and exchange; only the series and
// the cache are shared with other runs.
type Run struct {
	Factory strategy.Factory
	Series  *series.TimeSeries
	Config  exchange.Config
	Cache   *cache.Cache
	Logger  *logger.Logger
}

// Execute replays the series bar by bar. The returned result is always
// non-nil: a strategy error or a cancellation yields a FAILED or CANCELLED
// result carrying everything recorded up to that point, never a partial
// success.
func (r *Run) Execute(ctx context.Context) (*types.Result, error) {
	started := time.Now()

	log := r.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	result := &types.Result{
		RunID:        uuid.New().String(),
		StrategyName: r.Factory.Name(),
		DatasetID:    r.Series.ID(),
		ConfigLabel:  r.Config.Label,
	}

	finish := func(status types.RunStatus, runErr error) (*types.Result, error) {
		result.Status = status
		if runErr != nil {
			result.Error = runErr.Error()
		}

		result.Runtime = time.Since(started)

		return result, runErr
	}

	ex, err := exchange.New(r.Config, log)
	if err != nil {
		return finish(types.RunStatusFailed, err)
	}

	defer ex.Close()

	collect := func() {
		result.EquityCurve = ex.EquityCurve()
		result.Trades = ex.Fills()
		result.Metrics = computeMetrics(r.Config.StartingCash, result.EquityCurve, result.Trades)
	}

	strat, err := r.Factory.New(strategy.Context{
		Series: r.Series,
		Cache:  r.Cache,
		Logger: log,
	})
	if err != nil {
		collect()

		return finish(types.RunStatusFailed,
			errors.Wrapf(errors.ErrCodeRunFailed, err, "strategy %s failed to initialize", r.Factory.Name()))
	}

	log.Debug("Run started",
		zap.String("run_id", result.RunID),
		zap.String("strategy", result.StrategyName),
		zap.String("dataset", result.DatasetID),
		zap.String("config", result.ConfigLabel),
		zap.Int("bars", r.Series.Len()),
	)

	for i, bar := range r.Series.Bars() {
		select {
		case <-ctx.Done():
			collect()

			return finish(types.RunStatusCancelled,
				errors.Wrap(errors.ErrCodeRunCancelled, "run cancelled", ctx.Err()))
		default:
		}

		if err := strat.OnBar(i, bar, ex); err != nil {
			collect()

			return finish(types.RunStatusFailed,
				errors.Wrapf(errors.ErrCodeRunFailed, err, "strategy %s failed at bar %d", strat.Name(), i))
		}

		if err := ex.Advance(bar); err != nil {
			collect()

			return finish(types.RunStatusFailed, err)
		}
	}

	ex.Close()
	collect()

	log.Debug("Run completed",
		zap.String("run_id", result.RunID),
		zap.Float64("final_equity", result.Metrics.FinalEquity),
		zap.Int("trades", result.Metrics.NumTrades),
		zap.Duration("runtime", time.Since(started)),
	)

	return finish(types.RunStatusCompleted, nil)
}
