// Package orchestrator fans a batch of backtest runs out over a bounded
// worker pool and collects their results. The batch is the cross product of
// strategies, datasets, and broker configurations; every cell becomes one
// independent run sharing only the series data and the indicator cache.
package orchestrator

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stratforge/backtest/internal/backtest"
	"github.com/stratforge/backtest/internal/backtest/cache"
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/strategy"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// RunKey identifies one cell of the batch cross product.
type RunKey struct {
	Strategy string
	Dataset  string
	Config   string
}

// Descriptor is one scheduled run: a strategy factory bound to a series and a
// broker configuration.
type Descriptor struct {
	Factory strategy.Factory
	Series  *series.TimeSeries
	Config  exchange.Config
}

// Key returns the report key for this descriptor.
func (d Descriptor) Key() RunKey {
	return RunKey{
		Strategy: d.Factory.Name(),
		Dataset:  d.Series.ID(),
		Config:   d.Config.Label,
	}
}

// CrossProduct yields every combination of factory, series, and broker
// configuration in deterministic order. The sequence is lazy: large sweeps
// never materialize a descriptor slice.
func CrossProduct(factories []strategy.Factory, datasets []*series.TimeSeries, configs []exchange.Config) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, factory := range factories {
			for _, dataset := range datasets {
				for _, cfg := range configs {
					if !yield(Descriptor{Factory: factory, Series: dataset, Config: cfg}) {
						return
					}
				}
			}
		}
	}
}

// Callbacks observe run lifecycle events. Both hooks may be invoked from
// multiple workers concurrently; nil hooks are skipped.
type Callbacks struct {
	OnRunStart    func(key RunKey)
	OnRunComplete func(key RunKey, result *types.Result)
}

// Report holds the outcome of a batch, one result per scheduled run, keyed by
// RunKey. Failed and cancelled runs appear alongside completed ones, and
// completion order never affects the report.
type Report struct {
	mu      sync.Mutex
	results map[RunKey]*types.Result

	CacheStats cache.Stats
}

func newReport() *Report {
	return &Report{results: make(map[RunKey]*types.Result)}
}

func (r *Report) add(key RunKey, result *types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[key] = result
}

// Result returns the result for a key.
func (r *Report) Result(key RunKey) (*types.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, ok := r.results[key]

	return result, ok
}

// Results returns all results ordered by key (strategy, dataset, config), so
// the listing is deterministic regardless of which worker finished first.
func (r *Report) Results() []*types.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]RunKey, 0, len(r.results))
	for key := range r.results {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Strategy != b.Strategy {
			return a.Strategy < b.Strategy
		}

		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}

		return a.Config < b.Config
	})

	out := make([]*types.Result, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.results[key])
	}

	return out
}

// Len returns the number of collected results.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.results)
}

// Completed returns how many runs finished with each terminal status.
func (r *Report) Completed() (completed, failed, cancelled int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, result := range r.results {
		switch result.Status {
		case types.RunStatusCompleted:
			completed++
		case types.RunStatusFailed:
			failed++
		case types.RunStatusCancelled:
			cancelled++
		}
	}

	return completed, failed, cancelled
}

// Orchestrator schedules batches of runs.
type Orchestrator struct {
	workers   int
	cache     *cache.Cache
	log       *logger.Logger
	callbacks Callbacks
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers bounds the number of concurrent runs. Values below one fall
// back to serial execution.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		o.workers = n
	}
}

// WithCallbacks registers lifecycle hooks.
func WithCallbacks(callbacks Callbacks) Option {
	return func(o *Orchestrator) {
		o.callbacks = callbacks
	}
}

// New creates an orchestrator that shares the given cache across all runs.
func New(indicatorCache *cache.Cache, log *logger.Logger, opts ...Option) *Orchestrator {
	if indicatorCache == nil {
		indicatorCache = cache.New()
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	o := &Orchestrator{
		workers: 1,
		cache:   indicatorCache,
		log:     log,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.workers < 1 {
		o.workers = 1
	}

	return o
}

// Execute consumes the descriptor sequence and blocks until every run has
// reached a terminal state. A run failure never aborts the batch; cancelling
// ctx stops scheduling, drives in-flight runs to CANCELLED results, and
// records the runs that never started as CANCELLED too, so the report always
// covers the whole batch. Descriptors that collide on RunKey are a caller
// bug and fail the batch.
func (o *Orchestrator) Execute(ctx context.Context, descriptors iter.Seq[Descriptor]) (*Report, error) {
	o.log.Info("Batch started", zap.Int("workers", o.workers))

	report := newReport()
	seen := make(map[RunKey]struct{})
	scheduled := 0

	var dupErr error

	group := &errgroup.Group{}
	group.SetLimit(o.workers)

	for descriptor := range descriptors {
		key := descriptor.Key()

		if _, ok := seen[key]; ok {
			dupErr = errors.Newf(errors.ErrCodeInvalidConfiguration,
				"duplicate run: strategy %s on dataset %s with config %s appears twice",
				key.Strategy, key.Dataset, key.Config)

			break
		}

		seen[key] = struct{}{}
		scheduled++

		if ctx.Err() != nil {
			o.drain(key, report)

			continue
		}

		group.Go(func() error {
			if o.callbacks.OnRunStart != nil {
				o.callbacks.OnRunStart(key)
			}

			run := &backtest.Run{
				Factory: descriptor.Factory,
				Series:  descriptor.Series,
				Config:  descriptor.Config,
				Cache:   o.cache,
				Logger:  o.log,
			}

			result, err := run.Execute(ctx)
			if err != nil {
				o.log.Warn("Run did not complete",
					zap.String("strategy", key.Strategy),
					zap.String("dataset", key.Dataset),
					zap.String("config", key.Config),
					zap.Error(err),
				)
			}

			report.add(key, result)

			if o.callbacks.OnRunComplete != nil {
				o.callbacks.OnRunComplete(key, result)
			}

			return nil
		})
	}

	// Workers always return nil: per-run failures live in the report.
	_ = group.Wait()

	if dupErr != nil {
		return report, dupErr
	}

	if scheduled == 0 && ctx.Err() == nil {
		return nil, errors.New(errors.ErrCodeNoRuns, "batch contains no runs")
	}

	report.CacheStats = o.cache.Stats()

	completed, failed, cancelled := report.Completed()
	o.log.Info("Batch finished",
		zap.Int("scheduled", scheduled),
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Int("cancelled", cancelled),
		zap.Int64("cache_hits", report.CacheStats.Hits),
		zap.Int64("cache_computations", report.CacheStats.Computations),
	)

	if ctx.Err() != nil {
		return report, errors.Wrap(errors.ErrCodeRunCancelled, "batch cancelled", ctx.Err())
	}

	return report, nil
}

// drain records a run the cancellation prevented from ever starting, so the
// report still covers the full batch.
func (o *Orchestrator) drain(key RunKey, report *Report) {
	result := &types.Result{
		RunID:        uuid.New().String(),
		StrategyName: key.Strategy,
		DatasetID:    key.Dataset,
		ConfigLabel:  key.Config,
		Status:       types.RunStatusCancelled,
		Error:        "batch cancelled before run start",
	}

	report.add(key, result)

	if o.callbacks.OnRunComplete != nil {
		o.callbacks.OnRunComplete(key, result)
	}
}
