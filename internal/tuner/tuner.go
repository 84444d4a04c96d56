package tuner

import (
	"context"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/stratforge/backtest/internal/backtest/cache"
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/orchestrator"
	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/strategy"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// Objective scores a completed run. Higher is better.
type Objective struct {
	Name  string
	Score func(*types.Result) float64
}

// ObjectiveSharpe ranks candidates by annualized Sharpe ratio.
func ObjectiveSharpe() Objective {
	return Objective{
		Name:  "sharpe_ratio",
		Score: func(r *types.Result) float64 { return r.Metrics.SharpeRatio },
	}
}

// ObjectiveTotalReturn ranks candidates by total return.
func ObjectiveTotalReturn() Objective {
	return Objective{
		Name:  "total_return",
		Score: func(r *types.Result) float64 { return r.Metrics.TotalReturn },
	}
}

// Evaluation is one scored candidate.
type Evaluation struct {
	Candidate Candidate
	Result    *types.Result
	Score     float64
}

// Tuner evaluates parameter candidates for a single strategy over one series
// and one broker configuration. All candidate runs share the indicator cache,
// so overlapping parameter values pay for their indicators once.
type Tuner struct {
	Registry     *strategy.Registry
	StrategyName string
	Objective    Objective
	Workers      int
	Cache        *cache.Cache
	Logger       *logger.Logger
}

// Evaluate runs every candidate and returns evaluations ranked best first.
// Candidates whose runs failed are dropped from the ranking; if none survive,
// the error carries the first failure observed. Ties on score break by
// candidate label so the ranking is deterministic.
func (t *Tuner) Evaluate(ctx context.Context, ts *series.TimeSeries, cfg exchange.Config, candidates []Candidate) ([]Evaluation, error) {
	if len(candidates) == 0 {
		return nil, errors.New(errors.ErrCodeEmptySpace, "no candidates to evaluate")
	}

	log := t.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	indicatorCache := t.Cache
	if indicatorCache == nil {
		indicatorCache = cache.New()
	}

	descriptors := make([]orchestrator.Descriptor, 0, len(candidates))
	byStrategy := make(map[string]Candidate, len(candidates))

	for _, candidate := range candidates {
		factory, err := t.Registry.Build(t.StrategyName, candidate)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeNoFeasibleParams, err,
				"candidate %s is not buildable", candidate.Label())
		}

		// Evaluations map back to candidates through the factory name, so two
		// candidates must never build identically named strategies.
		if prev, ok := byStrategy[factory.Name()]; ok {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter,
				"candidates %s and %s build the same strategy %q",
				prev.Label(), candidate.Label(), factory.Name())
		}

		byStrategy[factory.Name()] = candidate
		descriptors = append(descriptors, orchestrator.Descriptor{
			Factory: factory,
			Series:  ts,
			Config:  cfg,
		})
	}

	log.Info("Tuning started",
		zap.String("strategy", t.StrategyName),
		zap.String("objective", t.Objective.Name),
		zap.Int("candidates", len(descriptors)),
	)

	pool := orchestrator.New(indicatorCache, log, orchestrator.WithWorkers(t.Workers))

	report, err := pool.Execute(ctx, slices.Values(descriptors))
	if err != nil {
		return nil, err
	}

	evaluations := make([]Evaluation, 0, len(candidates))

	var firstFailure error

	for _, result := range report.Results() {
		if result.Status != types.RunStatusCompleted {
			if firstFailure == nil && result.Error != "" {
				firstFailure = errors.Newf(errors.ErrCodeRunFailed, "%s: %s", result.StrategyName, result.Error)
			}

			continue
		}

		evaluations = append(evaluations, Evaluation{
			Candidate: byStrategy[result.StrategyName],
			Result:    result,
			Score:     t.Objective.Score(result),
		})
	}

	if len(evaluations) == 0 {
		return nil, errors.Wrap(errors.ErrCodeNoFeasibleParams,
			"no candidate produced a completed run", firstFailure)
	}

	sort.Slice(evaluations, func(i, j int) bool {
		if evaluations[i].Score != evaluations[j].Score {
			return evaluations[i].Score > evaluations[j].Score
		}

		return evaluations[i].Candidate.Label() < evaluations[j].Candidate.Label()
	})

	log.Info("Tuning finished",
		zap.String("strategy", t.StrategyName),
		zap.String("best", evaluations[0].Candidate.Label()),
		zap.Float64("score", evaluations[0].Score),
	)

	return evaluations, nil
}
