package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/stratforge/backtest/internal/backtest/cache"
	"github.com/stratforge/backtest/internal/config"
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/orchestrator"
	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/store"
	"github.com/stratforge/backtest/internal/strategy"
	"github.com/stratforge/backtest/internal/tuner"
	"github.com/stratforge/backtest/internal/types"
)

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run batches of trading strategy backtests",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Execute the batch described by a YAML config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the batch configuration file",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Show a progress bar",
						Value: true,
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the batch configuration",
				Action: schemaAction,
			},
			{
				Name:  "strategies",
				Usage: "List the registered strategies",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					for _, name := range strategy.DefaultRegistry().Names() {
						fmt.Println(name)
					}

					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}

	fmt.Println(string(schema))

	return nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	registry := strategy.DefaultRegistry()

	factories, err := cfg.Factories(registry)
	if err != nil {
		return err
	}

	brokers, err := cfg.BrokerConfigs()
	if err != nil {
		return err
	}

	datasets, err := loadDatasets(cfg, log)
	if err != nil {
		return err
	}

	descriptors := orchestrator.CrossProduct(factories, datasets, brokers)
	totalRuns := len(factories) * len(datasets) * len(brokers)

	var callbacks orchestrator.Callbacks

	if cmd.Bool("progress") {
		bar := progressbar.Default(int64(totalRuns), "backtesting")
		callbacks.OnRunComplete = func(key orchestrator.RunKey, result *types.Result) {
			_ = bar.Add(1)
		}
	}

	indicatorCache := cache.New()
	if cfg.CacheCapacity > 0 {
		indicatorCache = cache.NewWithCapacity(cfg.CacheCapacity)
	}

	pool := orchestrator.New(indicatorCache, log,
		orchestrator.WithWorkers(cfg.Workers),
		orchestrator.WithCallbacks(callbacks),
	)

	report, err := pool.Execute(ctx, descriptors)
	if err != nil {
		return err
	}

	results := report.Results()

	resultStore, err := store.NewResultStore(log)
	if err != nil {
		return err
	}
	defer resultStore.Close()

	if err := resultStore.InsertAll(results); err != nil {
		return err
	}

	if err := resultStore.Export(cfg.ResultsFolder, results); err != nil {
		return err
	}

	if cfg.Tuning != nil {
		if err := runTuning(ctx, cfg, registry, datasets, brokers, indicatorCache, log); err != nil {
			return err
		}
	}

	return nil
}

func loadDatasets(cfg *config.Config, log *logger.Logger) ([]*series.TimeSeries, error) {
	loader, err := series.NewLoader(log)
	if err != nil {
		return nil, err
	}
	defer loader.Close()

	datasets := make([]*series.TimeSeries, 0, len(cfg.Datasets))

	for _, dataset := range cfg.Datasets {
		opts := series.LoadOptions{}
		if dataset.Symbol != "" {
			opts.Symbol = optional.Some(dataset.Symbol)
		}

		if !dataset.Start.IsZero() {
			opts.Start = optional.Some(dataset.Start)
		}

		if !dataset.End.IsZero() {
			opts.End = optional.Some(dataset.End)
		}

		ts, err := loader.Load(dataset.Path, opts)
		if err != nil {
			return nil, err
		}

		datasets = append(datasets, ts)
	}

	return datasets, nil
}

// runTuning searches the configured parameter space over the first dataset,
// reusing the batch's indicator cache so shared indicators are not recomputed.
func runTuning(
	ctx context.Context,
	cfg *config.Config,
	registry *strategy.Registry,
	datasets []*series.TimeSeries,
	brokers []exchange.Config,
	indicatorCache *cache.Cache,
	log *logger.Logger,
) error {
	broker := brokers[0]

	if cfg.Tuning.Broker != "" {
		for _, candidate := range brokers {
			if candidate.Label == cfg.Tuning.Broker {
				broker = candidate

				break
			}
		}
	}

	candidates, err := cfg.Tuning.Candidates()
	if err != nil {
		return err
	}

	search := &tuner.Tuner{
		Registry:     registry,
		StrategyName: cfg.Tuning.Strategy,
		Objective:    cfg.Tuning.TuningObjective(),
		Workers:      cfg.Workers,
		Cache:        indicatorCache,
		Logger:       log,
	}

	evaluations, err := search.Evaluate(ctx, datasets[0], broker, candidates)
	if err != nil {
		return err
	}

	for rank, evaluation := range evaluations {
		log.Info("Tuning result",
			zap.Int("rank", rank+1),
			zap.String("params", evaluation.Candidate.Label()),
			zap.Float64("score", evaluation.Score),
			zap.Float64("total_return", evaluation.Result.Metrics.TotalReturn),
		)
	}

	return nil
}
