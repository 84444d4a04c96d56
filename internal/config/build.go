package config

import (
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/strategy"
	"github.com/stratforge/backtest/internal/tuner"
	"github.com/stratforge/backtest/pkg/errors"
)

// BrokerConfigs materializes the broker variations into exchange
// configurations.
func (c *Config) BrokerConfigs() ([]exchange.Config, error) {
	configs := make([]exchange.Config, 0, len(c.Brokers))

	for _, broker := range c.Brokers {
		commission, err := buildCommission(broker.Commission)
		if err != nil {
			return nil, err
		}

		slippage, err := buildSlippage(broker.Slippage)
		if err != nil {
			return nil, err
		}

		configs = append(configs, exchange.Config{
			Label:        broker.Label,
			StartingCash: broker.StartingCash,
			Commission:   commission,
			Slippage:     slippage,
		})
	}

	return configs, nil
}

// Factories builds one strategy factory per configured strategy.
func (c *Config) Factories(registry *strategy.Registry) ([]strategy.Factory, error) {
	factories := make([]strategy.Factory, 0, len(c.Strategies))

	for _, sc := range c.Strategies {
		factory, err := registry.Build(sc.Name, sc.Params)
		if err != nil {
			return nil, err
		}

		factories = append(factories, factory)
	}

	return factories, nil
}

// TuningObjective resolves the configured objective, defaulting to Sharpe.
func (t *TuningConfig) TuningObjective() tuner.Objective {
	if t.Objective == "total_return" {
		return tuner.ObjectiveTotalReturn()
	}

	return tuner.ObjectiveSharpe()
}

// Candidates expands the configured search method into concrete candidates.
func (t *TuningConfig) Candidates() ([]tuner.Candidate, error) {
	if t.Method == "random" {
		return tuner.Random(t.Space, t.Samples, t.Seed)
	}

	return tuner.Grid(t.Space)
}

func buildCommission(cc CommissionConfig) (exchange.CommissionModel, error) {
	switch cc.Model {
	case "", exchange.CommissionZero:
		return exchange.NewZeroCommission(), nil
	case exchange.CommissionPerShare:
		return exchange.NewPerShareCommission(cc.Rate, cc.Minimum), nil
	case exchange.CommissionPercentage:
		return exchange.NewPercentageCommission(cc.Rate), nil
	}

	return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown commission model %q", cc.Model)
}

func buildSlippage(sc SlippageConfig) (exchange.SlippageModel, error) {
	switch sc.Model {
	case "", exchange.SlippageZero:
		return exchange.NewZeroSlippage(), nil
	case exchange.SlippageFixedBps:
		return exchange.NewFixedBpsSlippage(sc.Bps), nil
	}

	return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown slippage model %q", sc.Model)
}
