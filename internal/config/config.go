// Package config defines the YAML batch configuration: which datasets to
// load, which strategies to run with which parameters, and which broker
// variations to sweep.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/stratforge/backtest/internal/tuner"
	"github.com/stratforge/backtest/pkg/errors"
)

// Dataset points at one bar file. CSV and Parquet are detected by extension.
type Dataset struct {
	Path   string `yaml:"path" json:"path" jsonschema:"description=Path to a CSV or Parquet bar file" validate:"required"`
	Symbol string `yaml:"symbol" json:"symbol" jsonschema:"description=Symbol override; defaults to the file name"`
	// Start and End bound the replayed window. Zero values mean unbounded.
	Start time.Time `yaml:"start,omitempty" json:"start,omitempty"`
	End   time.Time `yaml:"end,omitempty" json:"end,omitempty"`
}

// StrategyConfig selects one registered strategy with its parameters.
type StrategyConfig struct {
	Name   string             `yaml:"name" json:"name" jsonschema:"description=Registered strategy name" validate:"required"`
	Params map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

// CommissionConfig selects a commission model by name.
type CommissionConfig struct {
	Model string `yaml:"model" json:"model" jsonschema:"enum=zero,enum=per_share,enum=percentage" validate:"omitempty,oneof=zero per_share percentage"`
	// Rate is per share for per_share, a fraction of notional for percentage.
	Rate    float64 `yaml:"rate,omitempty" json:"rate,omitempty" validate:"gte=0"`
	Minimum float64 `yaml:"minimum,omitempty" json:"minimum,omitempty" validate:"gte=0"`
}

// SlippageConfig selects a slippage model by name.
type SlippageConfig struct {
	Model string  `yaml:"model" json:"model" jsonschema:"enum=zero,enum=fixed_bps" validate:"omitempty,oneof=zero fixed_bps"`
	Bps   float64 `yaml:"bps,omitempty" json:"bps,omitempty" validate:"gte=0"`
}

// BrokerConfig is one broker variation of the sweep.
type BrokerConfig struct {
	Label        string           `yaml:"label" json:"label"`
	StartingCash float64          `yaml:"starting_cash" json:"starting_cash" validate:"required,gt=0"`
	Commission   CommissionConfig `yaml:"commission,omitempty" json:"commission,omitempty"`
	Slippage     SlippageConfig   `yaml:"slippage,omitempty" json:"slippage,omitempty"`
}

// TuningConfig configures an optional parameter search appended after the
// batch. Method is grid or random.
type TuningConfig struct {
	Strategy  string      `yaml:"strategy" json:"strategy" validate:"required"`
	Objective string      `yaml:"objective" json:"objective" jsonschema:"enum=sharpe_ratio,enum=total_return" validate:"omitempty,oneof=sharpe_ratio total_return"`
	Method    string      `yaml:"method" json:"method" jsonschema:"enum=grid,enum=random" validate:"omitempty,oneof=grid random"`
	Samples   int         `yaml:"samples,omitempty" json:"samples,omitempty" validate:"gte=0"`
	Seed      int64       `yaml:"seed,omitempty" json:"seed,omitempty"`
	Space     tuner.Space `yaml:"space" json:"space"`
	// Broker selects which broker variation the search runs under, by label.
	// Empty means the first one.
	Broker string `yaml:"broker,omitempty" json:"broker,omitempty"`
}

// Config is the root batch configuration.
type Config struct {
	LogLevel      string           `yaml:"log_level,omitempty" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error" validate:"omitempty,oneof=debug info warn error"`
	Workers       int              `yaml:"workers,omitempty" json:"workers,omitempty" validate:"gte=0"`
	ResultsFolder string           `yaml:"results_folder,omitempty" json:"results_folder,omitempty"`
	CacheCapacity int              `yaml:"cache_capacity,omitempty" json:"cache_capacity,omitempty" validate:"gte=0"`
	Datasets      []Dataset        `yaml:"datasets" json:"datasets" validate:"required,min=1,dive"`
	Strategies    []StrategyConfig `yaml:"strategies" json:"strategies" validate:"required,min=1,dive"`
	Brokers       []BrokerConfig   `yaml:"brokers" json:"brokers" validate:"required,min=1,dive"`
	Tuning        *TuningConfig    `yaml:"tuning,omitempty" json:"tuning,omitempty"`
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSourceUnavailable, err, "failed to read config %s", path)
	}

	return Parse(data)
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.ResultsFolder == "" {
		c.ResultsFolder = "results"
	}

	for i := range c.Brokers {
		if c.Brokers[i].Label == "" {
			c.Brokers[i].Label = "default"
		}
	}
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	labels := make(map[string]struct{}, len(c.Brokers))
	for _, broker := range c.Brokers {
		if _, ok := labels[broker.Label]; ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate broker label %q", broker.Label)
		}

		labels[broker.Label] = struct{}{}
	}

	if c.Tuning != nil {
		if err := c.Tuning.Space.Validate(); err != nil {
			return err
		}

		if c.Tuning.Method == "random" && c.Tuning.Samples <= 0 {
			return errors.New(errors.ErrCodeInvalidConfiguration, "random tuning requires a positive sample count")
		}

		if c.Tuning.Broker != "" {
			if _, ok := labels[c.Tuning.Broker]; !ok {
				return errors.Newf(errors.ErrCodeInvalidConfiguration, "tuning broker %q is not defined", c.Tuning.Broker)
			}
		}
	}

	return nil
}

// JSONSchema returns the JSON schema of the configuration for editor
// integration and config linting.
func JSONSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{DoNotReference: false}
	schema := reflector.Reflect(&Config{})

	data, err := schema.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config schema", err)
	}

	return data, nil
}
