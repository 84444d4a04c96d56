package exchange

import (
	"github.com/stratforge/backtest/pkg/errors"
)

// Config is the immutable broker configuration for one run. Varying it never
// invalidates indicator cache entries: indicators depend only on price data.
type Config struct {
	// Label identifies this variation in reports and tuner rankings.
	Label string
	// StartingCash is the initial account balance.
	StartingCash float64
	// Commission prices fees per fill. Nil means zero commission.
	Commission CommissionModel
	// Slippage adjusts fill prices. Nil means no slippage.
	Slippage SlippageModel
}

// Validate checks the configuration and fills model defaults.
func (c *Config) Validate() error {
	if c.StartingCash <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"starting cash must be positive, got %f", c.StartingCash)
	}

	if c.Commission == nil {
		c.Commission = NewZeroCommission()
	}

	if c.Slippage == nil {
		c.Slippage = NewZeroSlippage()
	}

	if c.Label == "" {
		c.Label = "default"
	}

	return nil
}
