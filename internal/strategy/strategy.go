// Package strategy defines the decision units a backtest run replays against
// the simulated exchange, and the factories the orchestrator uses to give
// every run its own instance. Strategies are stateful and must never be
// shared across concurrent runs.
package strategy

import (
	"math"

	"github.com/stratforge/backtest/internal/backtest/cache"
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/series"
	"github.com/stratforge/backtest/internal/types"
)

// Context carries the shared, read-only inputs a strategy may consult. The
// series and cache are safe for concurrent use from other runs. Logger is
// optional; factories substitute a Nop logger when it is nil.
type Context struct {
	Series *series.TimeSeries
	Cache  *cache.Cache
	Logger *logger.Logger
}

// normalized returns a copy of the context with a Nop logger filled in when
// none was provided, so strategies can log unconditionally.
func (c Context) normalized() Context {
	if c.Logger == nil {
		c.Logger = logger.NewNopLogger()
	}

	return c
}

// Strategy is invoked exactly once per bar, in timestamp order, with
// exclusive access to its run's exchange. A returned error is fatal to that
// run only.
type Strategy interface {
	// Name returns the strategy instance name, including parameters.
	Name() string
	// OnBar reacts to bar i of the run's series.
	OnBar(i int, bar types.Bar, ex *exchange.Exchange) error
}

// Factory builds a fresh strategy instance for one run. The orchestrator
// calls New once per run so no instance crosses a run boundary.
type Factory interface {
	// Name returns the configured strategy name, including parameters.
	Name() string
	// New builds an instance bound to the run's context.
	New(ctx Context) (Strategy, error)
}

// investableQuantity returns the whole number of shares affordable with the
// given cash at the given price, keeping a small headroom because the actual
// fill happens at the next bar's open.
func investableQuantity(cash, price float64) float64 {
	if price <= 0 || cash <= 0 {
		return 0
	}

	return math.Floor(cash * 0.95 / price)
}
