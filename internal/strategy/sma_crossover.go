package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/indicator"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// NameSMACrossover is the registry name of the moving average crossover
// strategy.
const NameSMACrossover = "sma_crossover"

func buildSMACrossover(params map[string]float64) (Factory, error) {
	fast, err := intParam(params, "fast", 10)
	if err != nil {
		return nil, err
	}

	slow, err := intParam(params, "slow", 50)
	if err != nil {
		return nil, err
	}

	if fast >= slow {
		return nil, errors.Newf(errors.ErrCodeStrategyConfig,
			"fast period %d must be below slow period %d", fast, slow)
	}

	return &SMACrossoverFactory{Fast: fast, Slow: slow}, nil
}

// SMACrossoverFactory builds SMACrossover instances with fixed periods.
type SMACrossoverFactory struct {
	Fast int
	Slow int
}

// Name implements Factory.
func (f *SMACrossoverFactory) Name() string {
	return fmt.Sprintf("%s(fast=%d,slow=%d)", NameSMACrossover, f.Fast, f.Slow)
}

// New implements Factory. Both averages are resolved through the shared cache
// up front, so concurrent runs over the same series compute each one once.
func (f *SMACrossoverFactory) New(ctx Context) (Strategy, error) {
	ctx = ctx.normalized()

	fast, err := ctx.Cache.Value(indicator.NewSMA(f.Fast), ctx.Series)
	if err != nil {
		return nil, err
	}

	slow, err := ctx.Cache.Value(indicator.NewSMA(f.Slow), ctx.Series)
	if err != nil {
		return nil, err
	}

	return &SMACrossover{
		name: f.Name(),
		ctx:  ctx,
		fast: fast,
		slow: slow,
	}, nil
}

// SMACrossover goes long when the fast average crosses above the slow one and
// liquidates when it crosses back below.
type SMACrossover struct {
	name string
	ctx  Context
	fast indicator.Series
	slow indicator.Series
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return s.name
}

// OnBar implements Strategy.
func (s *SMACrossover) OnBar(i int, bar types.Bar, ex *exchange.Exchange) error {
	// A crossover needs this bar and the previous one past warmup.
	if i == 0 || !s.fast.Valid(i) || !s.slow.Valid(i) || !s.fast.Valid(i-1) || !s.slow.Valid(i-1) {
		return nil
	}

	crossedUp := s.fast[i-1] <= s.slow[i-1] && s.fast[i] > s.slow[i]
	crossedDown := s.fast[i-1] >= s.slow[i-1] && s.fast[i] < s.slow[i]

	pos, holding := ex.Position(bar.Symbol)

	switch {
	case crossedUp && !holding:
		quantity := investableQuantity(ex.Cash(), bar.Close)
		if quantity <= 0 {
			return nil
		}

		s.ctx.Logger.Debug("Crossover entry",
			zap.String("strategy", s.name),
			zap.String("symbol", bar.Symbol),
			zap.Time("time", bar.Time),
		)

		_, err := ex.SubmitOrder(types.Order{
			Symbol:       bar.Symbol,
			Side:         types.OrderSideBuy,
			Type:         types.OrderTypeMarket,
			Quantity:     quantity,
			Reason:       types.Reason{Reason: types.OrderReasonStrategy, Message: "fast crossed above slow"},
			StrategyName: s.name,
			SubmittedAt:  bar.Time,
		})

		return err

	case crossedDown && holding:
		_, err := ex.SubmitOrder(types.Order{
			Symbol:       bar.Symbol,
			Side:         types.OrderSideSell,
			Type:         types.OrderTypeMarket,
			Quantity:     pos.Quantity,
			Reason:       types.Reason{Reason: types.OrderReasonStrategy, Message: "fast crossed below slow"},
			StrategyName: s.name,
			SubmittedAt:  bar.Time,
		})

		return err
	}

	return nil
}
