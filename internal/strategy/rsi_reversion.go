package strategy

import (
	"fmt"

	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/indicator"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// NameRSIReversion is the registry name of the RSI mean reversion strategy.
const NameRSIReversion = "rsi_reversion"

func buildRSIReversion(params map[string]float64) (Factory, error) {
	period, err := intParam(params, "period", 14)
	if err != nil {
		return nil, err
	}

	oversold := floatParam(params, "oversold", 30)
	overbought := floatParam(params, "overbought", 70)

	if oversold >= overbought {
		return nil, errors.Newf(errors.ErrCodeStrategyConfig,
			"oversold threshold %.1f must be below overbought threshold %.1f", oversold, overbought)
	}

	return &RSIReversionFactory{Period: period, Oversold: oversold, Overbought: overbought}, nil
}

// RSIReversionFactory builds RSIReversion instances.
type RSIReversionFactory struct {
	Period     int
	Oversold   float64
	Overbought float64
}

// Name implements Factory. Thresholds keep their full precision so close
// parameter variations never collapse to the same name.
func (f *RSIReversionFactory) Name() string {
	return fmt.Sprintf("%s(period=%d,oversold=%g,overbought=%g)",
		NameRSIReversion, f.Period, f.Oversold, f.Overbought)
}

// New implements Factory.
func (f *RSIReversionFactory) New(ctx Context) (Strategy, error) {
	rsi, err := ctx.Cache.Value(indicator.NewRSI(f.Period), ctx.Series)
	if err != nil {
		return nil, err
	}

	return &RSIReversion{factory: f, rsi: rsi}, nil
}

// RSIReversion buys when the RSI drops into oversold territory and exits once
// it recovers into overbought territory.
type RSIReversion struct {
	factory *RSIReversionFactory
	rsi     indicator.Series
}

// Name implements Strategy.
func (s *RSIReversion) Name() string {
	return s.factory.Name()
}

// OnBar implements Strategy.
func (s *RSIReversion) OnBar(i int, bar types.Bar, ex *exchange.Exchange) error {
	if !s.rsi.Valid(i) {
		return nil
	}

	pos, holding := ex.Position(bar.Symbol)

	switch {
	case s.rsi[i] < s.factory.Oversold && !holding:
		quantity := investableQuantity(ex.Cash(), bar.Close)
		if quantity <= 0 {
			return nil
		}

		_, err := ex.SubmitOrder(types.Order{
			Symbol:       bar.Symbol,
			Side:         types.OrderSideBuy,
			Type:         types.OrderTypeMarket,
			Quantity:     quantity,
			Reason:       types.Reason{Reason: types.OrderReasonStrategy, Message: "rsi oversold"},
			StrategyName: s.Name(),
			SubmittedAt:  bar.Time,
		})

		return err

	case s.rsi[i] > s.factory.Overbought && holding:
		_, err := ex.SubmitOrder(types.Order{
			Symbol:       bar.Symbol,
			Side:         types.OrderSideSell,
			Type:         types.OrderTypeMarket,
			Quantity:     pos.Quantity,
			Reason:       types.Reason{Reason: types.OrderReasonStrategy, Message: "rsi overbought"},
			StrategyName: s.Name(),
			SubmittedAt:  bar.Time,
		})

		return err
	}

	return nil
}
