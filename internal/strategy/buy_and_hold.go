package strategy

import (
	"github.com/stratforge/backtest/internal/exchange"
	"github.com/stratforge/backtest/internal/types"
)

// NameBuyAndHold is the registry name of the buy-and-hold strategy.
const NameBuyAndHold = "buy_and_hold"

func buildBuyAndHold(params map[string]float64) (Factory, error) {
	return &BuyAndHoldFactory{}, nil
}

// BuyAndHoldFactory builds BuyAndHold instances. It takes no parameters.
type BuyAndHoldFactory struct{}

// Name implements Factory.
func (f *BuyAndHoldFactory) Name() string {
	return NameBuyAndHold
}

// New implements Factory.
func (f *BuyAndHoldFactory) New(ctx Context) (Strategy, error) {
	return &BuyAndHold{ctx: ctx.normalized()}, nil
}

// BuyAndHold invests the full balance on the first bar and never trades again.
// It serves as the baseline every other strategy is compared against.
type BuyAndHold struct {
	ctx    Context
	bought bool
}

// Name implements Strategy.
func (s *BuyAndHold) Name() string {
	return NameBuyAndHold
}

// OnBar implements Strategy.
func (s *BuyAndHold) OnBar(i int, bar types.Bar, ex *exchange.Exchange) error {
	if s.bought {
		return nil
	}

	quantity := investableQuantity(ex.Cash(), bar.Close)
	if quantity <= 0 {
		return nil
	}

	_, err := ex.SubmitOrder(types.Order{
		Symbol:       bar.Symbol,
		Side:         types.OrderSideBuy,
		Type:         types.OrderTypeMarket,
		Quantity:     quantity,
		Reason:       types.Reason{Reason: types.OrderReasonStrategy, Message: "initial allocation"},
		StrategyName: s.Name(),
		SubmittedAt:  bar.Time,
	})
	if err != nil {
		return err
	}

	s.bought = true

	return nil
}
