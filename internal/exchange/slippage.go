package exchange

import "github.com/stratforge/backtest/internal/types"

// SlippageModel adjusts a raw fill price for modeled execution friction.
// Implementations must be pure functions of (side, price).
type SlippageModel interface {
	// Adjust returns the effective fill price. Buys slip upward, sells
	// slip downward.
	Adjust(side types.OrderSide, price float64) float64
	// Name identifies the model in configs and result labels.
	Name() string
}

const (
	SlippageZero     = "zero"
	SlippageFixedBps = "fixed_bps"
)

// ZeroSlippage fills at the raw price.
type ZeroSlippage struct{}

// NewZeroSlippage creates a slippage model without any price adjustment.
func NewZeroSlippage() SlippageModel {
	return &ZeroSlippage{}
}

// Adjust implements SlippageModel.
func (z *ZeroSlippage) Adjust(side types.OrderSide, price float64) float64 {
	return price
}

// Name implements SlippageModel.
func (z *ZeroSlippage) Name() string {
	return SlippageZero
}

// FixedBpsSlippage moves the fill price by a fixed number of basis points
// against the order.
type FixedBpsSlippage struct {
	bps float64
}

// NewFixedBpsSlippage creates a fixed basis-point slippage model.
func NewFixedBpsSlippage(bps float64) SlippageModel {
	return &FixedBpsSlippage{bps: bps}
}

// Adjust implements SlippageModel.
func (f *FixedBpsSlippage) Adjust(side types.OrderSide, price float64) float64 {
	fraction := f.bps / 10000.0
	if side == types.OrderSideBuy {
		return price * (1 + fraction)
	}

	return price * (1 - fraction)
}

// Name implements SlippageModel.
func (f *FixedBpsSlippage) Name() string {
	return SlippageFixedBps
}
