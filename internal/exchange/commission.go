package exchange

import "github.com/stratforge/backtest/internal/types"

// CommissionModel prices the fee for a fill. Implementations must be pure
// functions of (order, fill price): matching logic never changes when the
// model is swapped.
type CommissionModel interface {
	// Calculate returns the commission fee in account currency.
	Calculate(order types.Order, fillPrice float64) float64
	// Name identifies the model in configs and result labels.
	Name() string
}

const (
	CommissionZero       = "zero"
	CommissionPerShare   = "per_share"
	CommissionPercentage = "percentage"
)

// ZeroCommission charges nothing.
type ZeroCommission struct{}

// NewZeroCommission creates a commission model that always charges zero.
func NewZeroCommission() CommissionModel {
	return &ZeroCommission{}
}

// Calculate implements CommissionModel.
func (z *ZeroCommission) Calculate(order types.Order, fillPrice float64) float64 {
	return 0.0
}

// Name implements CommissionModel.
func (z *ZeroCommission) Name() string {
	return CommissionZero
}

// PerShareCommission charges a fixed rate per share with a minimum per order.
type PerShareCommission struct {
	rate    float64
	minimum float64
}

// NewPerShareCommission creates a per-share commission model.
func NewPerShareCommission(rate, minimum float64) CommissionModel {
	return &PerShareCommission{rate: rate, minimum: minimum}
}

// Calculate implements CommissionModel.
func (p *PerShareCommission) Calculate(order types.Order, fillPrice float64) float64 {
	fee := p.rate * order.Quantity
	if fee < p.minimum {
		return p.minimum
	}

	return fee
}

// Name implements CommissionModel.
func (p *PerShareCommission) Name() string {
	return CommissionPerShare
}

// PercentageCommission charges a fraction of the fill notional.
type PercentageCommission struct {
	rate float64
}

// NewPercentageCommission creates a percentage-of-notional commission model.
func NewPercentageCommission(rate float64) CommissionModel {
	return &PercentageCommission{rate: rate}
}

// Calculate implements CommissionModel.
func (p *PercentageCommission) Calculate(order types.Order, fillPrice float64) float64 {
	return order.Quantity * fillPrice * p.rate
}

// Name implements CommissionModel.
func (p *PercentageCommission) Name() string {
	return CommissionPercentage
}
