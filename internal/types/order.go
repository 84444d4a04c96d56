package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/stratforge/backtest/pkg/errors"
)

type OrderSide string

type OrderType string

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

const (
	OrderReasonStrategy           string = "strategy"
	OrderReasonLiquidation        string = "liquidation"
	OrderReasonInsufficientFunds  string = "insufficient_funds"
	OrderReasonInsufficientShares string = "insufficient_shares"
	OrderReasonInvalidQuantity    string = "invalid_quantity"
	OrderReasonInvalidPrice       string = "invalid_price"
)

// Reason records why an order was created or rejected.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// Order is a request to trade, created by a strategy and resolved by the
// simulated exchange. LimitPrice must be set for LIMIT orders and StopPrice
// for STOP orders.
type Order struct {
	ID           string                   `yaml:"id" json:"id" csv:"id"`
	Symbol       string                   `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side         OrderSide                `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Type         OrderType                `yaml:"order_type" json:"order_type" csv:"order_type" validate:"required,oneof=MARKET LIMIT STOP"`
	Quantity     float64                  `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	LimitPrice   optional.Option[float64] `yaml:"limit_price" json:"limit_price" csv:"limit_price"`
	StopPrice    optional.Option[float64] `yaml:"stop_price" json:"stop_price" csv:"stop_price"`
	Reason       Reason                   `yaml:"reason" json:"reason" csv:"reason"`
	StrategyName string                   `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
	SubmittedAt  time.Time                `yaml:"submitted_at" json:"submitted_at" csv:"submitted_at"`
	Status       OrderStatus              `yaml:"status" json:"status" csv:"status"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeOrderRejected, "invalid order", err)
	}

	if o.Type == OrderTypeLimit && o.LimitPrice.IsNone() {
		return errors.New(errors.ErrCodeInvalidPrice, "limit order requires a limit price")
	}

	if o.Type == OrderTypeStop && o.StopPrice.IsNone() {
		return errors.New(errors.ErrCodeInvalidPrice, "stop order requires a stop price")
	}

	if o.LimitPrice.IsSome() && o.LimitPrice.Unwrap() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPrice, "limit price must be positive: %f", o.LimitPrice.Unwrap())
	}

	if o.StopPrice.IsSome() && o.StopPrice.Unwrap() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPrice, "stop price must be positive: %f", o.StopPrice.Unwrap())
	}

	return nil
}

// Fill is the resolution of an order into an executed trade.
type Fill struct {
	OrderID      string    `yaml:"order_id" json:"order_id" csv:"order_id"`
	Symbol       string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side         OrderSide `yaml:"side" json:"side" csv:"side"`
	Quantity     float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price        float64   `yaml:"price" json:"price" csv:"price"`
	Commission   float64   `yaml:"commission" json:"commission" csv:"commission"`
	Time         time.Time `yaml:"time" json:"time" csv:"time"`
	StrategyName string    `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
	// PnL is the realized profit and loss for this fill. Non-zero only for
	// sells that close against an existing position; the fee is deducted.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
}

// Position represents current holdings of a symbol.
type Position struct {
	Symbol   string  `yaml:"symbol" json:"symbol" csv:"symbol"`
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// AvgEntryPrice is the volume-weighted entry price including fees.
	AvgEntryPrice float64   `yaml:"avg_entry_price" json:"avg_entry_price" csv:"avg_entry_price"`
	OpenedAt      time.Time `yaml:"opened_at" json:"opened_at" csv:"opened_at"`
}

// MarketValue returns the mark-to-market value of the position at the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}
