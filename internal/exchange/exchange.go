// Package exchange simulates order matching, positions, and cash for a single
// backtest run. Every run owns exactly one Exchange; instances are never
// shared across workers, so the type is deliberately not synchronized.
package exchange

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stratforge/backtest/internal/logger"
	"github.com/stratforge/backtest/internal/types"
	"github.com/stratforge/backtest/pkg/errors"
)

// State is the lifecycle state of the exchange.
type State string

const (
	// StateIdle means no bar has been processed yet.
	StateIdle State = "IDLE"
	// StateProcessing means the feed is being replayed.
	StateProcessing State = "PROCESSING"
	// StateClosed is terminal: the feed is exhausted or the run aborted.
	StateClosed State = "CLOSED"
)

type pendingOrder struct {
	order types.Order
	// submitIndex is the number of bars the exchange had advanced through
	// when the order arrived. An order only becomes eligible once at least
	// one further bar has opened, which is what rules out lookahead fills.
	submitIndex int
}

type position struct {
	quantity decimal.Decimal
	// cost is the total acquisition cost including fees.
	cost     decimal.Decimal
	openedAt time.Time
}

func (p *position) avgEntryPrice() decimal.Decimal {
	if p.quantity.IsZero() {
		return decimal.Zero
	}

	return p.cost.Div(p.quantity)
}

// Exchange is the simulated broker for one run. Orders submitted during bar n
// resolve no earlier than bar n+1; fills are deterministic given identical
// inputs and resolve in FIFO submission order.
//
// Buying-power checking is deferred to fill time rather than pre-checked at
// submission: the fill price is not known until the next bar opens, so a
// submission-time check against a guessed price would make rejection depend
// on an estimate instead of the actual execution.
type Exchange struct {
	cfg Config
	log *logger.Logger

	state     State
	cash      decimal.Decimal
	positions map[string]*position
	lastPrice map[string]float64

	pending  []pendingOrder
	orders   map[string]*types.Order
	fills    []types.Fill
	equity   []types.EquityPoint
	advanced int
}

// New creates an exchange in the Idle state with the configured cash.
func New(cfg Config, log *logger.Logger) (*Exchange, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Exchange{
		cfg:       cfg,
		log:       log,
		state:     StateIdle,
		cash:      decimal.NewFromFloat(cfg.StartingCash),
		positions: make(map[string]*position),
		lastPrice: make(map[string]float64),
		orders:    make(map[string]*types.Order),
	}, nil
}

// Config returns the broker configuration of this exchange.
func (e *Exchange) Config() Config {
	return e.cfg
}

// State returns the current lifecycle state.
func (e *Exchange) State() State {
	return e.state
}

// SubmitOrder validates and queues an order for resolution. The returned
// handle can be used with OrderStatus and CancelOrder. A validation failure
// is reported to the caller as an order rejection; the run continues.
func (e *Exchange) SubmitOrder(order types.Order) (string, error) {
	if e.state == StateClosed {
		return "", errors.New(errors.ErrCodeExchangeClosed, "cannot submit order: exchange is closed")
	}

	if err := order.Validate(); err != nil {
		return "", err
	}

	order.ID = uuid.New().String()
	order.Status = types.OrderStatusPending

	stored := order
	e.orders[order.ID] = &stored
	e.pending = append(e.pending, pendingOrder{order: order, submitIndex: e.advanced})

	e.log.Debug("Order submitted",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.Float64("quantity", order.Quantity),
	)

	return order.ID, nil
}

// CancelOrder removes a pending order. Filled and rejected orders cannot be
// cancelled.
func (e *Exchange) CancelOrder(orderID string) error {
	for i, p := range e.pending {
		if p.order.ID == orderID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			e.setStatus(orderID, types.OrderStatusCancelled)

			return nil
		}
	}

	return errors.Newf(errors.ErrCodeOrderNotFound, "no pending order with id %s", orderID)
}

// OrderStatus returns the status of a previously submitted order.
func (e *Exchange) OrderStatus(orderID string) (types.OrderStatus, error) {
	order, ok := e.orders[orderID]
	if !ok {
		return "", errors.Newf(errors.ErrCodeOrderNotFound, "no order with id %s", orderID)
	}

	return order.Status, nil
}

// Advance processes one bar: it resolves pending orders eligible for this bar
// in FIFO submission order, then marks the bar complete and records equity at
// the bar close.
func (e *Exchange) Advance(bar types.Bar) error {
	if e.state == StateClosed {
		return errors.New(errors.ErrCodeExchangeClosed, "cannot advance: exchange is closed")
	}

	e.state = StateProcessing
	current := e.advanced

	var remaining []pendingOrder

	for _, p := range e.pending {
		// Orders submitted during this bar wait for the next one.
		if p.submitIndex >= current {
			remaining = append(remaining, p)

			continue
		}

		price, eligible := fillPrice(p.order, bar)
		if !eligible {
			remaining = append(remaining, p)

			continue
		}

		e.execute(p.order, price, bar.Time)
	}

	e.pending = remaining
	e.lastPrice[bar.Symbol] = bar.Close
	e.equity = append(e.equity, types.EquityPoint{Time: bar.Time, Equity: e.currentEquity()})
	e.advanced++

	return nil
}

// Close terminates the exchange. Pending orders are cancelled and the final
// equity is the mark-to-market value at the last seen close.
func (e *Exchange) Close() {
	for _, p := range e.pending {
		e.setStatus(p.order.ID, types.OrderStatusCancelled)
	}

	e.pending = nil
	e.state = StateClosed
}

// Cash returns the current cash balance.
func (e *Exchange) Cash() float64 {
	value, _ := e.cash.Float64()

	return value
}

// Equity returns the current total account value: cash plus mark-to-market
// positions at their last seen close.
func (e *Exchange) Equity() float64 {
	return e.currentEquity()
}

// EquityCurve returns one point per processed bar.
func (e *Exchange) EquityCurve() []types.EquityPoint {
	return e.equity
}

// Fills returns all executed trades in execution order.
func (e *Exchange) Fills() []types.Fill {
	return e.fills
}

// Position returns the current holdings for a symbol.
func (e *Exchange) Position(symbol string) (types.Position, bool) {
	pos, ok := e.positions[symbol]
	if !ok || pos.quantity.IsZero() {
		return types.Position{Symbol: symbol}, false
	}

	quantity, _ := pos.quantity.Float64()
	avgEntry, _ := pos.avgEntryPrice().Float64()

	return types.Position{
		Symbol:        symbol,
		Quantity:      quantity,
		AvgEntryPrice: avgEntry,
		OpenedAt:      pos.openedAt,
	}, true
}

// PendingCount returns the number of orders awaiting resolution.
func (e *Exchange) PendingCount() int {
	return len(e.pending)
}

// fillPrice decides whether an order is eligible against the bar and at what
// raw price it fills.
//
// Market orders fill at the bar open — the first price available after the
// submission bar. Limit and stop orders fill when the bar range crosses their
// trigger, at the better of the open and the trigger price (the open governs
// when the bar gaps through the level).
func fillPrice(order types.Order, bar types.Bar) (float64, bool) {
	switch order.Type {
	case types.OrderTypeMarket:
		return bar.Open, true

	case types.OrderTypeLimit:
		limit := order.LimitPrice.Unwrap()
		if order.Side == types.OrderSideBuy && bar.Low <= limit {
			return min(bar.Open, limit), true
		}

		if order.Side == types.OrderSideSell && bar.High >= limit {
			return max(bar.Open, limit), true
		}

	case types.OrderTypeStop:
		stop := order.StopPrice.Unwrap()
		if order.Side == types.OrderSideBuy && bar.High >= stop {
			return max(bar.Open, stop), true
		}

		if order.Side == types.OrderSideSell && bar.Low <= stop {
			return min(bar.Open, stop), true
		}
	}

	return 0, false
}

// execute applies slippage and commission and settles the order against cash
// and positions. Shortfalls reject the order rather than failing the run.
func (e *Exchange) execute(order types.Order, rawPrice float64, at time.Time) {
	price := e.cfg.Slippage.Adjust(order.Side, rawPrice)
	fee := e.cfg.Commission.Calculate(order, price)

	priceDec := decimal.NewFromFloat(price)
	feeDec := decimal.NewFromFloat(fee)
	qtyDec := decimal.NewFromFloat(order.Quantity)

	switch order.Side {
	case types.OrderSideBuy:
		cost := qtyDec.Mul(priceDec).Add(feeDec)
		if cost.GreaterThan(e.cash) {
			e.reject(order, types.OrderReasonInsufficientFunds)

			return
		}

		e.cash = e.cash.Sub(cost)

		pos, ok := e.positions[order.Symbol]
		if !ok {
			pos = &position{openedAt: at}
			e.positions[order.Symbol] = pos
		}

		if pos.quantity.IsZero() {
			pos.openedAt = at
		}

		pos.quantity = pos.quantity.Add(qtyDec)
		pos.cost = pos.cost.Add(cost)

		e.recordFill(order, price, fee, at, 0)

	case types.OrderSideSell:
		pos, ok := e.positions[order.Symbol]
		if !ok || pos.quantity.IsZero() {
			e.reject(order, types.OrderReasonInsufficientShares)

			return
		}

		// Clamp oversized sells to the held quantity.
		if qtyDec.GreaterThan(pos.quantity) {
			qtyDec = pos.quantity
			order.Quantity, _ = qtyDec.Float64()
			fee = e.cfg.Commission.Calculate(order, price)
			feeDec = decimal.NewFromFloat(fee)
		}

		proceeds := qtyDec.Mul(priceDec).Sub(feeDec)
		entry := pos.avgEntryPrice().Mul(qtyDec)
		pnl, _ := proceeds.Sub(entry).Float64()

		e.cash = e.cash.Add(proceeds)
		pos.cost = pos.cost.Sub(entry)
		pos.quantity = pos.quantity.Sub(qtyDec)

		if pos.quantity.IsZero() {
			pos.cost = decimal.Zero
		}

		e.recordFill(order, price, fee, at, pnl)
	}
}

func (e *Exchange) reject(order types.Order, reason string) {
	e.setStatus(order.ID, types.OrderStatusRejected)

	if stored, ok := e.orders[order.ID]; ok {
		stored.Reason = types.Reason{Reason: reason, Message: "rejected at fill time"}
	}

	e.log.Debug("Order rejected",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("reason", reason),
	)
}

func (e *Exchange) recordFill(order types.Order, price, fee float64, at time.Time, pnl float64) {
	e.setStatus(order.ID, types.OrderStatusFilled)

	fill := types.Fill{
		OrderID:      order.ID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Quantity:     order.Quantity,
		Price:        price,
		Commission:   fee,
		Time:         at,
		StrategyName: order.StrategyName,
		PnL:          pnl,
	}
	e.fills = append(e.fills, fill)

	e.log.Debug("Order filled",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
		zap.Float64("price", price),
		zap.Float64("fee", fee),
	)
}

func (e *Exchange) setStatus(orderID string, status types.OrderStatus) {
	if order, ok := e.orders[orderID]; ok {
		order.Status = status
	}
}

func (e *Exchange) currentEquity() float64 {
	total := e.cash

	for symbol, pos := range e.positions {
		if pos.quantity.IsZero() {
			continue
		}

		price, ok := e.lastPrice[symbol]
		if !ok {
			continue
		}

		total = total.Add(pos.quantity.Mul(decimal.NewFromFloat(price)))
	}

	value, _ := total.Float64()

	return value
}
