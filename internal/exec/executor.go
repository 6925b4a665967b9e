package exec

import (
	"context"
	"errors"
	"time"

	"gmo-maker-bot/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is a post-only limit order intent. It is never persisted.
type Order struct {
	Symbol string
	Side   Side
	Size   decimal.Decimal
	Price  decimal.Decimal
}

// Venue is the authenticated trading API.
type Venue interface {
	PlacePostOnly(ctx context.Context, order Order) (string, error)
	CancelAll(ctx context.Context, symbol string) error
}

// Executor bounds every venue call with a timeout and records the outcome. It does not retry;
// the quoting loop re-attempts on its own cadence.
type Executor struct {
	venue   Venue
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(venue Venue, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Executor{venue: venue, timeout: timeout, log: log, metrics: m}
}

func (e *Executor) PlacePostOnlyLimitOrder(ctx context.Context, symbol string, side Side, quantity, price decimal.Decimal) (string, error) {
	order := Order{Symbol: symbol, Side: side, Size: quantity, Price: price}
	if err := validateOrder(order); err != nil {
		e.metrics.OrdersFailed.Inc()
		return "", err
	}
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	orderID, err := e.venue.PlacePostOnly(callCtx, order)
	if err == nil && orderID == "" {
		err = errors.New("empty order id")
	}
	if err != nil {
		e.metrics.OrdersFailed.Inc()
		return "", err
	}
	e.metrics.OrdersPlaced.Inc()
	e.log.Info("order placed",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("size", quantity.String()),
		zap.String("price", price.String()),
		zap.String("order_id", orderID),
	)
	return orderID, nil
}

func (e *Executor) CancelAllOrders(ctx context.Context, symbol string) error {
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.venue.CancelAll(callCtx, symbol); err != nil {
		e.metrics.CancelsFailed.Inc()
		return err
	}
	return nil
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func validateOrder(order Order) error {
	if order.Symbol == "" {
		return errors.New("order symbol is required")
	}
	if order.Side != SideBuy && order.Side != SideSell {
		return errors.New("order side must be BUY or SELL")
	}
	if !order.Size.IsPositive() {
		return errors.New("order size must be > 0")
	}
	if !order.Price.IsPositive() {
		return errors.New("order price must be > 0")
	}
	return nil
}
