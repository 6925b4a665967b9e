package strategy

import (
	"context"
	"time"

	"gmo-maker-bot/internal/exec"
	"gmo-maker-bot/internal/market"

	"github.com/shopspring/decimal"
)

// Gateway is the order API consumed by the engine.
type Gateway interface {
	PlacePostOnlyLimitOrder(ctx context.Context, symbol string, side exec.Side, quantity, price decimal.Decimal) (string, error)
	CancelAllOrders(ctx context.Context, symbol string) error
}

type BookReader interface {
	Snapshot() (market.TopOfBook, bool)
}

type Params struct {
	Symbol          string
	Quantity        decimal.Decimal
	Tick            decimal.Decimal
	PriceDecimals   int32
	SpreadThreshold decimal.Decimal
	OrderInterval   time.Duration
	UnsetInterval   time.Duration
	IdleInterval    time.Duration
	MaxBookAge      time.Duration
}

// QuoteState is owned by the engine. Last prices change only after a successful placement;
// order ids are cleared by a successful cancel-all and set by a successful placement.
type QuoteState struct {
	LastBuyPrice  decimal.NullDecimal
	LastSellPrice decimal.NullDecimal
	LastOrderTime time.Time
	BuyOrderID    string
	SellOrderID   string
}

type Decision struct {
	Spread          decimal.Decimal
	SpreadPct       decimal.Decimal
	BuyPrice        decimal.Decimal
	SellPrice       decimal.Decimal
	ShouldBuy       bool
	PriceChanged    bool
	CooldownElapsed bool
}

// Act reports whether this cycle cancels and re-quotes.
func (d Decision) Act() bool {
	return d.PriceChanged && d.CooldownElapsed
}

// Cycle describes one executed cancel/place round.
type Cycle struct {
	ID          string
	At          time.Time
	Top         market.TopOfBook
	Decision    Decision
	BuyOrderID  string
	SellOrderID string
	CancelErr   error
	BuyErr      error
	SellErr     error
	State       QuoteState
}
