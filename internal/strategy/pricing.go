package strategy

import (
	"time"

	"gmo-maker-bot/internal/market"

	"github.com/shopspring/decimal"
)

// Decide evaluates one polling cycle. The spread gate applies to the buy side only: a sell is
// always eligible when the engine acts.
func Decide(p Params, top market.TopOfBook, state QuoteState, now time.Time) Decision {
	spread := top.Ask.Sub(top.Bid)
	spreadPct := decimal.Zero
	if top.Bid.IsPositive() {
		spreadPct = spread.Div(top.Bid)
	}
	buyPrice := top.Bid.Add(p.Tick).Round(p.PriceDecimals)
	sellPrice := top.Ask.Sub(p.Tick).Round(p.PriceDecimals)
	return Decision{
		Spread:          spread,
		SpreadPct:       spreadPct,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		ShouldBuy:       spreadPct.GreaterThanOrEqual(p.SpreadThreshold),
		PriceChanged:    changed(state.LastBuyPrice, buyPrice) || changed(state.LastSellPrice, sellPrice),
		CooldownElapsed: now.Sub(state.LastOrderTime) >= p.OrderInterval,
	}
}

func changed(last decimal.NullDecimal, price decimal.Decimal) bool {
	return !last.Valid || !last.Decimal.Equal(price)
}
