package app

import (
	"context"
	"errors"
	"time"

	"gmo-maker-bot/internal/strategy"
	"gmo-maker-bot/internal/timescale"

	"github.com/shopspring/decimal"
)

// sampleBook copies the shared top-of-book into Timescale at a fixed cadence.
func (a *App) sampleBook(ctx context.Context) error {
	interval := a.cfg.Timescale.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			top, ok := a.book.Snapshot()
			if !ok || top.UpdatedAt.Equal(last) {
				continue
			}
			last = top.UpdatedAt
			spreadPct := decimal.Zero
			if top.Bid.IsPositive() {
				spreadPct = top.Ask.Sub(top.Bid).Div(top.Bid)
			}
			a.timescale.EnqueueSample(timescale.BookSample{
				Time:      top.UpdatedAt.UTC(),
				Symbol:    a.cfg.Venue.Symbol,
				Bid:       top.Bid,
				Ask:       top.Ask,
				SpreadPct: spreadPct,
			})
		}
	}
}

func (a *App) recordTimescaleCycle(cycle strategy.Cycle) {
	if a.timescale == nil {
		return
	}
	record := timescale.QuoteCycle{
		Time:        cycle.At.UTC(),
		CycleID:     cycle.ID,
		Symbol:      a.cfg.Venue.Symbol,
		Bid:         cycle.Top.Bid,
		Ask:         cycle.Top.Ask,
		BuyOrderID:  cycle.BuyOrderID,
		SellOrderID: cycle.SellOrderID,
	}
	if cycle.BuyOrderID != "" {
		record.BuyPrice = decimal.NewNullDecimal(cycle.Decision.BuyPrice)
	}
	if cycle.SellOrderID != "" {
		record.SellPrice = decimal.NewNullDecimal(cycle.Decision.SellPrice)
	}
	if err := errors.Join(cycle.CancelErr, cycle.BuyErr, cycle.SellErr); err != nil {
		record.Errors = err.Error()
	}
	a.timescale.EnqueueCycle(record)
}
