package state

import (
	"context"
	"encoding/json"
	"strings"
)

const QuoteSnapshotKey = "quote:last_snapshot"

// QuoteSnapshot is the latest executed quote cycle. It is overwritten on every cycle.
type QuoteSnapshot struct {
	CycleID       string `json:"cycle_id"`
	Symbol        string `json:"symbol"`
	Bid           string `json:"bid"`
	Ask           string `json:"ask"`
	LastBuyPrice  string `json:"last_buy_price,omitempty"`
	LastSellPrice string `json:"last_sell_price,omitempty"`
	BuyOrderID    string `json:"buy_order_id,omitempty"`
	SellOrderID   string `json:"sell_order_id,omitempty"`
	UpdatedAtMS   int64  `json:"updated_at_ms"`
}

// HasOrders reports whether the snapshot references orders that may still rest on the venue.
func (s QuoteSnapshot) HasOrders() bool {
	return s.BuyOrderID != "" || s.SellOrderID != ""
}

func LoadQuoteSnapshot(ctx context.Context, store Store) (QuoteSnapshot, bool, error) {
	if store == nil {
		return QuoteSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, QuoteSnapshotKey)
	if err != nil {
		return QuoteSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return QuoteSnapshot{}, false, nil
	}
	var snapshot QuoteSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return QuoteSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveQuoteSnapshot(ctx context.Context, store Store, snapshot QuoteSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, QuoteSnapshotKey, string(payload))
}

// ClearQuoteOrders drops the order ids from a stored snapshot once they are known to be cancelled.
func ClearQuoteOrders(ctx context.Context, store Store) error {
	snapshot, ok, err := LoadQuoteSnapshot(ctx, store)
	if err != nil || !ok {
		return err
	}
	snapshot.BuyOrderID = ""
	snapshot.SellOrderID = ""
	return SaveQuoteSnapshot(ctx, store, snapshot)
}
