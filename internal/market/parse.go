package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Update is the top-of-book pair extracted from one order-book message.
type Update struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// parseOrderbook extracts level 0 of bids and asks (venue convention: best price first).
// ok is false for messages that are not order-book updates; err is set only for payloads that
// cannot be decoded or carry an unusable price.
func parseOrderbook(data []byte) (Update, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return Update{}, false, fmt.Errorf("decode feed message: %w", err)
	}
	bids, ok := toSlice(payload["bids"])
	if !ok || len(bids) == 0 {
		return Update{}, false, nil
	}
	asks, ok := toSlice(payload["asks"])
	if !ok || len(asks) == 0 {
		return Update{}, false, nil
	}
	bid, err := levelPrice(bids[0])
	if err != nil {
		return Update{}, false, fmt.Errorf("best bid: %w", err)
	}
	ask, err := levelPrice(asks[0])
	if err != nil {
		return Update{}, false, fmt.Errorf("best ask: %w", err)
	}
	return Update{Bid: bid, Ask: ask}, true, nil
}

func levelPrice(level any) (decimal.Decimal, error) {
	entry, ok := toMap(level)
	if !ok {
		return decimal.Zero, errors.New("level is not an object")
	}
	price, ok := decimalFromAny(entry["price"])
	if !ok {
		return decimal.Zero, errors.New("missing or invalid price")
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return price, nil
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func decimalFromAny(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	default:
		return decimal.Zero, false
	}
}
