package market

import "testing"

func TestParseOrderbookTakesFirstLevel(t *testing.T) {
	msg := []byte(`{"channel":"orderbooks","asks":[{"price":"1.003","size":"100"},{"price":"1.004","size":"5"}],"bids":[{"price":"1.000","size":"50"},{"price":"0.999","size":"1"}],"symbol":"DOGE","timestamp":"2024-07-01T00:00:00.000Z"}`)
	update, ok, err := parseOrderbook(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected order-book update")
	}
	if update.Bid.String() != "1" {
		t.Fatalf("expected bid 1, got %s", update.Bid)
	}
	if update.Ask.String() != "1.003" {
		t.Fatalf("expected ask 1.003, got %s", update.Ask)
	}
}

func TestParseOrderbookNumericPrices(t *testing.T) {
	update, ok, err := parseOrderbook([]byte(`{"bids":[{"price":0.125}],"asks":[{"price":0.126}]}`))
	if err != nil || !ok {
		t.Fatalf("expected numeric prices to parse, ok=%v err=%v", ok, err)
	}
	if update.Bid.String() != "0.125" || update.Ask.String() != "0.126" {
		t.Fatalf("unexpected prices %s/%s", update.Bid, update.Ask)
	}
}

func TestParseOrderbookIgnoresOtherShapes(t *testing.T) {
	cases := []string{
		`{"channel":"ticker","ask":"1.0","bid":"0.9"}`,
		`{"bids":[{"price":"1.0"}]}`,
		`{"asks":[{"price":"1.0"}]}`,
		`{"bids":[],"asks":[{"price":"1.0"}]}`,
		`{"bids":[{"price":"1.0"}],"asks":[]}`,
		`{"error":"ERR-5003 Request too many."}`,
	}
	for _, raw := range cases {
		_, ok, err := parseOrderbook([]byte(raw))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}
		if ok {
			t.Fatalf("%s: expected message to be ignored", raw)
		}
	}
}

func TestParseOrderbookErrors(t *testing.T) {
	cases := []string{
		`not json`,
		`{"bids":[{"price":"abc"}],"asks":[{"price":"1.0"}]}`,
		`{"bids":[{"size":"1"}],"asks":[{"price":"1.0"}]}`,
		`{"bids":[{"price":"0"}],"asks":[{"price":"1.0"}]}`,
		`{"bids":["1.0"],"asks":[{"price":"1.0"}]}`,
	}
	for _, raw := range cases {
		if _, ok, err := parseOrderbook([]byte(raw)); err == nil || ok {
			t.Fatalf("%s: expected parse error, ok=%v err=%v", raw, ok, err)
		}
	}
}
