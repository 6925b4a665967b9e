package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recorded struct {
	path      string
	key       string
	timestamp string
	sign      string
	body      []byte
}

func newServer(t *testing.T, response string, rec *recorded) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*rec = recorded{
			path:      r.URL.Path,
			key:       r.Header.Get("API-KEY"),
			timestamp: r.Header.Get("API-TIMESTAMP"),
			sign:      r.Header.Get("API-SIGN"),
			body:      body,
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
}

func TestPlaceOrderSignsAndParsesID(t *testing.T) {
	var rec recorded
	server := newServer(t, `{"status":0,"data":"637000","responsetime":"2024-07-01T00:00:00.000Z"}`, &rec)
	defer server.Close()

	client := New(server.URL+"/private", time.Second, "key", "secret", zap.NewNop())
	id, err := client.PlaceOrder(context.Background(), OrderRequest{
		Symbol:        "DOGE",
		Side:          "BUY",
		ExecutionType: ExecutionLimit,
		TimeInForce:   TifSOK,
		Price:         "1.001",
		Size:          "10",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if id != "637000" {
		t.Fatalf("expected id 637000, got %s", id)
	}
	if rec.path != "/private/v1/order" {
		t.Fatalf("unexpected path %s", rec.path)
	}
	if rec.key != "key" {
		t.Fatalf("expected api key header, got %q", rec.key)
	}
	want := Sign("secret", rec.timestamp, http.MethodPost, "/v1/order", rec.body)
	if rec.sign != want {
		t.Fatalf("signature mismatch: got %s want %s", rec.sign, want)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["timeInForce"] != "SOK" || payload["executionType"] != "LIMIT" || payload["price"] != "1.001" {
		t.Fatalf("unexpected order body %v", payload)
	}
}

func TestPlaceOrderAPIError(t *testing.T) {
	var rec recorded
	server := newServer(t, `{"status":1,"messages":[{"message_code":"ERR-5122","message_string":"The request is invalid due to the status of the specified order."}]}`, &rec)
	defer server.Close()

	client := New(server.URL, time.Second, "key", "secret", zap.NewNop())
	_, err := client.PlaceOrder(context.Background(), OrderRequest{Symbol: "DOGE", Side: "SELL", ExecutionType: ExecutionLimit, Size: "1"})
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || len(apiErr.Messages) != 1 || apiErr.Messages[0].Code != "ERR-5122" {
		t.Fatalf("expected APIError with ERR-5122, got %v", err)
	}
}

func TestCancelBulk(t *testing.T) {
	var rec recorded
	server := newServer(t, `{"status":0,"data":[637000,637002]}`, &rec)
	defer server.Close()

	client := New(server.URL, time.Second, "key", "secret", zap.NewNop())
	ids, err := client.CancelBulk(context.Background(), []string{"DOGE"})
	if err != nil {
		t.Fatalf("cancel bulk: %v", err)
	}
	if len(ids) != 2 || ids[0] != "637000" || ids[1] != "637002" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if rec.path != "/v1/cancelBulkOrder" {
		t.Fatalf("unexpected path %s", rec.path)
	}
	if string(rec.body) != `{"symbols":["DOGE"]}` {
		t.Fatalf("unexpected body %s", rec.body)
	}
}

func TestCancelBulkRequiresSymbol(t *testing.T) {
	client := New("http://unused", time.Second, "k", "s", nil)
	if _, err := client.CancelBulk(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty symbols")
	}
}

func TestHTTPErrorWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer server.Close()
	client := New(server.URL, time.Second, "k", "s", nil)
	if _, err := client.PlaceOrder(context.Background(), OrderRequest{}); err == nil {
		t.Fatalf("expected http error")
	}
}

func TestNextTimestampMonotonic(t *testing.T) {
	client := New("http://unused", time.Second, "k", "s", nil)
	fixed := time.UnixMilli(1720000000000)
	client.now = func() time.Time { return fixed }
	first := client.nextTimestamp()
	second := client.nextTimestamp()
	if first != fixed.UnixMilli() || second != first+1 {
		t.Fatalf("expected strictly increasing stamps, got %d then %d", first, second)
	}
}

func TestSignKnownVector(t *testing.T) {
	got := Sign("key", "", "", "", []byte("The quick brown fox jumps over the lazy dog"))
	want := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
