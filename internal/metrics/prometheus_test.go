package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.FeedUpdates.Inc()
	prom.Metrics.FeedIgnored.Inc()
	prom.Metrics.FeedReconnects.Inc()
	prom.Metrics.QuoteCycles.Inc()
	prom.Metrics.BuySkipped.Inc()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.OrdersFailed.Inc()
	prom.Metrics.CancelsFailed.Inc()
	prom.Metrics.FeedState.Set(2)

	assertCounter(t, prom.feedUpdates, 1)
	assertCounter(t, prom.feedIgnored, 1)
	assertCounter(t, prom.feedReconnects, 1)
	assertCounter(t, prom.quoteCycles, 1)
	assertCounter(t, prom.buySkipped, 1)
	assertCounter(t, prom.ordersPlaced, 1)
	assertCounter(t, prom.ordersFailed, 1)
	assertCounter(t, prom.cancelsFailed, 1)
	if got := testutil.ToFloat64(prom.feedState); got != 2 {
		t.Fatalf("expected feed state 2, got %v", got)
	}
}

func TestPrometheusHandlerExposesNamespace(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.OrdersPlaced.Inc()
	rec := httptest.NewRecorder()
	prom.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "gmo_maker_bot_orders_placed_total 1") {
		t.Fatalf("expected orders_placed_total in output, got %s", string(body))
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoop()
	m.FeedUpdates.Inc()
	m.FeedState.Set(1)
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	if got := testutil.ToFloat64(counter); got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
