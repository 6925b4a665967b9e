package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const promNamespace = "gmo_maker_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry       *prometheus.Registry
	feedUpdates    prometheus.Counter
	feedIgnored    prometheus.Counter
	feedReconnects prometheus.Counter
	feedState      prometheus.Gauge
	quoteCycles    prometheus.Counter
	buySkipped     prometheus.Counter
	ordersPlaced   prometheus.Counter
	ordersFailed   prometheus.Counter
	cancelsFailed  prometheus.Counter
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	feedUpdates := newCounter("feed_updates_total", "Total number of top-of-book updates applied.")
	feedIgnored := newCounter("feed_ignored_total", "Total number of feed messages ignored or rejected by the parser.")
	feedReconnects := newCounter("feed_reconnects_total", "Total number of feed reconnect attempts.")
	feedState := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "feed_state",
		Help:      "Feed connection state (0 disconnected, 1 connected, 2 reconnecting, 3 fatal).",
	})
	quoteCycles := newCounter("quote_cycles_total", "Total number of cancel/place cycles executed.")
	buySkipped := newCounter("buy_skipped_total", "Total number of cycles where the buy was skipped on a tight spread.")
	ordersPlaced := newCounter("orders_placed_total", "Total number of orders placed.")
	ordersFailed := newCounter("orders_failed_total", "Total number of order placement failures.")
	cancelsFailed := newCounter("cancels_failed_total", "Total number of cancel-all failures.")

	registry.MustRegister(feedUpdates, feedIgnored, feedReconnects, feedState, quoteCycles, buySkipped, ordersPlaced, ordersFailed, cancelsFailed)

	m := &Metrics{
		FeedUpdates:    promCounter{feedUpdates},
		FeedIgnored:    promCounter{feedIgnored},
		FeedReconnects: promCounter{feedReconnects},
		FeedState:      promGauge{feedState},
		QuoteCycles:    promCounter{quoteCycles},
		BuySkipped:     promCounter{buySkipped},
		OrdersPlaced:   promCounter{ordersPlaced},
		OrdersFailed:   promCounter{ordersFailed},
		CancelsFailed:  promCounter{cancelsFailed},
	}

	return &Prometheus{
		Metrics:        m,
		registry:       registry,
		feedUpdates:    feedUpdates,
		feedIgnored:    feedIgnored,
		feedReconnects: feedReconnects,
		feedState:      feedState,
		quoteCycles:    quoteCycles,
		buySkipped:     buySkipped,
		ordersPlaced:   ordersPlaced,
		ordersFailed:   ordersFailed,
		cancelsFailed:  cancelsFailed,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve exposes the registry on addr+path until ctx is done.
func (p *Prometheus) Serve(ctx context.Context, addr, path string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, p.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("metrics server listening", zap.String("addr", addr), zap.String("path", path))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
