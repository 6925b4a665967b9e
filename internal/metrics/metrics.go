package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	FeedUpdates    Counter
	FeedIgnored    Counter
	FeedReconnects Counter
	FeedState      Gauge
	QuoteCycles    Counter
	BuySkipped     Counter
	OrdersPlaced   Counter
	OrdersFailed   Counter
	CancelsFailed  Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		FeedUpdates:    n,
		FeedIgnored:    n,
		FeedReconnects: n,
		FeedState:      noopGauge{},
		QuoteCycles:    n,
		BuySkipped:     n,
		OrdersPlaced:   n,
		OrdersFailed:   n,
		CancelsFailed:  n,
	}
}
