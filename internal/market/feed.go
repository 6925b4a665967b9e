package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gmo-maker-bot/internal/metrics"

	"go.uber.org/zap"
)

var (
	ErrFeedExhausted = errors.New("feed reconnect attempts exhausted")
	errSessionEnded  = errors.New("feed session ended")
)

// FatalError is returned once MaxRetries consecutive connection failures happen without a
// successful subscribe in between.
type FatalError struct {
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("feed failed after %d consecutive attempts: %v", e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() []error {
	return []error{ErrFeedExhausted, e.Err}
}

// Conn is one streaming session to the public channel.
type Conn interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, sub any) error
	Run(ctx context.Context, handler func([]byte)) error
	Close()
}

type FeedOptions struct {
	Symbol     string
	MaxRetries int
	RetryDelay time.Duration
}

type subscribeRequest struct {
	Command string `json:"command"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
}

type Feed struct {
	conn    Conn
	book    *Book
	opts    FeedOptions
	log     *zap.Logger
	metrics *metrics.Metrics
	machine *retryMachine
	now     func() time.Time
}

func NewFeed(conn Conn, book *Book, opts FeedOptions, log *zap.Logger, m *metrics.Metrics) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Feed{
		conn:    conn,
		book:    book,
		opts:    opts,
		log:     log,
		metrics: m,
		machine: newRetryMachine(opts.MaxRetries),
		now:     time.Now,
	}
}

func (f *Feed) Status() FeedStatus {
	return f.machine.Status()
}

// Run keeps the book fresh until ctx is done or the retry budget of one outage is spent.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		status := f.machine.Apply(EventFailure)
		f.metrics.FeedState.Set(status.State.gaugeValue())
		if status.State == StateFatal {
			f.log.Error("feed retries exhausted",
				zap.Int("attempt", status.Attempt),
				zap.Int("max_retries", f.opts.MaxRetries),
				zap.Error(err),
			)
			return &FatalError{Attempts: status.Attempt, Err: err}
		}
		f.log.Warn("feed connection failed",
			zap.Int("attempt", status.Attempt),
			zap.Int("max_retries", f.opts.MaxRetries),
			zap.Duration("retry_in", f.opts.RetryDelay),
			zap.Error(err),
		)
		f.metrics.FeedReconnects.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.opts.RetryDelay):
		}
	}
}

func (f *Feed) session(ctx context.Context) error {
	if err := f.conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	sub := subscribeRequest{Command: "subscribe", Channel: "orderbooks", Symbol: f.opts.Symbol}
	if err := f.conn.Subscribe(ctx, sub); err != nil {
		f.conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	status := f.machine.Apply(EventSubscribed)
	f.metrics.FeedState.Set(status.State.gaugeValue())
	f.log.Info("subscribed to orderbooks", zap.String("symbol", f.opts.Symbol))
	if err := f.conn.Run(ctx, f.handleMessage); err != nil {
		return err
	}
	return errSessionEnded
}

func (f *Feed) handleMessage(data []byte) {
	update, ok, err := parseOrderbook(data)
	if err != nil {
		f.metrics.FeedIgnored.Inc()
		f.log.Warn("feed message rejected", zap.Error(err))
		return
	}
	if !ok {
		f.metrics.FeedIgnored.Inc()
		return
	}
	f.book.Update(update.Bid, update.Ask, f.now())
	f.metrics.FeedUpdates.Inc()
}
