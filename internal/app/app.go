package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gmo-maker-bot/internal/alerts"
	"gmo-maker-bot/internal/config"
	"gmo-maker-bot/internal/exec"
	"gmo-maker-bot/internal/gmo/rest"
	"gmo-maker-bot/internal/gmo/ws"
	"gmo-maker-bot/internal/market"
	"gmo-maker-bot/internal/metrics"
	"gmo-maker-bot/internal/state"
	"gmo-maker-bot/internal/state/sqlite"
	"gmo-maker-bot/internal/strategy"
	"gmo-maker-bot/internal/timescale"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	snapshotTimeout = 2 * time.Second
	alertTimeout    = 10 * time.Second
)

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     state.Store
	book      *market.Book
	feed      *market.Feed
	gateway   strategy.Gateway
	engine    *strategy.Engine
	prom      *metrics.Prometheus
	metrics   *metrics.Metrics
	alerts    *alerts.Telegram
	timescale *timescale.Writer
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	params, err := BuildParams(cfg)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	tsWriter, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("timescale: %w", err)
	}

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	book := market.NewBook()
	wsClient := ws.New(cfg.Venue.PublicWSURL, ws.Options{
		DialTimeout:  cfg.Feed.DialTimeout,
		PingInterval: cfg.Feed.PingInterval,
		PingTimeout:  cfg.Feed.PingTimeout,
		CloseTimeout: cfg.Feed.CloseTimeout,
		ReadLimit:    cfg.Feed.ReadLimit,
	}, log)
	feed := market.NewFeed(wsClient, book, market.FeedOptions{
		Symbol:     cfg.Venue.Symbol,
		MaxRetries: cfg.Feed.MaxRetries,
		RetryDelay: cfg.Feed.RetryDelay,
	}, log, m)

	var venue exec.Venue
	if cfg.Quote.DryRun {
		log.Warn("dry run enabled, orders stay in memory")
		venue = exec.NewPaper(log)
	} else {
		venue = &gmoVenue{client: rest.New(cfg.Venue.PrivateBaseURL, cfg.Venue.RESTTimeout, cfg.Venue.APIKey, cfg.Venue.APISecret, log)}
	}
	executor := exec.New(venue, cfg.Quote.GatewayTimeout, log, m)

	a := &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		book:      book,
		feed:      feed,
		gateway:   executor,
		prom:      prom,
		metrics:   m,
		alerts:    alerts.NewTelegram(cfg.Telegram, log),
		timescale: tsWriter,
	}
	a.engine = strategy.NewEngine(params, book, executor, log, m)
	a.engine.OnCycle(a.recordCycle)
	return a, nil
}

// BuildParams converts the quote configuration into engine parameters.
func BuildParams(cfg *config.Config) (strategy.Params, error) {
	qty, err := config.PositiveDecimal(cfg.Quote.Quantity)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("quote.quantity: %w", err)
	}
	tick, err := config.PositiveDecimal(cfg.Quote.Tick)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("quote.tick: %w", err)
	}
	return strategy.Params{
		Symbol:          cfg.Venue.Symbol,
		Quantity:        qty,
		Tick:            tick,
		PriceDecimals:   cfg.Quote.PriceDecimals,
		SpreadThreshold: decimal.NewFromFloat(cfg.Quote.SpreadThresholdValue()),
		OrderInterval:   cfg.Quote.OrderIntervalValue(),
		UnsetInterval:   cfg.Quote.UnsetInterval,
		IdleInterval:    cfg.Quote.IdleInterval,
		MaxBookAge:      cfg.Quote.MaxBookAge,
	}, nil
}

// Run blocks until ctx is cancelled or the feed gives up. A feed failure is returned as a
// *market.FatalError; a plain cancellation returns nil.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	a.cancelLeftovers(ctx)
	a.timescale.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if a.prom != nil {
		g.Go(func() error {
			// Metrics are best effort; losing the endpoint must not stop quoting.
			if err := a.prom.Serve(gctx, a.cfg.Metrics.Address, a.cfg.Metrics.Path, a.log); err != nil {
				a.log.Error("metrics server failed", zap.String("addr", a.cfg.Metrics.Address), zap.Error(err))
				a.notify("metrics server failed",
					"addr", a.cfg.Metrics.Address,
					"error", err.Error(),
				)
			}
			return nil
		})
	}
	g.Go(func() error {
		err := a.feed.Run(gctx)
		var fatal *market.FatalError
		if errors.As(err, &fatal) {
			a.notify("feed stopped after exhausting reconnects",
				"symbol", a.cfg.Venue.Symbol,
				"attempts", strconv.Itoa(fatal.Attempts),
				"error", fatal.Err.Error(),
			)
		}
		return err
	})
	g.Go(func() error {
		return a.engine.Run(gctx)
	})
	if a.timescale != nil {
		g.Go(func() error {
			return a.sampleBook(gctx)
		})
	}

	err := g.Wait()
	a.cancelOnShutdown()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// cancelLeftovers clears orders a previous run may have left resting.
func (a *App) cancelLeftovers(ctx context.Context) {
	snap, ok, err := state.LoadQuoteSnapshot(ctx, a.store)
	if err != nil {
		a.log.Warn("quote snapshot load failed", zap.Error(err))
		return
	}
	if !ok || !snap.HasOrders() {
		return
	}
	a.log.Info("previous run left orders, cancelling",
		zap.String("cycle_id", snap.CycleID),
		zap.String("buy_order_id", snap.BuyOrderID),
		zap.String("sell_order_id", snap.SellOrderID),
	)
	if err := a.gateway.CancelAllOrders(ctx, a.cfg.Venue.Symbol); err != nil {
		a.log.Warn("startup cancel failed", zap.Error(err))
		return
	}
	if err := state.ClearQuoteOrders(ctx, a.store); err != nil {
		a.log.Warn("quote snapshot update failed", zap.Error(err))
	}
}

func (a *App) cancelOnShutdown() {
	if !a.cfg.Quote.CancelOnShutdownValue() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Quote.GatewayTimeout+time.Second)
	defer cancel()
	if err := a.gateway.CancelAllOrders(ctx, a.cfg.Venue.Symbol); err != nil {
		a.log.Error("shutdown cancel failed", zap.Error(err))
		a.notify("shutdown cancel failed, orders may still rest",
			"symbol", a.cfg.Venue.Symbol,
			"error", err.Error(),
		)
		return
	}
	a.log.Info("cancelled resting orders on shutdown", zap.String("symbol", a.cfg.Venue.Symbol))
	if err := state.ClearQuoteOrders(ctx, a.store); err != nil {
		a.log.Warn("quote snapshot update failed", zap.Error(err))
	}
}

func (a *App) recordCycle(cycle strategy.Cycle) {
	snap := state.QuoteSnapshot{
		CycleID:     cycle.ID,
		Symbol:      a.cfg.Venue.Symbol,
		Bid:         cycle.Top.Bid.String(),
		Ask:         cycle.Top.Ask.String(),
		BuyOrderID:  cycle.State.BuyOrderID,
		SellOrderID: cycle.State.SellOrderID,
		UpdatedAtMS: cycle.At.UnixMilli(),
	}
	if cycle.State.LastBuyPrice.Valid {
		snap.LastBuyPrice = cycle.State.LastBuyPrice.Decimal.String()
	}
	if cycle.State.LastSellPrice.Valid {
		snap.LastSellPrice = cycle.State.LastSellPrice.Decimal.String()
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := state.SaveQuoteSnapshot(ctx, a.store, snap); err != nil {
		a.log.Warn("quote snapshot save failed", zap.String("cycle_id", cycle.ID), zap.Error(err))
	}
	a.recordTimescaleCycle(cycle)
}

func (a *App) notify(title string, fields ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	a.alerts.Notify(ctx, title, fields...)
}

func (a *App) close() {
	if err := a.timescale.Close(); err != nil {
		a.log.Warn("timescale close failed", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("state store close failed", zap.Error(err))
		}
	}
}
