package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gmo-maker-bot/internal/app"
	"gmo-maker-bot/internal/config"
	"gmo-maker-bot/internal/exec"
	"gmo-maker-bot/internal/gmo/rest"
	"gmo-maker-bot/internal/gmo/ws"
	"gmo-maker-bot/internal/logging"
	"gmo-maker-bot/internal/market"
	"gmo-maker-bot/internal/state"
	"gmo-maker-bot/internal/state/sqlite"
	"gmo-maker-bot/internal/strategy"

	"go.uber.org/zap"
)

const (
	defaultVerifyEnvFile = ".env"
	defaultBookWait      = 15 * time.Second
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	place := flag.Bool("place", false, "place the derived post-only pair on the venue, then cancel it")
	wait := flag.Duration("wait", defaultBookWait, "how long to wait for the first top-of-book")
	flag.Parse()

	if err := config.LoadEnv(defaultVerifyEnvFile); err != nil {
		fatal(err)
	}
	cfg, err := config.Read(*configPath)
	if err != nil {
		fatal(err)
	}
	log := logging.New(cfg.Log)
	params, err := app.BuildParams(cfg)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()
	top, err := firstTopOfBook(ctx, cfg, log)
	if err != nil {
		fatal(fmt.Errorf("top-of-book: %w", err))
	}
	decision := strategy.Decide(params, top, strategy.QuoteState{}, time.Now())
	fmt.Printf("top-of-book: symbol=%s bid=%s ask=%s spread_pct=%s\n", cfg.Venue.Symbol, top.Bid, top.Ask, decision.SpreadPct.StringFixed(6))
	fmt.Printf("decision: should_buy=%t buy_price=%s sell_price=%s size=%s\n", decision.ShouldBuy, decision.BuyPrice, decision.SellPrice, params.Quantity)

	printSnapshot(cfg.State.SQLitePath)

	if !*place {
		return
	}
	if cfg.Venue.APIKey == "" || cfg.Venue.APISecret == "" {
		fatal(errors.New("GMO_API_KEY and GMO_API_SECRET are required for -place"))
	}
	client := rest.New(cfg.Venue.PrivateBaseURL, cfg.Venue.RESTTimeout, cfg.Venue.APIKey, cfg.Venue.APISecret, log)
	ids, err := placeAndCancel(context.Background(), client, cfg.Venue.Symbol, decision, params.Quantity.String())
	if err != nil {
		fatal(err)
	}
	fmt.Printf("cancelled: %v\n", ids)
}

type orderClient interface {
	PlaceOrder(ctx context.Context, req rest.OrderRequest) (string, error)
	CancelBulk(ctx context.Context, symbols []string) ([]string, error)
}

// placeAndCancel places the decided orders and then cancels everything on the symbol, even
// when a placement failed, so a failed sell never leaves the buy resting.
func placeAndCancel(ctx context.Context, client orderClient, symbol string, decision strategy.Decision, size string) ([]string, error) {
	var placeErr error
	if decision.ShouldBuy {
		placeErr = placeOrder(ctx, client, symbol, exec.SideBuy, decision.BuyPrice.String(), size)
	}
	if placeErr == nil {
		placeErr = placeOrder(ctx, client, symbol, exec.SideSell, decision.SellPrice.String(), size)
	}
	ids, err := client.CancelBulk(ctx, []string{symbol})
	if err != nil {
		err = fmt.Errorf("cancel bulk: %w", err)
	}
	return ids, errors.Join(placeErr, err)
}

// firstTopOfBook runs the feed until the book holds a value.
func firstTopOfBook(ctx context.Context, cfg *config.Config, log *zap.Logger) (market.TopOfBook, error) {
	book := market.NewBook()
	client := ws.New(cfg.Venue.PublicWSURL, ws.Options{
		DialTimeout:  cfg.Feed.DialTimeout,
		PingInterval: cfg.Feed.PingInterval,
		PingTimeout:  cfg.Feed.PingTimeout,
		CloseTimeout: cfg.Feed.CloseTimeout,
		ReadLimit:    cfg.Feed.ReadLimit,
	}, log)
	feed := market.NewFeed(client, book, market.FeedOptions{
		Symbol:     cfg.Venue.Symbol,
		MaxRetries: cfg.Feed.MaxRetries,
		RetryDelay: cfg.Feed.RetryDelay,
	}, log, nil)

	feedCtx, stop := context.WithCancel(ctx)
	defer stop()
	errCh := make(chan error, 1)
	go func() { errCh <- feed.Run(feedCtx) }()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return market.TopOfBook{}, ctx.Err()
		case err := <-errCh:
			return market.TopOfBook{}, err
		case <-ticker.C:
			if top, ok := book.Snapshot(); ok {
				return top, nil
			}
		}
	}
}

func printSnapshot(path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("quote snapshot: none (%s)\n", path)
		return
	}
	store, err := sqlite.New(path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()
	snap, ok, err := state.LoadQuoteSnapshot(context.Background(), store)
	if err != nil {
		fatal(err)
	}
	if !ok {
		fmt.Println("quote snapshot: none")
		return
	}
	pretty, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Printf("quote snapshot:\n%s\n", string(pretty))
}

func placeOrder(ctx context.Context, client orderClient, symbol string, side exec.Side, price, size string) error {
	id, err := client.PlaceOrder(ctx, rest.OrderRequest{
		Symbol:        symbol,
		Side:          string(side),
		ExecutionType: rest.ExecutionLimit,
		TimeInForce:   rest.TifSOK,
		Price:         price,
		Size:          size,
	})
	if err != nil {
		return fmt.Errorf("place %s: %w", side, err)
	}
	fmt.Printf("placed: side=%s price=%s size=%s order_id=%s\n", side, price, size, id)
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
