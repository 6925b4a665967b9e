package strategy

import (
	"context"
	"sync"
	"time"

	"gmo-maker-bot/internal/exec"
	"gmo-maker-bot/internal/market"
	"gmo-maker-bot/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Engine struct {
	params  Params
	book    BookReader
	gateway Gateway
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	onCycle func(Cycle)

	mu    sync.Mutex
	state QuoteState
}

func NewEngine(params Params, book BookReader, gateway Gateway, log *zap.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		params:  params,
		book:    book,
		gateway: gateway,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// OnCycle registers a callback invoked after every executed cycle.
func (e *Engine) OnCycle(fn func(Cycle)) {
	e.onCycle = fn
}

func (e *Engine) State() QuoteState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run polls the book until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		wait := e.Step(ctx)
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Step evaluates one cycle and returns how long to wait before the next one.
func (e *Engine) Step(ctx context.Context) time.Duration {
	top, ok := e.book.Snapshot()
	if !ok {
		return e.params.UnsetInterval
	}
	now := e.now()
	if err := CheckBookAge(e.params.MaxBookAge, now.Sub(top.UpdatedAt)); err != nil {
		e.log.Debug("quote skipped", zap.Error(err))
		return e.params.IdleInterval
	}
	decision := Decide(e.params, top, e.State(), now)
	if !decision.Act() {
		return e.params.IdleInterval
	}
	e.execute(ctx, now, top, decision)
	return 0
}

func (e *Engine) execute(ctx context.Context, now time.Time, top market.TopOfBook, decision Decision) {
	cycle := Cycle{ID: uuid.NewString(), At: now, Top: top, Decision: decision}
	log := e.log.With(zap.String("cycle_id", cycle.ID), zap.String("symbol", e.params.Symbol))
	log.Info("quote cycle",
		zap.Bool("should_buy", decision.ShouldBuy),
		zap.String("bid", top.Bid.String()),
		zap.String("ask", top.Ask.String()),
		zap.String("spread_pct", decision.SpreadPct.StringFixed(6)),
		zap.String("buy_price", decision.BuyPrice.String()),
		zap.String("sell_price", decision.SellPrice.String()),
	)

	next := e.State()
	if err := e.gateway.CancelAllOrders(ctx, e.params.Symbol); err != nil {
		cycle.CancelErr = err
		log.Warn("cancel all failed", zap.Error(err))
	} else {
		// Ids track resting orders only; last prices survive the cancel.
		next.BuyOrderID = ""
		next.SellOrderID = ""
	}
	if decision.ShouldBuy {
		id, err := e.gateway.PlacePostOnlyLimitOrder(ctx, e.params.Symbol, exec.SideBuy, e.params.Quantity, decision.BuyPrice)
		if err != nil {
			cycle.BuyErr = err
			log.Warn("buy order failed", zap.String("price", decision.BuyPrice.String()), zap.Error(err))
		} else {
			cycle.BuyOrderID = id
			next.LastBuyPrice.Decimal = decision.BuyPrice
			next.LastBuyPrice.Valid = true
			next.BuyOrderID = id
		}
	} else {
		e.metrics.BuySkipped.Inc()
		log.Info("buy skipped, spread below threshold",
			zap.String("spread_pct", decision.SpreadPct.StringFixed(6)),
			zap.String("threshold", e.params.SpreadThreshold.String()),
		)
	}

	id, err := e.gateway.PlacePostOnlyLimitOrder(ctx, e.params.Symbol, exec.SideSell, e.params.Quantity, decision.SellPrice)
	if err != nil {
		cycle.SellErr = err
		log.Warn("sell order failed", zap.String("price", decision.SellPrice.String()), zap.Error(err))
	} else {
		cycle.SellOrderID = id
		next.LastSellPrice.Decimal = decision.SellPrice
		next.LastSellPrice.Valid = true
		next.SellOrderID = id
	}
	next.LastOrderTime = now

	e.mu.Lock()
	e.state = next
	e.mu.Unlock()
	e.metrics.QuoteCycles.Inc()

	cycle.State = next
	if e.onCycle != nil {
		e.onCycle(cycle)
	}
}
