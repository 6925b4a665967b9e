package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gmo-maker-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// BookSample is one periodic observation of the shared top-of-book.
type BookSample struct {
	Time      time.Time
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	SpreadPct decimal.Decimal
}

// QuoteCycle is one executed cancel/place round.
type QuoteCycle struct {
	Time        time.Time
	CycleID     string
	Symbol      string
	Bid         decimal.Decimal
	Ask         decimal.Decimal
	BuyPrice    decimal.NullDecimal
	SellPrice   decimal.NullDecimal
	BuyOrderID  string
	SellOrderID string
	Errors      string
}

type Writer struct {
	db         *sql.DB
	log        *zap.Logger
	schema     string
	samples    chan BookSample
	cycles     chan QuoteCycle
	started    atomic.Bool
	dropSample atomic.Uint64
	dropCycle  atomic.Uint64
}

// New returns a nil writer when Timescale is disabled; every method accepts a nil receiver.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := newWriter(db, cfg, log)
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func newWriter(db *sql.DB, cfg config.TimescaleConfig, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Writer{
		db:      db,
		log:     log,
		schema:  schema,
		samples: make(chan BookSample, queueSize),
		cycles:  make(chan QuoteCycle, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// EnqueueSample never blocks; samples are dropped while the queue is full.
func (w *Writer) EnqueueSample(sample BookSample) {
	if w == nil {
		return
	}
	select {
	case w.samples <- sample:
	default:
		if w.dropSample.Add(1) == 1 {
			w.log.Warn("timescale sample queue full")
		}
	}
}

func (w *Writer) EnqueueCycle(cycle QuoteCycle) {
	if w == nil {
		return
	}
	select {
	case w.cycles <- cycle:
	default:
		if w.dropCycle.Add(1) == 1 {
			w.log.Warn("timescale cycle queue full")
		}
	}
}

// Dropped reports how many samples and cycles were discarded on a full queue.
func (w *Writer) Dropped() (samples, cycles uint64) {
	if w == nil {
		return 0, 0
	}
	return w.dropSample.Load(), w.dropCycle.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample := <-w.samples:
			w.writeSample(ctx, sample)
		case cycle := <-w.cycles:
			w.writeCycle(ctx, cycle)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		bid NUMERIC NOT NULL,
		ask NUMERIC NOT NULL,
		spread_pct NUMERIC NOT NULL
	)`, w.table("top_of_book"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		cycle_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		bid NUMERIC NOT NULL,
		ask NUMERIC NOT NULL,
		buy_price NUMERIC,
		sell_price NUMERIC,
		buy_order_id TEXT NOT NULL DEFAULT '',
		sell_order_id TEXT NOT NULL DEFAULT '',
		errors TEXT NOT NULL DEFAULT ''
	)`, w.table("quote_cycles"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, name := range []string{"top_of_book", "quote_cycles"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeSample(ctx context.Context, sample BookSample) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if _, err := w.db.ExecContext(ctx, w.sampleQuery(),
		sample.Time,
		sample.Symbol,
		sample.Bid,
		sample.Ask,
		sample.SpreadPct,
	); err != nil {
		w.log.Warn("timescale sample insert failed", zap.Error(err))
	}
}

func (w *Writer) writeCycle(ctx context.Context, cycle QuoteCycle) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if _, err := w.db.ExecContext(ctx, w.cycleQuery(),
		cycle.Time,
		cycle.CycleID,
		cycle.Symbol,
		cycle.Bid,
		cycle.Ask,
		cycle.BuyPrice,
		cycle.SellPrice,
		cycle.BuyOrderID,
		cycle.SellOrderID,
		cycle.Errors,
	); err != nil {
		w.log.Warn("timescale cycle insert failed", zap.String("cycle_id", cycle.CycleID), zap.Error(err))
	}
}

func (w *Writer) sampleQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (ts, symbol, bid, ask, spread_pct) VALUES ($1,$2,$3,$4,$5)`, w.table("top_of_book"))
}

func (w *Writer) cycleQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (
		ts, cycle_id, symbol, bid, ask, buy_price, sell_price, buy_order_id, sell_order_id, errors
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
	)`, w.table("quote_cycles"))
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
