package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type TopOfBook struct {
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	UpdatedAt time.Time
}

// Book is the single shared top-of-book cell. The feed writes it, the quoting engine reads it;
// every read and write covers the whole bid/ask/timestamp triple.
type Book struct {
	mu  sync.RWMutex
	top TopOfBook
	set bool
}

func NewBook() *Book {
	return &Book{}
}

func (b *Book) Update(bid, ask decimal.Decimal, at time.Time) {
	b.mu.Lock()
	b.top = TopOfBook{Bid: bid, Ask: ask, UpdatedAt: at}
	b.set = true
	b.mu.Unlock()
}

// Snapshot returns the latest top-of-book; ok is false until the first update arrives.
func (b *Book) Snapshot() (TopOfBook, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.top, b.set
}

// Age reports how long ago the book was last written.
func (b *Book) Age(now time.Time) (time.Duration, bool) {
	top, ok := b.Snapshot()
	if !ok {
		return 0, false
	}
	return now.Sub(top.UpdatedAt), true
}
