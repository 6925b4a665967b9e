package exec

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Paper is a dry-run venue: orders rest in memory and never leave the process.
type Paper struct {
	log *zap.Logger

	mu     sync.Mutex
	orders map[string]Order
}

func NewPaper(log *zap.Logger) *Paper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Paper{log: log, orders: make(map[string]Order)}
}

func (p *Paper) PlacePostOnly(ctx context.Context, order Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "paper-" + uuid.NewString()
	p.mu.Lock()
	p.orders[id] = order
	p.mu.Unlock()
	p.log.Debug("paper order resting", zap.String("order_id", id), zap.String("side", string(order.Side)), zap.String("price", order.Price.String()))
	return id, nil
}

func (p *Paper) CancelAll(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, order := range p.orders {
		if order.Symbol == symbol {
			delete(p.orders, id)
		}
	}
	return nil
}

// Open returns the resting paper orders.
func (p *Paper) Open() map[string]Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Order, len(p.orders))
	for id, order := range p.orders {
		out[id] = order
	}
	return out
}
