package app

import (
	"context"
	"errors"

	"gmo-maker-bot/internal/exec"
	"gmo-maker-bot/internal/gmo/rest"
)

// gmoVenue maps post-only intents onto the private REST API. SOK is the venue's post-only
// time-in-force: the order is rejected instead of taking liquidity.
type gmoVenue struct {
	client *rest.Client
}

func (g *gmoVenue) PlacePostOnly(ctx context.Context, order exec.Order) (string, error) {
	if g.client == nil {
		return "", errors.New("rest client is required")
	}
	return g.client.PlaceOrder(ctx, rest.OrderRequest{
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		ExecutionType: rest.ExecutionLimit,
		TimeInForce:   rest.TifSOK,
		Price:         order.Price.String(),
		Size:          order.Size.String(),
	})
}

func (g *gmoVenue) CancelAll(ctx context.Context, symbol string) error {
	if g.client == nil {
		return errors.New("rest client is required")
	}
	_, err := g.client.CancelBulk(ctx, []string{symbol})
	return err
}
