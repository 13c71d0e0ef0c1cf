package session

import (
	"context"
	"fmt"

	"github.com/rustyeddy/orb/broker"
)

// placeMarketWithFallback submits a market order; if the broker rejects
// it (empty id), it retries once as a marketable limit pinned to the
// current ask (buys) or bid (sells). Returns the order id, or empty if
// both attempts were rejected.
func (s *Session) placeMarketWithFallback(ctx context.Context, symbol string, side broker.Side, qty int) (string, error) {
	id, err := s.brk.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     broker.Market,
		Quantity: qty,
	})
	if err != nil {
		return "", fmt.Errorf("market %s %s: %w", side, symbol, err)
	}
	if id != "" {
		return id, nil
	}

	q, err := s.brk.GetQuote(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("market %s %s rejected, quote for fallback: %w", side, symbol, err)
	}
	price := q.Ask
	if side == broker.Sell || side == broker.Short {
		price = q.Bid
	}
	s.log.Warn("market order rejected, retrying as marketable limit",
		"symbol", symbol, "side", side, "qty", qty, "limit", price)
	id, err = s.brk.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     broker.Limit,
		Quantity: qty,
		Price:    price,
	})
	if err != nil {
		return "", fmt.Errorf("limit fallback %s %s: %w", side, symbol, err)
	}
	return id, nil
}

// placeProtectiveStop rests a stop-loss sell under an open long. Before
// submitting it scans the broker's active orders; if a sell-side order
// already rests for the symbol, that order is reused instead of
// stacking a duplicate stop.
func (s *Session) placeProtectiveStop(ctx context.Context, symbol string, qty int, stopPrice float64) (string, error) {
	orders, err := s.brk.GetActiveOrders(ctx)
	if err == nil {
		for _, o := range orders {
			if o.Symbol == symbol && (o.Side == broker.Sell || o.Side == broker.Short) {
				s.log.Info("protective stop already resting, reusing",
					"symbol", symbol, "order", o.Ref)
				return o.Ref, nil
			}
		}
	} else {
		s.log.Warn("active-order scan before stop placement failed", "error", err)
	}

	id, err := s.brk.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:   symbol,
		Side:     broker.Sell,
		Type:     broker.Stop,
		Quantity: qty,
		Price:    stopPrice,
	})
	if err != nil {
		return "", fmt.Errorf("protective stop %s: %w", symbol, err)
	}
	return id, nil
}
