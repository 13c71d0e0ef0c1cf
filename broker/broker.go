// Package broker defines the minimal capability interface the live
// session runs against. A real broker adapter and the bar-replay
// simulator implement it identically, so the session loop never knows
// whether it is trading real money or replaying history.
package broker

import (
	"context"
	"time"
)

type Side string

const (
	Buy   Side = "BUY"
	Sell  Side = "SELL"
	Short Side = "SHORT"
	Cover Side = "COVER"
)

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
	Stop   OrderType = "STOP"
)

// Quote is a point-in-time snapshot for one symbol.
type Quote struct {
	Last   float64
	Bid    float64
	Ask    float64
	Volume float64
}

// OrderRequest describes one order submission. Price carries the limit
// or stop trigger price depending on Type; ignored for market orders.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Type     OrderType
	Quantity int
	Price    float64
}

// Order is one row of the broker's active-order list.
type Order struct {
	Symbol    string
	Side      Side
	Type      OrderType
	Quantity  int
	Ref       string // broker order id
	Price     float64
	StopPrice float64
	Status    string
}

// Position is one row of the broker's position list.
type Position struct {
	Symbol    string
	Qty       int
	AvgPrice  float64
	LastPrice float64
}

type Notification struct {
	Date    time.Time
	Title   string
	Message string
}

type AccountInfo struct {
	Equity      float64
	BuyingPower float64
}

type AccountSummary struct {
	DayRealized   float64
	DayUnrealized float64
	DayTotal      float64
	AccountValue  float64
	EstCommFees   float64
}

// Broker is the order/position capability surface. PlaceOrder returns
// an empty order id on rejection rather than an error; callers fall
// back per the safe-placement helpers.
type Broker interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetActiveOrders(ctx context.Context) ([]Order, error)
	GetNotifications(ctx context.Context) ([]Notification, error)
	GetAccountInfo(ctx context.Context) (AccountInfo, error)
	GetAccountSummary(ctx context.Context) (AccountSummary, error)
}

// Clock is the session's only suspension point. Live implementations
// sleep on the wall clock; the replay implementation advances a
// virtual clock instantly, which is what lets the identical loop body
// replay a whole trading day in seconds.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// WallClock is the real-time Clock.
type WallClock struct{}

func (WallClock) Now() time.Time        { return time.Now() }
func (WallClock) Sleep(d time.Duration) { time.Sleep(d) }
