package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/orb/internal/id"
	"github.com/rustyeddy/orb/market"
)

// Replay is a bar-driven Broker and Clock for one trading day. Sleep
// advances the virtual clock instantly; order and position state is
// re-evaluated lazily against every bar that has completed by the
// current virtual time, in chronological order across symbols. All
// state is owned by the single session goroutine, so there is no lock.
type Replay struct {
	bars     map[string][]market.Bar
	idx      map[string]int // next bar to evaluate per symbol
	now      time.Time
	leverage float64

	last   map[string]float64 // latest completed close per symbol
	volume map[string]float64 // cumulative day volume per symbol

	orders    []*replayOrder
	positions map[string]*replayPosition

	equity   float64
	realized float64
}

type replayOrder struct {
	Order
	filled bool
}

type replayPosition struct {
	qty      int
	avgPrice float64
}

// NewReplay builds a replay broker over full intraday day series
// (opening-range bar included), starting the clock at start.
func NewReplay(bars map[string][]market.Bar, start time.Time, equity, leverage float64) *Replay {
	if leverage <= 0 {
		leverage = 1
	}
	r := &Replay{
		bars:      bars,
		idx:       make(map[string]int, len(bars)),
		now:       start,
		leverage:  leverage,
		last:      make(map[string]float64, len(bars)),
		volume:    make(map[string]float64, len(bars)),
		positions: make(map[string]*replayPosition),
		equity:    equity,
	}
	for sym, series := range bars {
		if len(series) > 0 {
			// Pre-open quotes come from the opening print.
			r.last[sym] = series[0].Open
		}
	}
	return r
}

func (r *Replay) Now() time.Time { return r.now }

func (r *Replay) Sleep(d time.Duration) { r.now = r.now.Add(d) }

// advance evaluates every bar completed by the virtual clock, earliest
// first, so fills across symbols happen in time order.
func (r *Replay) advance() {
	for {
		var (
			bestSym string
			bestEnd time.Time
		)
		for sym, series := range r.bars {
			i := r.idx[sym]
			if i >= len(series) {
				continue
			}
			end := series[i].Time.Add(market.OpeningRangeWidth)
			if end.After(r.now) {
				continue
			}
			if bestSym == "" || end.Before(bestEnd) {
				bestSym, bestEnd = sym, end
			}
		}
		if bestSym == "" {
			return
		}
		bar := r.bars[bestSym][r.idx[bestSym]]
		r.idx[bestSym]++
		r.applyBar(bestSym, bar)
	}
}

func (r *Replay) applyBar(sym string, b market.Bar) {
	r.last[sym] = b.Close
	r.volume[sym] += b.Volume

	for _, o := range r.orders {
		if o.filled || o.Symbol != sym {
			continue
		}
		switch {
		case o.Type == Stop && (o.Side == Buy || o.Side == Cover):
			if b.High >= o.StopPrice {
				r.fill(o, o.StopPrice)
			}
		case o.Type == Stop && (o.Side == Sell || o.Side == Short):
			if b.Low <= o.StopPrice {
				r.fill(o, o.StopPrice)
			}
		case o.Type == Limit && (o.Side == Buy || o.Side == Cover):
			if b.Low <= o.Price {
				r.fill(o, o.Price)
			}
		case o.Type == Limit && (o.Side == Sell || o.Side == Short):
			if b.High >= o.Price {
				r.fill(o, o.Price)
			}
		}
	}
}

func (r *Replay) fill(o *replayOrder, price float64) {
	o.filled = true
	r.apply(o.Symbol, o.Side, o.Quantity, price)
}

// apply mutates position state for a fill and accrues realized P&L on
// the closing side.
func (r *Replay) apply(sym string, side Side, qty int, price float64) {
	p := r.positions[sym]
	switch side {
	case Buy, Cover:
		if p == nil {
			r.positions[sym] = &replayPosition{qty: qty, avgPrice: price}
			return
		}
		total := p.avgPrice*float64(p.qty) + price*float64(qty)
		p.qty += qty
		p.avgPrice = total / float64(p.qty)
	case Sell, Short:
		if p == nil {
			return
		}
		if qty > p.qty {
			qty = p.qty
		}
		r.realized += (price - p.avgPrice) * float64(qty)
		r.equity += (price - p.avgPrice) * float64(qty)
		p.qty -= qty
		if p.qty <= 0 {
			delete(r.positions, sym)
		}
	}
}

func (r *Replay) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	r.advance()
	last, ok := r.last[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("replay: no data for %q", symbol)
	}
	return Quote{Last: last, Bid: last, Ask: last, Volume: r.volume[symbol]}, nil
}

func (r *Replay) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	r.advance()
	if req.Quantity <= 0 {
		return "", nil
	}

	oid := id.New()
	if req.Type == Market {
		last, ok := r.last[req.Symbol]
		if !ok {
			return "", nil
		}
		r.apply(req.Symbol, req.Side, req.Quantity, last)
		return oid, nil
	}

	o := &replayOrder{Order: Order{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
		Ref:      oid,
		Status:   "WORKING",
	}}
	if req.Type == Stop {
		o.StopPrice = req.Price
	} else {
		o.Price = req.Price
	}
	r.orders = append(r.orders, o)
	return oid, nil
}

func (r *Replay) GetPositions(ctx context.Context) ([]Position, error) {
	r.advance()
	out := make([]Position, 0, len(r.positions))
	for sym, p := range r.positions {
		out = append(out, Position{
			Symbol:    sym,
			Qty:       p.qty,
			AvgPrice:  p.avgPrice,
			LastPrice: r.last[sym],
		})
	}
	return out, nil
}

func (r *Replay) GetActiveOrders(ctx context.Context) ([]Order, error) {
	r.advance()
	var out []Order
	for _, o := range r.orders {
		if !o.filled {
			out = append(out, o.Order)
		}
	}
	return out, nil
}

func (r *Replay) GetNotifications(ctx context.Context) ([]Notification, error) {
	return nil, nil
}

func (r *Replay) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	r.advance()
	eq := r.equity + r.unrealized()
	return AccountInfo{Equity: eq, BuyingPower: eq * r.leverage}, nil
}

func (r *Replay) GetAccountSummary(ctx context.Context) (AccountSummary, error) {
	r.advance()
	unreal := r.unrealized()
	return AccountSummary{
		DayRealized:   r.realized,
		DayUnrealized: unreal,
		DayTotal:      r.realized + unreal,
		AccountValue:  r.equity + unreal,
	}, nil
}

func (r *Replay) unrealized() float64 {
	var u float64
	for sym, p := range r.positions {
		u += (r.last[sym] - p.avgPrice) * float64(p.qty)
	}
	return u
}
