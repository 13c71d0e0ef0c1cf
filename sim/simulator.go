// Package sim deterministically replays one symbol-day's bar series
// against an entry/stop rule and reports the outcome. A Simulate call
// is pure: no clocks, no randomness, no state across invocations, so
// bulk backtests can fan out per symbol-day without coordination.
package sim

import (
	"time"

	"github.com/rustyeddy/orb/market"
)

// ExitReason classifies how a simulated trade ended. The literal
// values are part of the journal schema and the backtest/live
// reconciliation surface; do not rename them.
type ExitReason string

const (
	StopLoss     ExitReason = "STOP_LOSS"
	EndOfDay     ExitReason = "EOD"
	CutoffCancel ExitReason = "CUTOFF_CANCEL"
	NoEntry      ExitReason = "NO_ENTRY"
	NoBars       ExitReason = "NO_BARS"
)

// Params are the inputs to one simulation. EntryLevel and StopLevel
// must already be on the correct sides for Direction; the simulator
// does not re-validate inverted risk.
type Params struct {
	Direction  int // +1 long, -1 short
	EntryLevel float64
	StopLevel  float64

	Sizing Sizing
	Costs  Costs

	// DayVolume is the symbol-day's total traded volume for the
	// liquidity cap. If 0 it is summed from the series.
	DayVolume float64

	// EntryCutoff cancels the resting order if no fill has happened by
	// this time. Zero disables.
	EntryCutoff time.Time

	// LimitRetest switches to the maker-style fill rule: a first bar
	// must cross the breakout level (trigger, no fill), then a later
	// bar must revisit the exact entry level, which fills with no
	// spread penalty.
	LimitRetest bool
}

// Trade is the immutable result of one simulation.
type Trade struct {
	Entered    bool
	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time
	ExitReason ExitReason

	Shares     int
	GrossPnL   float64
	Commission float64
	NetPnL     float64

	Capped   bool
	CapRatio float64
}

// Simulate replays the post-opening-range bars in time order.
// Entry and stop checks are mutually exclusive states: the bar that
// fills the entry is never also checked for a stop hit.
func Simulate(bars []market.Bar, p Params) Trade {
	if len(bars) == 0 {
		return Trade{ExitReason: NoBars}
	}

	dayVolume := p.DayVolume
	if dayVolume == 0 {
		dayVolume = market.TotalVolume(bars)
	}

	var (
		t     Trade
		armed bool // limit-retest: breakout seen, waiting for the pullback
	)

	for _, b := range bars {
		if !t.Entered {
			if !p.EntryCutoff.IsZero() && !b.Time.Before(p.EntryCutoff) {
				// Resting order expires unfilled.
				t.ExitReason = CutoffCancel
				return t
			}

			if p.LimitRetest {
				if !armed {
					armed = crossed(p.Direction, b, p.EntryLevel)
					continue
				}
				if retested(p.Direction, b, p.EntryLevel) {
					t.enter(b.Time, p.EntryLevel)
				}
				continue
			}

			if crossed(p.Direction, b, p.EntryLevel) {
				t.enter(b.Time, p.Costs.EntryExec(p.Direction, p.EntryLevel))
			}
			continue
		}

		if stopHit(p.Direction, b, p.StopLevel) {
			t.exit(b.Time, p.Costs.ExitExec(p.Direction, p.StopLevel), StopLoss)
			break
		}
	}

	if !t.Entered {
		t.ExitReason = NoEntry
		return t
	}
	if t.ExitReason == "" {
		last := bars[len(bars)-1]
		t.exit(last.Time, p.Costs.ExitExec(p.Direction, last.Close), EndOfDay)
	}

	t.settle(p, dayVolume)
	return t
}

func (t *Trade) enter(at time.Time, price float64) {
	t.Entered = true
	t.EntryTime = at
	t.EntryPrice = price
}

func (t *Trade) exit(at time.Time, price float64, reason ExitReason) {
	t.ExitTime = at
	t.ExitPrice = price
	t.ExitReason = reason
}

// settle computes share count, commissions and net P&L.
func (t *Trade) settle(p Params, dayVolume float64) {
	target, actual, capped := p.Sizing.shares(t.EntryPrice, dayVolume)
	t.Shares = actual
	t.Capped = capped
	t.CapRatio = 1
	if target > 0 {
		t.CapRatio = float64(actual) / float64(target)
	}

	comm := p.Costs.Commission(actual)
	if !p.Costs.FreeExits {
		comm += p.Costs.Commission(actual)
	}

	gross := float64(p.Direction) * (t.ExitPrice - t.EntryPrice) * float64(actual)

	t.GrossPnL = roundCents(gross)
	t.Commission = roundCents(comm)
	t.NetPnL = roundCents(gross - comm)
}

// crossed reports a breakout through the entry level using raw bar
// prices; costs never affect trigger checks.
func crossed(direction int, b market.Bar, level float64) bool {
	if direction > 0 {
		return b.High >= level
	}
	return b.Low <= level
}

// retested reports a pullback to the exact entry level after a breakout.
func retested(direction int, b market.Bar, level float64) bool {
	if direction > 0 {
		return b.Low <= level
	}
	return b.High >= level
}

func stopHit(direction int, b market.Bar, stop float64) bool {
	if direction > 0 {
		return b.Low <= stop
	}
	return b.High >= stop
}
