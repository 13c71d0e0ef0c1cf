// Package portfolio turns per-trade results into equity movement under
// one of two account-growth policies.
package portfolio

import (
	"fmt"
	"time"
)

// Mode selects the account-growth policy.
type Mode string

const (
	// Fixed gives every trade the same base notional; realized P&L
	// never feeds back into sizing. Used for win-rate studies, not
	// account simulation.
	Fixed Mode = "fixed"
	// Compounding splits equity * leverage * riskScale equally across
	// each day's candidates and rolls realized P&L into equity.
	Compounding Mode = "compounding"
)

// EquityFloor is the minimal positive equity after a blown account;
// the study continues rather than going negative or halting.
const EquityFloor = 0.01

// EquityPoint is one equity-curve row.
type EquityPoint struct {
	Date   time.Time
	Equity float64
	DayPnL float64
}

// YearSummary is the year-boundary snapshot. Compounding is continuous
// across years; this is bookkeeping only, never a reset.
type YearSummary struct {
	Year        int
	StartEquity float64
	EndEquity   float64
	PnL         float64
	ReturnPct   float64
}

// Accountant owns the per-run equity state. It is mutated once per
// trading day by the single backtest loop; no concurrent writers.
type Accountant struct {
	mode      Mode
	initial   float64
	leverage  float64
	riskScale float64

	equity    float64
	yearStart float64
	year      int
	blown     bool

	curve []EquityPoint
	years []YearSummary
}

func NewAccountant(mode Mode, initialCapital, leverage, riskScale float64) (*Accountant, error) {
	if mode != Fixed && mode != Compounding {
		return nil, fmt.Errorf("portfolio: unknown mode %q", mode)
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("portfolio: initial capital must be positive, got %v", initialCapital)
	}
	if leverage <= 0 {
		leverage = 1
	}
	if riskScale <= 0 {
		riskScale = 1
	}
	return &Accountant{
		mode:      mode,
		initial:   initialCapital,
		leverage:  leverage,
		riskScale: riskScale,
		equity:    initialCapital,
		yearStart: initialCapital,
	}, nil
}

// DayAllocation returns the per-trade base notional for a day with n
// candidates and whether the simulator should apply leverage itself.
// In compounding mode leverage is applied once at the pool level, so
// applyLeverage comes back false to avoid double-counting.
func (a *Accountant) DayAllocation(n int) (perTrade float64, applyLeverage bool) {
	if n <= 0 {
		return 0, false
	}
	if a.mode == Fixed {
		return a.initial, true
	}
	pool := a.equity * a.leverage * a.riskScale
	return pool / float64(n), false
}

// SettleDay applies one trading day's summed net P&L. Year-boundary
// bookkeeping happens before the day is applied so the snapshot closes
// on the prior year's final equity.
func (a *Accountant) SettleDay(date time.Time, dayPnL float64) {
	if a.year == 0 {
		a.year = date.Year()
	} else if y := date.Year(); y != a.year {
		a.snapshotYear()
		a.year = y
	}

	if a.mode == Compounding {
		a.equity += dayPnL
		if a.equity <= 0 {
			a.equity = EquityFloor
			a.blown = true
		}
	}

	a.curve = append(a.curve, EquityPoint{Date: date, Equity: a.equity, DayPnL: dayPnL})
}

// Finish closes out the in-progress year. Call once after the last day.
func (a *Accountant) Finish() {
	if a.year != 0 {
		a.snapshotYear()
		a.year = 0
	}
}

func (a *Accountant) snapshotYear() {
	s := YearSummary{
		Year:        a.year,
		StartEquity: a.yearStart,
		EndEquity:   a.equity,
		PnL:         a.equity - a.yearStart,
	}
	if a.yearStart > 0 {
		s.ReturnPct = (a.equity/a.yearStart - 1) * 100
	}
	a.years = append(a.years, s)
	a.yearStart = a.equity
}

func (a *Accountant) Equity() float64      { return a.equity }
func (a *Accountant) Blown() bool          { return a.blown }
func (a *Accountant) Curve() []EquityPoint { return a.curve }
func (a *Accountant) Years() []YearSummary { return a.years }
