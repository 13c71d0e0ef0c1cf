// Package universe builds and ranks the daily pool of tradeable
// candidates. The ranking is deterministic and shared verbatim by the
// offline backtest and the live session's refinement step, which is
// what makes the two reconcilable.
package universe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/orb/indicators"
	"github.com/rustyeddy/orb/market"
)

// ErrDoji marks a symbol whose opening bar closed exactly where it
// opened; such symbols carry no directional bias and sit out the day.
var ErrDoji = errors.New("universe: opening range doji")

// Candidate is one symbol's daily entry into the ranked pool.
// Read-only once built.
type Candidate struct {
	Date        time.Time
	Ticker      string
	Direction   int // +1 long, -1 short
	RVOL        float64
	ATR14       float64
	AvgVolume14 float64
	ORHigh      float64
	ORLow       float64

	// Bars holds the post-opening-range intraday series.
	Bars []market.Bar
	// DayVolume is the total traded volume for the symbol-day,
	// opening range included, for the liquidity cap.
	DayVolume float64
}

const statPeriod = 14

// Build assembles a Candidate for one symbol-day: opening range and
// direction from the first 5-minute bar, ATR and average volume from
// trailing daily bars, RVOL from opening volume extrapolated to a
// full-day equivalent.
func Build(ctx context.Context, p market.BarProvider, ticker string, date time.Time) (Candidate, error) {
	intraday, err := p.IntradayBars(ctx, ticker, date)
	if err != nil {
		return Candidate{}, err
	}
	or, rest, err := market.SplitOpeningRange(intraday)
	if err != nil {
		return Candidate{}, err
	}
	dir := or.Direction()
	if dir == 0 {
		return Candidate{}, fmt.Errorf("%w: %s %s", ErrDoji, ticker, date.Format("2006-01-02"))
	}

	daily, err := p.DailyBars(ctx, ticker, date, statPeriod+1)
	if err != nil {
		return Candidate{}, err
	}
	atr, err := indicators.ATR(daily, statPeriod)
	if err != nil {
		return Candidate{}, fmt.Errorf("atr %s: %w", ticker, err)
	}
	avgVol, err := indicators.AvgVolume(daily, statPeriod)
	if err != nil {
		return Candidate{}, fmt.Errorf("avg volume %s: %w", ticker, err)
	}

	return Candidate{
		Date:        market.Midnight(date),
		Ticker:      ticker,
		Direction:   dir,
		RVOL:        RVOL(or.Volume, avgVol),
		ATR14:       atr,
		AvgVolume14: avgVol,
		ORHigh:      or.High,
		ORLow:       or.Low,
		Bars:        rest,
		DayVolume:   or.Volume + market.TotalVolume(rest),
	}, nil
}

// RVOL extrapolates opening-range volume to a full-day equivalent and
// normalizes it against the trailing average daily volume.
func RVOL(orVolume, avgDailyVolume float64) float64 {
	if avgDailyVolume <= 0 {
		return 0
	}
	return orVolume * market.SessionBarsPerDay / avgDailyVolume
}

// Filter holds the candidate selection thresholds.
type Filter struct {
	MinATR       float64
	MinAvgVolume float64
	LongOnly     bool
	TopN         int // 0 means unlimited
}

// Rank filters candidates by ATR and average-volume thresholds,
// optionally drops shorts, sorts by descending RVOL (ticker ascending
// on ties, so the order is total) and truncates to the top N.
// The input slice is not modified.
func Rank(cands []Candidate, f Filter) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.ATR14 < f.MinATR || c.AvgVolume14 < f.MinAvgVolume {
			continue
		}
		if f.LongOnly && c.Direction < 0 {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RVOL != out[j].RVOL {
			return out[i].RVOL > out[j].RVOL
		}
		return out[i].Ticker < out[j].Ticker
	})

	if f.TopN > 0 && len(out) > f.TopN {
		out = out[:f.TopN]
	}
	return out
}
