// Package backtest drives the deterministic historical study: one
// pass over the calendar, one simulated trade per selected candidate
// per day, results journaled and rolled into the equity curve.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/orb/config"
	"github.com/rustyeddy/orb/journal"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/portfolio"
	"github.com/rustyeddy/orb/sim"
	"github.com/rustyeddy/orb/universe"
)

// Result aggregates a full run.
type Result struct {
	Days    int
	Trades  int
	Entered int
	Wins    int
	Losses  int

	GrossPnL   float64
	Commission float64
	NetPnL     float64

	FinalEquity float64
	Blown       bool
}

// Runner owns one backtest run. Single goroutine; trade order within a
// day and across days is fixed by the candidate ranking, so a run is
// reproducible bit for bit.
type Runner struct {
	cfg      *config.Config
	provider market.BarProvider
	jnl      journal.Journal
	acct     *portfolio.Accountant
	log      *slog.Logger
}

func NewRunner(cfg *config.Config, provider market.BarProvider, jnl journal.Journal, log *slog.Logger) (*Runner, error) {
	acct, err := portfolio.NewAccountant(
		portfolio.Mode(cfg.Account.Mode),
		cfg.Account.InitialCapital,
		cfg.Account.Leverage,
		cfg.Account.RiskScale,
	)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, provider: provider, jnl: jnl, acct: acct, log: log}, nil
}

// Accountant exposes the equity state for reporting after Run.
func (r *Runner) Accountant() *portfolio.Accountant { return r.acct }

// Run executes the study over the given trading days, in order.
func (r *Runner) Run(ctx context.Context, dates []time.Time) (*Result, error) {
	res := &Result{}
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.runDay(ctx, market.Midnight(date), res); err != nil {
			return res, err
		}
		res.Days++
	}

	r.acct.Finish()
	for _, y := range r.acct.Years() {
		row := journal.YearRow{
			Year:        y.Year,
			StartEquity: y.StartEquity,
			EndEquity:   y.EndEquity,
			PnL:         y.PnL,
			ReturnPct:   y.ReturnPct,
		}
		if err := r.jnl.RecordYear(row); err != nil {
			return res, fmt.Errorf("journal year %d: %w", y.Year, err)
		}
	}

	res.FinalEquity = r.acct.Equity()
	res.Blown = r.acct.Blown()
	r.log.Info("backtest complete", "days", res.Days, "trades", res.Trades,
		"entered", res.Entered, "wins", res.Wins, "losses", res.Losses,
		"net_pnl", res.NetPnL, "final_equity", res.FinalEquity, "blown", res.Blown)
	return res, nil
}

func (r *Runner) runDay(ctx context.Context, date time.Time, res *Result) error {
	var cands []universe.Candidate
	for _, sym := range r.cfg.Data.Universe {
		c, err := universe.Build(ctx, r.provider, sym, date)
		if err != nil {
			if errors.Is(err, universe.ErrDoji) || errors.Is(err, market.ErrNoBars) {
				r.log.Debug("symbol skipped", "symbol", sym, "date", date.Format("2006-01-02"), "reason", err)
			} else {
				r.log.Warn("symbol skipped", "symbol", sym, "date", date.Format("2006-01-02"), "error", err)
			}
			continue
		}
		cands = append(cands, c)
	}

	ranked := universe.Rank(cands, universe.Filter{
		MinATR:       r.cfg.Strategy.MinATR,
		MinAvgVolume: r.cfg.Strategy.MinAvgVolume,
		LongOnly:     r.cfg.Strategy.LongOnly,
		TopN:         r.cfg.Strategy.TopN,
	})

	perTrade, applyLeverage := r.acct.DayAllocation(len(ranked))

	var dayPnL float64
	for _, c := range ranked {
		tr := r.simulate(c, date, perTrade, applyLeverage)

		res.Trades++
		if tr.Entered {
			res.Entered++
			switch {
			case tr.NetPnL > 0:
				res.Wins++
			case tr.NetPnL < 0:
				res.Losses++
			}
		}
		res.GrossPnL += tr.GrossPnL
		res.Commission += tr.Commission
		res.NetPnL += tr.NetPnL
		dayPnL += tr.NetPnL

		row := journal.TradeRow{
			Date:       date,
			Ticker:     c.Ticker,
			Direction:  c.Direction,
			Entered:    tr.Entered,
			EntryPrice: tr.EntryPrice,
			EntryTime:  tr.EntryTime,
			ExitPrice:  tr.ExitPrice,
			ExitTime:   tr.ExitTime,
			ExitReason: string(tr.ExitReason),
			Shares:     tr.Shares,
			GrossPnL:   tr.GrossPnL,
			Commission: tr.Commission,
			NetPnL:     tr.NetPnL,
			Capped:     tr.Capped,
			CapRatio:   tr.CapRatio,
		}
		if err := r.jnl.RecordTrade(row); err != nil {
			return fmt.Errorf("journal trade %s %s: %w", c.Ticker, date.Format("2006-01-02"), err)
		}
	}

	r.acct.SettleDay(date, dayPnL)
	curve := r.acct.Curve()
	pt := curve[len(curve)-1]
	if err := r.jnl.RecordEquity(journal.EquityRow{Date: pt.Date, Equity: pt.Equity, DayPnL: pt.DayPnL}); err != nil {
		return fmt.Errorf("journal equity %s: %w", date.Format("2006-01-02"), err)
	}
	return nil
}

func (r *Runner) simulate(c universe.Candidate, date time.Time, perTrade float64, applyLeverage bool) sim.Trade {
	entry := c.ORHigh
	stop := c.ORHigh - r.cfg.Strategy.StopATRScale*c.ATR14
	if c.Direction < 0 {
		entry = c.ORLow
		stop = c.ORLow + r.cfg.Strategy.StopATRScale*c.ATR14
	}

	var cutoff time.Time
	if r.cfg.Strategy.EntryCutoff != "" {
		if h, m, err := config.ParseClock(r.cfg.Strategy.EntryCutoff); err == nil {
			cutoff = time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, market.Eastern)
		}
	}

	return sim.Simulate(c.Bars, sim.Params{
		Direction:  c.Direction,
		EntryLevel: entry,
		StopLevel:  stop,
		Sizing: sim.Sizing{
			PositionSize:  perTrade,
			Leverage:      r.cfg.Account.Leverage,
			ApplyLeverage: applyLeverage,
			MaxPctVolume:  r.cfg.Liquidity.MaxPctVolume,
			HardShareCap:  r.cfg.Liquidity.HardShareCap,
		},
		Costs: sim.Costs{
			SpreadPct:    r.cfg.Costs.SpreadPct,
			MinTick:      r.cfg.Costs.MinTick,
			CommPerShare: r.cfg.Costs.CommPerShare,
			CommMin:      r.cfg.Costs.CommMin,
			FreeExits:    r.cfg.Costs.FreeExits,
		},
		DayVolume:   c.DayVolume,
		EntryCutoff: cutoff,
		LimitRetest: r.cfg.Strategy.LimitRetest,
	})
}

// TradingDays expands [start, end] to the weekdays in between,
// inclusive. Exchange holidays are not modeled; a holiday simply has
// no bar files and every symbol skips.
func TradingDays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := market.Midnight(start); !d.After(market.Midnight(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}
