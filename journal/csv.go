// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	trades     *csv.Writer
	equity     *csv.Writer
	years      *csv.Writer
	tf, ef, yf *os.File
}

func NewCSV(tradesPath, equityPath, yearsPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}
	yf, err := os.Create(yearsPath)
	if err != nil {
		tf.Close()
		ef.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)
	yw := csv.NewWriter(yf)

	if err := tw.Write([]string{"trade_date", "ticker", "direction", "entered", "entry_price", "entry_time", "exit_price", "exit_time", "exit_reason", "shares", "gross_pnl", "commission", "net_pnl", "capped", "cap_ratio"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"trade_date", "equity", "day_pnl"}); err != nil {
		return nil, err
	}
	if err := yw.Write([]string{"year", "start_equity", "end_equity", "pnl", "return_pct"}); err != nil {
		return nil, err
	}

	for _, w := range []*csv.Writer{tw, ew, yw} {
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	}

	return &CSVJournal{tw, ew, yw, tf, ef, yf}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRow) error {
	j.trades.Write([]string{
		t.Date.Format("2006-01-02"),
		t.Ticker,
		strconv.Itoa(t.Direction),
		strconv.FormatBool(t.Entered),
		f(t.EntryPrice),
		ts(t.EntryTime),
		f(t.ExitPrice),
		ts(t.ExitTime),
		t.ExitReason,
		strconv.Itoa(t.Shares),
		f(t.GrossPnL),
		f(t.Commission),
		f(t.NetPnL),
		strconv.FormatBool(t.Capped),
		f(t.CapRatio),
	})
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquityRow) error {
	j.equity.Write([]string{
		e.Date.Format("2006-01-02"),
		f(e.Equity),
		f(e.DayPnL),
	})
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) RecordYear(y YearRow) error {
	j.years.Write([]string{
		strconv.Itoa(y.Year),
		f(y.StartEquity),
		f(y.EndEquity),
		f(y.PnL),
		f(y.ReturnPct),
	})
	j.years.Flush()
	return j.years.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.equity.Flush()
	j.years.Flush()

	var firstErr error
	for _, c := range []*os.File{j.tf, j.ef, j.yf} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
