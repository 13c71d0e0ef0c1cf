package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRow) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO trades
		(trade_date, ticker, direction, entered, entry_price, entry_time, exit_price, exit_time, exit_reason, shares, gross_pnl, commission, net_pnl, capped, cap_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date, t.Ticker, t.Direction, t.Entered, t.EntryPrice, t.EntryTime,
		t.ExitPrice, t.ExitTime, t.ExitReason, t.Shares, t.GrossPnL,
		t.Commission, t.NetPnL, t.Capped, t.CapRatio,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityRow) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO equity (trade_date, equity, day_pnl)
		VALUES (?, ?, ?)`,
		e.Date, e.Equity, e.DayPnL,
	)
	return err
}

func (j *SQLite) RecordYear(y YearRow) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO years (year, start_equity, end_equity, pnl, return_pct)
		VALUES (?, ?, ?, ?, ?)`,
		y.Year, y.StartEquity, y.EndEquity, y.PnL, y.ReturnPct,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
