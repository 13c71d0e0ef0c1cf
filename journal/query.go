package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetTrade returns a single trade row by date and ticker.
func (j *SQLite) GetTrade(date time.Time, ticker string) (TradeRow, error) {
	row := j.db.QueryRow(`
		SELECT trade_date, ticker, direction, entered, entry_price, entry_time, exit_price, exit_time, exit_reason, shares, gross_pnl, commission, net_pnl, capped, cap_ratio
		FROM trades
		WHERE trade_date = ? AND ticker = ?`, date, ticker)

	rec, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return TradeRow{}, fmt.Errorf("trade %s %s not found", date.Format("2006-01-02"), ticker)
	}
	return rec, err
}

// ListTradesBetween returns trades whose trade_date is within [start, end).
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRow, error) {
	rows, err := j.db.Query(`
		SELECT trade_date, ticker, direction, entered, entry_price, entry_time, exit_price, exit_time, exit_reason, shares, gross_pnl, commission, net_pnl, capped, cap_ratio
		FROM trades
		WHERE trade_date >= ? AND trade_date < ?
		ORDER BY trade_date ASC, ticker ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EquityCurve returns all equity rows in date order.
func (j *SQLite) EquityCurve() ([]EquityRow, error) {
	rows, err := j.db.Query(`
		SELECT trade_date, equity, day_pnl FROM equity ORDER BY trade_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRow
	for rows.Next() {
		var rec EquityRow
		if err := rows.Scan(&rec.Date, &rec.Equity, &rec.DayPnL); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Years returns all yearly summaries in year order.
func (j *SQLite) Years() ([]YearRow, error) {
	rows, err := j.db.Query(`
		SELECT year, start_equity, end_equity, pnl, return_pct FROM years ORDER BY year ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []YearRow
	for rows.Next() {
		var rec YearRow
		if err := rows.Scan(&rec.Year, &rec.StartEquity, &rec.EndEquity, &rec.PnL, &rec.ReturnPct); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRow, error) {
	var rec TradeRow
	var entryTime, exitTime sql.NullTime
	err := s.Scan(
		&rec.Date,
		&rec.Ticker,
		&rec.Direction,
		&rec.Entered,
		&rec.EntryPrice,
		&entryTime,
		&rec.ExitPrice,
		&exitTime,
		&rec.ExitReason,
		&rec.Shares,
		&rec.GrossPnL,
		&rec.Commission,
		&rec.NetPnL,
		&rec.Capped,
		&rec.CapRatio,
	)
	if entryTime.Valid {
		rec.EntryTime = entryTime.Time
	}
	if exitTime.Valid {
		rec.ExitTime = exitTime.Time
	}
	return rec, err
}
