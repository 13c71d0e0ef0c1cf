// journal/journal.go
package journal

import "time"

// TradeRow is one (trade_date, ticker) row of the trades table. Column
// semantics are shared by backtest and live reconciliation runs so the
// two can be diffed.
type TradeRow struct {
	Date       time.Time
	Ticker     string
	Direction  int
	Entered    bool
	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time
	ExitReason string
	Shares     int
	GrossPnL   float64
	Commission float64
	NetPnL     float64
	Capped     bool
	CapRatio   float64
}

// EquityRow is one equity-curve row per trading day.
type EquityRow struct {
	Date   time.Time
	Equity float64
	DayPnL float64
}

// YearRow is one yearly summary row.
type YearRow struct {
	Year        int
	StartEquity float64
	EndEquity   float64
	PnL         float64
	ReturnPct   float64
}

type Journal interface {
	RecordTrade(TradeRow) error
	RecordEquity(EquityRow) error
	RecordYear(YearRow) error
	Close() error
}
