package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func sampleTrade(date time.Time, ticker string, pnl float64) TradeRow {
	return TradeRow{
		Date:       date,
		Ticker:     ticker,
		Direction:  +1,
		Entered:    true,
		EntryPrice: 10.2102,
		EntryTime:  date.Add(9*time.Hour + 35*time.Minute),
		ExitPrice:  9.99,
		ExitTime:   date.Add(9*time.Hour + 40*time.Minute),
		ExitReason: "STOP_LOSS",
		Shares:     97,
		GrossPnL:   pnl - 1.98,
		Commission: 1.98,
		NetPnL:     pnl,
		Capped:     false,
		CapRatio:   1,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','equity','years')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
	assert.True(t, found["years"])
}

func TestSQLiteTradeRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	date := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	rec := sampleTrade(date, "AAPL", -23.34)
	require.NoError(t, j.RecordTrade(rec))

	got, err := j.GetTrade(date, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, rec.Ticker, got.Ticker)
	assert.Equal(t, rec.ExitReason, got.ExitReason)
	assert.Equal(t, rec.Shares, got.Shares)
	assert.InDelta(t, rec.EntryPrice, got.EntryPrice, 1e-9)
	assert.InDelta(t, rec.NetPnL, got.NetPnL, 1e-9)
	assert.True(t, rec.EntryTime.Equal(got.EntryTime))

	_, err = j.GetTrade(date, "MSFT")
	assert.Error(t, err)
}

func TestSQLiteListTradesBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	d1 := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(sampleTrade(d1, "AAPL", 10)))
	require.NoError(t, j.RecordTrade(sampleTrade(d2, "MSFT", -5)))
	require.NoError(t, j.RecordTrade(sampleTrade(d2, "AAPL", 3)))
	require.NoError(t, j.RecordTrade(sampleTrade(d3, "AAPL", 7)))

	got, err := j.ListTradesBetween(d1, d3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered by date then ticker.
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.Equal(t, "AAPL", got[1].Ticker)
	assert.Equal(t, "MSFT", got[2].Ticker)
}

func TestSQLiteEquityAndYears(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordEquity(EquityRow{Date: d1, Equity: 1050, DayPnL: 50}))
	require.NoError(t, j.RecordEquity(EquityRow{Date: d2, Equity: 1030, DayPnL: -20}))
	require.NoError(t, j.RecordYear(YearRow{Year: 2024, StartEquity: 1000, EndEquity: 1030, PnL: 30, ReturnPct: 3}))

	curve, err := j.EquityCurve()
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.InDelta(t, 1050.0, curve[0].Equity, 1e-9)
	assert.InDelta(t, -20.0, curve[1].DayPnL, 1e-9)

	years, err := j.Years()
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.InDelta(t, 30.0, years[0].PnL, 1e-9)
}
