package backtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/orb/config"
	"github.com/rustyeddy/orb/journal"
	"github.com/rustyeddy/orb/market"
)

// memProvider serves canned bar series for tests.
type memProvider struct {
	intraday map[string][]market.Bar
	daily    map[string][]market.Bar
}

func (m *memProvider) IntradayBars(_ context.Context, symbol string, _ time.Time) ([]market.Bar, error) {
	bars, ok := m.intraday[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", market.ErrNoBars, symbol)
	}
	return bars, nil
}

func (m *memProvider) DailyBars(_ context.Context, symbol string, _ time.Time, n int) ([]market.Bar, error) {
	bars := m.daily[symbol]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func trailingDaily(n int, rng, volume float64) []market.Bar {
	bars := make([]market.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, market.Bar{
			Time:   time.Date(2024, 2, 1+i, 0, 0, 0, 0, market.Eastern),
			Open:   10, High: 10 + rng, Low: 10, Close: 10,
			Volume: volume,
		})
	}
	return bars
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runnerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Account.InitialCapital = 1000
	cfg.Account.Leverage = 1
	cfg.Account.Mode = "fixed"
	cfg.Strategy.MinATR = 0.1
	cfg.Strategy.MinAvgVolume = 100000
	cfg.Liquidity.MaxPctVolume = 0
	cfg.Liquidity.HardShareCap = 0
	cfg.Data.BarsDir = t.TempDir()
	return cfg
}

func csvJournal(t *testing.T) (*journal.CSVJournal, string) {
	t.Helper()
	dir := t.TempDir()
	trades := filepath.Join(dir, "trades.csv")
	j, err := journal.NewCSV(trades, filepath.Join(dir, "equity.csv"), filepath.Join(dir, "years.csv"))
	require.NoError(t, err)
	return j, trades
}

// winnerDay: breaks out over the 10.20 opening-range high on the
// second bar, never looks back, closes the day at 10.35.
func winnerDay() []market.Bar {
	open := time.Date(2024, 3, 8, 9, 30, 0, 0, market.Eastern)
	return []market.Bar{
		{Time: open, Open: 10.00, High: 10.20, Low: 9.95, Close: 10.10, Volume: 100000},
		{Time: open.Add(5 * time.Minute), Open: 10.19, High: 10.25, Low: 10.18, Close: 10.22, Volume: 50000},
		{Time: open.Add(10 * time.Minute), Open: 10.22, High: 10.36, Low: 10.30, Close: 10.35, Volume: 60000},
	}
}

// sleeperDay: valid long setup that never reaches its trigger.
func sleeperDay() []market.Bar {
	open := time.Date(2024, 3, 8, 9, 30, 0, 0, market.Eastern)
	return []market.Bar{
		{Time: open, Open: 20.00, High: 20.30, Low: 19.90, Close: 20.10, Volume: 200000},
		{Time: open.Add(5 * time.Minute), Open: 20.05, High: 20.15, Low: 19.95, Close: 20.00, Volume: 80000},
		{Time: open.Add(10 * time.Minute), Open: 20.00, High: 20.05, Low: 19.90, Close: 19.95, Volume: 70000},
	}
}

func TestRunnerSingleDay(t *testing.T) {
	t.Parallel()

	p := &memProvider{
		intraday: map[string][]market.Bar{
			"AAPL": winnerDay(),
			"MSFT": sleeperDay(),
		},
		daily: map[string][]market.Bar{
			"AAPL": trailingDaily(15, 0.5, 780000),
			"MSFT": trailingDaily(15, 0.5, 780000),
		},
	}
	cfg := runnerConfig(t)
	cfg.Data.Universe = []string{"AAPL", "MSFT"}

	j, tradesPath := csvJournal(t)
	r, err := NewRunner(cfg, p, j, discardLog())
	require.NoError(t, err)

	dates := []time.Time{time.Date(2024, 3, 8, 0, 0, 0, 0, market.Eastern)}
	res, err := r.Run(context.Background(), dates)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, 1, res.Days)
	assert.Equal(t, 2, res.Trades)
	assert.Equal(t, 1, res.Entered)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 0, res.Losses)

	// entry 10.20 + 0.0102 spread = 10.2102, 97 shares on $1000,
	// end-of-day exit at 10.35 - 0.01035, commission 2 * $0.99
	assert.InDelta(t, 12.56, res.GrossPnL, 1e-9)
	assert.InDelta(t, 1.98, res.Commission, 1e-9)
	assert.InDelta(t, 10.58, res.NetPnL, 1e-9)

	// fixed mode: sizing never moves with P&L
	assert.InDelta(t, 1000, res.FinalEquity, 1e-9)
	assert.False(t, res.Blown)

	data, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3) // header + 2 trades
}

func TestRunnerCompounding(t *testing.T) {
	t.Parallel()

	p := &memProvider{
		intraday: map[string][]market.Bar{"AAPL": winnerDay()},
		daily:    map[string][]market.Bar{"AAPL": trailingDaily(15, 0.5, 780000)},
	}
	cfg := runnerConfig(t)
	cfg.Account.Mode = "compounding"
	cfg.Data.Universe = []string{"AAPL"}

	j, _ := csvJournal(t)
	r, err := NewRunner(cfg, p, j, discardLog())
	require.NoError(t, err)

	dates := []time.Time{
		time.Date(2024, 3, 7, 0, 0, 0, 0, market.Eastern),
		time.Date(2024, 3, 8, 0, 0, 0, 0, market.Eastern),
	}
	res, err := r.Run(context.Background(), dates)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, 2, res.Days)
	assert.Equal(t, 2, res.Entered)
	// each day's net feeds the next day's pool
	assert.Greater(t, res.FinalEquity, 1000.0)
	assert.InDelta(t, 1000+res.NetPnL, res.FinalEquity, 1e-6)

	curve := r.Accountant().Curve()
	require.Len(t, curve, 2)
	assert.Greater(t, curve[1].Equity, curve[0].Equity)
}

func TestRunnerDeterministic(t *testing.T) {
	t.Parallel()

	build := func() *Result {
		p := &memProvider{
			intraday: map[string][]market.Bar{
				"AAPL": winnerDay(),
				"MSFT": sleeperDay(),
			},
			daily: map[string][]market.Bar{
				"AAPL": trailingDaily(15, 0.5, 780000),
				"MSFT": trailingDaily(15, 0.5, 780000),
			},
		}
		cfg := runnerConfig(t)
		cfg.Account.Mode = "compounding"
		cfg.Data.Universe = []string{"AAPL", "MSFT"}
		j, _ := csvJournal(t)
		defer j.Close()
		r, err := NewRunner(cfg, p, j, discardLog())
		require.NoError(t, err)
		res, err := r.Run(context.Background(), []time.Time{time.Date(2024, 3, 8, 0, 0, 0, 0, market.Eastern)})
		require.NoError(t, err)
		return res
	}

	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
}

func TestTradingDays(t *testing.T) {
	t.Parallel()

	// Fri Mar 8 through Mon Mar 11: the weekend drops out
	days := TradingDays(
		time.Date(2024, 3, 8, 0, 0, 0, 0, market.Eastern),
		time.Date(2024, 3, 11, 0, 0, 0, 0, market.Eastern),
	)
	require.Len(t, days, 2)
	assert.Equal(t, time.Friday, days[0].Weekday())
	assert.Equal(t, time.Monday, days[1].Weekday())
}
