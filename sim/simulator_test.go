package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/orb/market"
)

func bar(t *testing.T, clock string, o, h, l, c, v float64) market.Bar {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", "2024-03-08 "+clock, market.Eastern)
	require.NoError(t, err)
	return market.Bar{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

// breakoutDay is the canonical long scenario: the opening range is
// already stripped, entry triggers on the 09:35 bar, the stop is hit
// on the 09:40 bar.
func breakoutDay(t *testing.T) []market.Bar {
	t.Helper()
	return []market.Bar{
		bar(t, "09:35", 10.10, 10.25, 10.05, 10.15, 50000),
		bar(t, "09:40", 10.15, 10.18, 9.80, 9.85, 60000),
	}
}

func baseParams() Params {
	return Params{
		Direction:  +1,
		EntryLevel: 10.20,
		StopLevel:  10.00, // 10.20 - 0.10*2.0
		Sizing:     Sizing{PositionSize: 1000, Leverage: 1, ApplyLeverage: true},
		Costs:      Costs{SpreadPct: 0.001, MinTick: 0.01, CommPerShare: 0.005, CommMin: 0.99},
		DayVolume:  210000,
	}
}

func TestSimulateEntryThenStop(t *testing.T) {
	t.Parallel()

	tr := Simulate(breakoutDay(t), baseParams())

	require.True(t, tr.Entered)
	assert.Equal(t, StopLoss, tr.ExitReason)
	// Buy at synthetic ask: 10.20 + max(10.20*0.001, 0.01) = 10.2102.
	assert.InDelta(t, 10.2102, tr.EntryPrice, 1e-9)
	// Sell at synthetic bid: 10.00 - max(10.00*0.001, 0.01) = 9.99.
	assert.InDelta(t, 9.99, tr.ExitPrice, 1e-9)
	assert.Equal(t, 35, tr.EntryTime.Minute())
	assert.Equal(t, 40, tr.ExitTime.Minute())

	// 1000 / 10.2102 -> 97 shares, volume cap non-binding.
	assert.Equal(t, 97, tr.Shares)
	assert.False(t, tr.Capped)
	assert.InDelta(t, 1.0, tr.CapRatio, 1e-9)

	// Both legs pay the per-order minimum.
	assert.InDelta(t, 1.98, tr.Commission, 1e-9)
	assert.InDelta(t, roundCents(97*(9.99-10.2102)), tr.GrossPnL, 1e-9)
	assert.InDelta(t, roundCents(97*(9.99-10.2102)-1.98), tr.NetPnL, 1e-9)
	assert.Less(t, tr.NetPnL, 0.0)
}

func TestSimulateCutoffCancel(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar(t, "09:35", 10.10, 10.15, 10.05, 10.12, 50000),
		bar(t, "09:40", 10.12, 10.30, 10.08, 10.25, 60000),
	}
	p := baseParams()
	p.EntryCutoff = bars[0].Time.Add(3 * time.Minute) // 09:38

	tr := Simulate(bars, p)

	assert.False(t, tr.Entered)
	assert.Equal(t, CutoffCancel, tr.ExitReason)
	assert.Equal(t, 0, tr.Shares)
}

func TestSimulateNoBars(t *testing.T) {
	t.Parallel()

	tr := Simulate(nil, baseParams())
	assert.Equal(t, NoBars, tr.ExitReason)
	assert.False(t, tr.Entered)
}

func TestSimulateNoEntry(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar(t, "09:35", 10.10, 10.15, 10.05, 10.12, 50000),
		bar(t, "09:40", 10.12, 10.18, 10.08, 10.10, 60000),
	}

	tr := Simulate(bars, baseParams())
	assert.False(t, tr.Entered)
	assert.Equal(t, NoEntry, tr.ExitReason)
}

func TestSimulateEndOfDayExit(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar(t, "09:35", 10.10, 10.25, 10.05, 10.15, 50000),
		bar(t, "09:40", 10.15, 10.40, 10.10, 10.35, 60000),
	}

	tr := Simulate(bars, baseParams())

	require.True(t, tr.Entered)
	assert.Equal(t, EndOfDay, tr.ExitReason)
	// Exit at last close, cost-adjusted on the sell side.
	assert.InDelta(t, 10.35-0.01035, tr.ExitPrice, 1e-9)
	assert.Greater(t, tr.NetPnL, 0.0)
}

func TestSimulateShortSide(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar(t, "09:35", 10.00, 10.05, 9.80, 9.85, 50000),
		bar(t, "09:40", 9.85, 10.25, 9.80, 10.22, 60000),
	}
	p := baseParams()
	p.Direction = -1
	p.EntryLevel = 9.90
	p.StopLevel = 10.20

	tr := Simulate(bars, p)

	require.True(t, tr.Entered)
	// Short entry at synthetic bid: 9.90 - 0.01.
	assert.InDelta(t, 9.89, tr.EntryPrice, 1e-9)
	assert.Equal(t, StopLoss, tr.ExitReason)
	// Cover at synthetic ask: 10.20 + max(10.20*0.001, 0.01).
	assert.InDelta(t, 10.2102, tr.ExitPrice, 1e-9)
	assert.Less(t, tr.NetPnL, 0.0)
}

func TestSimulateEntryBarNeverChecksStop(t *testing.T) {
	t.Parallel()

	// The entry bar also trades through the stop level; the stop must
	// not fire until the next bar transition.
	bars := []market.Bar{
		bar(t, "09:35", 10.10, 10.25, 9.90, 10.15, 50000),
		bar(t, "09:40", 10.15, 10.30, 10.12, 10.28, 60000),
	}

	tr := Simulate(bars, baseParams())

	require.True(t, tr.Entered)
	assert.Equal(t, EndOfDay, tr.ExitReason)
}

func TestSimulateLimitRetest(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		// Trigger bar: crosses 10.20, no fill yet.
		bar(t, "09:35", 10.10, 10.25, 10.12, 10.22, 50000),
		// Retest bar: pulls back to the entry level, fills at exactly
		// 10.20 with no spread penalty.
		bar(t, "09:40", 10.22, 10.30, 10.18, 10.28, 60000),
		bar(t, "09:45", 10.28, 10.35, 10.25, 10.33, 40000),
	}
	p := baseParams()
	p.LimitRetest = true

	tr := Simulate(bars, p)

	require.True(t, tr.Entered)
	assert.InDelta(t, 10.20, tr.EntryPrice, 1e-9)
	assert.Equal(t, 40, tr.EntryTime.Minute())
	assert.Equal(t, EndOfDay, tr.ExitReason)
}

func TestSimulateLimitRetestNoPullback(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		bar(t, "09:35", 10.10, 10.25, 10.12, 10.22, 50000),
		bar(t, "09:40", 10.22, 10.40, 10.21, 10.38, 60000),
	}
	p := baseParams()
	p.LimitRetest = true

	tr := Simulate(bars, p)
	assert.False(t, tr.Entered)
	assert.Equal(t, NoEntry, tr.ExitReason)
}

func TestSimulateDeterminism(t *testing.T) {
	t.Parallel()

	bars := breakoutDay(t)
	p := baseParams()

	first := Simulate(bars, p)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Simulate(bars, p))
	}
}

func TestSimulateCostMonotonicity(t *testing.T) {
	t.Parallel()

	bars := breakoutDay(t)

	prevNet := 1e18
	for _, spread := range []float64{0, 0.0005, 0.001, 0.002, 0.01} {
		p := baseParams()
		p.Costs.SpreadPct = spread
		tr := Simulate(bars, p)
		require.True(t, tr.Entered, "entry checks must use raw bar prices")
		assert.LessOrEqual(t, tr.NetPnL, prevNet)
		prevNet = tr.NetPnL
	}

	prevNet = 1e18
	for _, comm := range []float64{0, 0.001, 0.005, 0.05} {
		p := baseParams()
		p.Costs.CommPerShare = comm
		tr := Simulate(bars, p)
		require.True(t, tr.Entered)
		assert.LessOrEqual(t, tr.NetPnL, prevNet)
		prevNet = tr.NetPnL
	}
}

func TestSimulateLiquidityCap(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.Sizing.PositionSize = 1_000_000
	p.Sizing.MaxPctVolume = 0.0001 // 210000 * 0.0001 = 21 shares
	tr := Simulate(breakoutDay(t), p)

	require.True(t, tr.Entered)
	assert.Equal(t, 21, tr.Shares)
	assert.True(t, tr.Capped)
	assert.Less(t, tr.CapRatio, 1.0)
	assert.LessOrEqual(t, float64(tr.Shares), 210000*0.0001)
}

func TestSimulateHardShareCap(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.Sizing.PositionSize = 100_000
	p.Sizing.HardShareCap = 500
	tr := Simulate(breakoutDay(t), p)

	require.True(t, tr.Entered)
	assert.Equal(t, 500, tr.Shares)
	assert.True(t, tr.Capped)
}

func TestSimulateFreeExits(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.Costs.FreeExits = true
	tr := Simulate(breakoutDay(t), p)

	require.True(t, tr.Entered)
	assert.InDelta(t, 0.99, tr.Commission, 1e-9)
}

func TestSimulateLeverageApplied(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.Sizing.Leverage = 4
	tr := Simulate(breakoutDay(t), p)
	require.True(t, tr.Entered)
	leveredNotionalPerPrice := 4000 / 10.2102
	assert.Equal(t, int(leveredNotionalPerPrice), tr.Shares)

	// Pool-level leverage mode: the simulator must not double-count.
	p.Sizing.ApplyLeverage = false
	tr = Simulate(breakoutDay(t), p)
	unleveredNotionalPerPrice := 1000 / 10.2102
	assert.Equal(t, int(unleveredNotionalPerPrice), tr.Shares)
}
