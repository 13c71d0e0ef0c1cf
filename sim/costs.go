package sim

import "math"

// Costs models execution friction: a synthetic half-spread applied on
// the taking side and a per-share commission schedule with a per-order
// minimum.
type Costs struct {
	SpreadPct    float64 // half-spread as a fraction of price
	MinTick      float64 // floor on the half-spread, in dollars
	CommPerShare float64
	CommMin      float64
	FreeExits    bool // limit-exit assumption: exits pay no commission
}

// spread returns the synthetic half-spread at the given price.
func (c Costs) spread(price float64) float64 {
	return math.Max(price*c.SpreadPct, c.MinTick)
}

// BuyPrice is the synthetic ask: what a marketable buy pays.
func (c Costs) BuyPrice(level float64) float64 {
	return level + c.spread(level)
}

// SellPrice is the synthetic bid: what a marketable sell receives.
func (c Costs) SellPrice(level float64) float64 {
	return level - c.spread(level)
}

// EntryExec returns the cost-adjusted fill price for entering at level
// in the given direction.
func (c Costs) EntryExec(direction int, level float64) float64 {
	if direction > 0 {
		return c.BuyPrice(level)
	}
	return c.SellPrice(level)
}

// ExitExec returns the cost-adjusted fill price for exiting at level:
// the opposite side of EntryExec.
func (c Costs) ExitExec(direction int, level float64) float64 {
	if direction > 0 {
		return c.SellPrice(level)
	}
	return c.BuyPrice(level)
}

// Commission returns the per-order commission for the given share count.
func (c Costs) Commission(shares int) float64 {
	return math.Max(float64(shares)*c.CommPerShare, c.CommMin)
}

// roundCents rounds a dollar amount to 2 decimals for reporting.
func roundCents(x float64) float64 {
	return math.Round(x*100) / 100
}
