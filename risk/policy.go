// Package risk gates live order submission. The session evaluates
// every planned entry against the policy before it reaches the broker;
// the backtest does not use it, so study results stay comparable
// across policy changes.
package risk

// Policy is the set of pre-trade limits.
type Policy struct {
	// MaxRiskPct caps the planned loss to the stop as a fraction of
	// account equity. 0 disables.
	MaxRiskPct float64
	// MaxNotionalPct caps entry notional as a fraction of buying
	// power. 0 disables.
	MaxNotionalPct float64
	// MaxOpenPositions counts resting entries plus open positions.
	// 0 disables.
	MaxOpenPositions int
	// MinStopDistance rejects stops too close to the entry to survive
	// ordinary noise, in dollars.
	MinStopDistance float64
}

// Intent is one planned long entry.
type Intent struct {
	Symbol string
	Shares int
	Entry  float64
	Stop   float64
}

// Snapshot is the account state the intent is judged against.
type Snapshot struct {
	Equity        float64
	BuyingPower   float64
	OpenPositions int
}
