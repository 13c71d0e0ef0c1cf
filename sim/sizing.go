package sim

// Sizing controls how many shares a trade takes on.
type Sizing struct {
	PositionSize  float64 // base notional per trade, dollars
	Leverage      float64
	ApplyLeverage bool // false when leverage was already applied at the pool level

	// MaxPctVolume caps shares at a fraction of the symbol-day's total
	// traded volume; the strategy cannot move size without moving the
	// market. 0 disables.
	MaxPctVolume float64
	// HardShareCap is an absolute per-trade share ceiling. 0 disables.
	HardShareCap int
}

// shares computes target and actual share counts at the given entry
// price. actual <= target always; capped reports whether a cap bound.
func (s Sizing) shares(entryPrice, dayVolume float64) (target, actual int, capped bool) {
	notional := s.PositionSize
	if s.ApplyLeverage {
		notional *= s.Leverage
	}

	target = int(notional / entryPrice)
	if target < 1 {
		target = 1
	}

	actual = target
	if s.MaxPctVolume > 0 {
		if cap := int(dayVolume * s.MaxPctVolume); actual > cap {
			actual = cap
		}
	}
	if s.HardShareCap > 0 && actual > s.HardShareCap {
		actual = s.HardShareCap
	}

	return target, actual, actual < target
}
