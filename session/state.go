package session

// LiveOrder tracks one pending entry order submitted to the broker.
type LiveOrder struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Trigger   float64 `json:"trigger"`
	StopPrice float64 `json:"stop_price"`
	Shares    int     `json:"shares"`
	ATR14     float64 `json:"atr_14"`
	ORHigh    float64 `json:"or_high"`
}

// OpenPosition tracks a filled entry and its resting protective stop.
// RepairIdx indexes the stop-widening ladder and never moves backward
// within a session, so a repaired stop cannot oscillate tighter again.
type OpenPosition struct {
	Symbol      string  `json:"symbol"`
	Shares      int     `json:"shares"`
	StopPrice   float64 `json:"stop_price"`
	StopOrderID string  `json:"stop_order_id"`
	ATR14       float64 `json:"atr_14"`
	ORHigh      float64 `json:"or_high"`
	RepairIdx   int     `json:"repair_idx"`
}

// Fill records the entry fill used for realized P&L on exit.
type Fill struct {
	EntryPrice float64 `json:"entry_price"`
	Shares     int     `json:"shares"`
}

// State is the session's full working state, persisted after every
// loop iteration and reloaded on same-day restart. Primitives only so
// the JSON round-trip is exact.
type State struct {
	ActiveOrders  []LiveOrder     `json:"active_orders"`
	OpenPositions []OpenPosition  `json:"open_positions"`
	Fills         map[string]Fill `json:"fills"`
	RealizedPnL   float64         `json:"realized_pnl"`

	// Triggered is the idempotent re-entry guard: once a symbol is in
	// here it is never submitted again that day, restarts included.
	Triggered map[string]bool `json:"triggered"`
}

func NewState() *State {
	return &State{
		Fills:     make(map[string]Fill),
		Triggered: make(map[string]bool),
	}
}

// position returns a pointer into OpenPositions for symbol, or nil.
func (st *State) position(symbol string) *OpenPosition {
	for i := range st.OpenPositions {
		if st.OpenPositions[i].Symbol == symbol {
			return &st.OpenPositions[i]
		}
	}
	return nil
}

func (st *State) removePosition(symbol string) {
	for i := range st.OpenPositions {
		if st.OpenPositions[i].Symbol == symbol {
			st.OpenPositions = append(st.OpenPositions[:i], st.OpenPositions[i+1:]...)
			return
		}
	}
}
