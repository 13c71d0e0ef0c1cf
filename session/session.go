// Package session runs one trading day against a broker. The same
// loop body serves live trading on a wall clock and instant replay on
// a virtual clock; the only suspension point is the broker Clock.
//
// The loop is deliberately paranoid about partial failure: every
// broker call can fail on any iteration, and the session must degrade
// to logging and retrying rather than crashing with positions open.
package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/orb/broker"
	"github.com/rustyeddy/orb/config"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/risk"
	"github.com/rustyeddy/orb/universe"
)

// Session drives one trading day. Construct with New, call Run once.
type Session struct {
	cfg      *config.Config
	brk      broker.Broker
	clock    broker.Clock
	provider market.BarProvider
	store    StateStore
	log      *slog.Logger

	date time.Time // trading day, midnight exchange time
	st   *State

	recovered     bool
	killed        bool
	lastHeartbeat time.Time
	lastNotify    time.Time
	seenNotes     map[string]bool

	// symbols market-flattened by the stop monitor this iteration, so
	// exit detection does not realize them a second time.
	flattenedNow map[string]bool
}

func New(cfg *config.Config, brk broker.Broker, clock broker.Clock, provider market.BarProvider, store StateStore, log *slog.Logger, date time.Time) *Session {
	return &Session{
		cfg:       cfg,
		brk:       brk,
		clock:     clock,
		provider:  provider,
		store:     store,
		log:       log.With("date", date.Format("2006-01-02")),
		date:      market.Midnight(date),
		st:        NewState(),
		seenNotes: make(map[string]bool),
	}
}

// State exposes the current session state, mainly for tests and the
// post-session report.
func (s *Session) State() *State { return s.st }

// Run executes the full session: recovery, opening-range wait, one
// refinement pass, the monitoring loop, and the end-of-day flatten.
// It returns only on completion or context cancellation; intra-day
// broker errors are logged and retried, never fatal.
func (s *Session) Run(ctx context.Context) error {
	s.recover(ctx)

	poll := time.Duration(s.cfg.Session.PollSeconds) * time.Second
	orEnd := market.OpeningRangeEnd(s.date)
	for s.clock.Now().Before(orEnd) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.clock.Sleep(poll)
	}

	if s.recovered {
		s.log.Info("resumed mid-session, skipping refinement",
			"orders", len(s.st.ActiveOrders), "positions", len(s.st.OpenPositions))
	} else if !s.killSwitchActive() {
		s.refine(ctx)
	}
	s.persist()

	softClose := market.SessionClose(s.date).Add(-time.Duration(s.cfg.Session.EODBufferMinutes) * time.Minute)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := s.clock.Now()
		if !now.Before(softClose) {
			s.log.Info("end-of-day buffer reached, flattening")
			break
		}
		if s.killSwitchActive() {
			if !s.killed {
				s.killed = true
				s.log.Warn("kill switch detected, halting entries and flattening",
					"file", s.cfg.Session.KillSwitchFile)
			}
			break
		}

		s.flattenedNow = nil
		s.detectFills(ctx)
		if s.cfg.Session.MonitorStops {
			s.monitorStops(ctx)
		}
		s.detectExits(ctx)
		s.detectVanishedOrders(ctx)
		s.heartbeat(ctx, now)
		s.pollNotifications(ctx, now)
		s.persist()

		s.clock.Sleep(poll)
	}

	s.flatten(ctx)
	s.persist()
	s.log.Info("session complete", "realized", s.st.RealizedPnL,
		"triggered", len(s.st.Triggered))
	return ctx.Err()
}

// recover loads any same-day state and reconciles it against the
// broker, adopting positions the broker knows about but the state file
// does not. It never fails the session; a broken state file just means
// a fresh start plus reconciliation.
func (s *Session) recover(ctx context.Context) {
	st, ok, err := s.store.Load(s.date)
	if err != nil {
		s.log.Warn("state load failed, starting fresh", "error", err)
	} else if ok {
		s.st = st
		s.recovered = true
		s.log.Info("recovered session state",
			"orders", len(st.ActiveOrders), "positions", len(st.OpenPositions),
			"realized", st.RealizedPnL)
	}

	positions, err := s.brk.GetPositions(ctx)
	if err != nil {
		s.log.Warn("position reconciliation failed", "error", err)
		return
	}
	for _, p := range positions {
		if p.Qty == 0 || s.st.position(p.Symbol) != nil {
			continue
		}
		s.log.Warn("adopting untracked broker position",
			"symbol", p.Symbol, "qty", p.Qty, "avg_price", p.AvgPrice)
		s.st.OpenPositions = append(s.st.OpenPositions, OpenPosition{
			Symbol: p.Symbol,
			Shares: p.Qty,
		})
		if _, dup := s.st.Fills[p.Symbol]; !dup {
			s.st.Fills[p.Symbol] = Fill{EntryPrice: p.AvgPrice, Shares: p.Qty}
		}
		s.st.Triggered[p.Symbol] = true
	}

	orders, err := s.brk.GetActiveOrders(ctx)
	if err != nil {
		s.log.Warn("order reconciliation failed", "error", err)
		return
	}
	for _, o := range orders {
		if o.Side != broker.Sell && o.Side != broker.Short {
			continue
		}
		pos := s.st.position(o.Symbol)
		if pos != nil && pos.StopOrderID == "" {
			pos.StopOrderID = o.Ref
			if o.StopPrice > 0 {
				pos.StopPrice = o.StopPrice
			} else if o.Price > 0 {
				pos.StopPrice = o.Price
			}
			s.log.Info("matched resting stop to position",
				"symbol", o.Symbol, "order", o.Ref, "stop", pos.StopPrice)
		}
	}
}

// refine builds the day's candidates from the symbol pool, ranks them,
// and submits one entry per survivor. A symbol enters Triggered before
// its first submission attempt, so a crash between the two can never
// cause a duplicate order after restart.
func (s *Session) refine(ctx context.Context) {
	var cands []universe.Candidate
	for _, sym := range s.cfg.Data.Universe {
		c, err := universe.Build(ctx, s.provider, sym, s.date)
		if err != nil {
			if errors.Is(err, universe.ErrDoji) || errors.Is(err, market.ErrNoBars) {
				s.log.Debug("refinement skipped symbol", "symbol", sym, "reason", err)
			} else {
				s.log.Warn("refinement skipped symbol", "symbol", sym, "error", err)
			}
			continue
		}
		cands = append(cands, c)
	}

	ranked := universe.Rank(cands, universe.Filter{
		MinATR:       s.cfg.Strategy.MinATR,
		MinAvgVolume: s.cfg.Strategy.MinAvgVolume,
		LongOnly:     true, // live path trades breakouts long only
		TopN:         s.cfg.Strategy.TopN,
	})
	s.log.Info("refinement complete", "pool", len(s.cfg.Data.Universe),
		"candidates", len(cands), "selected", len(ranked))
	if len(ranked) == 0 {
		return
	}

	info, err := s.brk.GetAccountInfo(ctx)
	if err != nil {
		s.log.Error("account info unavailable, no entries submitted", "error", err)
		return
	}
	alloc := info.BuyingPower * s.cfg.Account.RiskScale / float64(len(ranked))

	for _, c := range ranked {
		if s.st.Triggered[c.Ticker] {
			s.log.Info("symbol already triggered, skipping", "symbol", c.Ticker)
			continue
		}
		s.st.Triggered[c.Ticker] = true

		// equal-dollar split, never below one share; affordability is
		// the risk policy's call, not the sizer's
		shares := int(alloc / c.ORHigh)
		if shares < 1 {
			shares = 1
		}
		stop := c.ORHigh - s.cfg.Strategy.StopATRScale*c.ATR14

		dec := risk.Evaluate(risk.Policy{
			MaxRiskPct:       s.cfg.Risk.MaxRiskPct,
			MaxNotionalPct:   s.cfg.Risk.MaxNotionalPct,
			MaxOpenPositions: s.cfg.Risk.MaxOpenPositions,
			MinStopDistance:  s.cfg.Risk.MinStopDistance,
		}, risk.Intent{
			Symbol: c.Ticker,
			Shares: shares,
			Entry:  c.ORHigh,
			Stop:   stop,
		}, risk.Snapshot{
			Equity:        info.Equity,
			BuyingPower:   info.BuyingPower,
			OpenPositions: len(s.st.ActiveOrders) + len(s.st.OpenPositions),
		})
		if !dec.Allowed {
			for _, v := range dec.Violations {
				s.log.Warn("entry blocked by risk policy",
					"symbol", c.Ticker, "code", v.Code, "detail", v.Msg)
			}
			continue
		}

		q, err := s.brk.GetQuote(ctx, c.Ticker)
		if err != nil {
			s.log.Error("quote failed, entry not submitted", "symbol", c.Ticker, "error", err)
			continue
		}

		var id string
		if q.Ask >= c.ORHigh {
			// already through the level: stop-buy would fill at an
			// uncontrolled price, go marketable instead
			id, err = s.placeMarketWithFallback(ctx, c.Ticker, broker.Buy, shares)
		} else {
			id, err = s.brk.PlaceOrder(ctx, broker.OrderRequest{
				Symbol:   c.Ticker,
				Side:     broker.Buy,
				Type:     broker.Stop,
				Quantity: shares,
				Price:    c.ORHigh,
			})
		}
		if err != nil || id == "" {
			s.log.Error("entry submission failed", "symbol", c.Ticker,
				"shares", shares, "error", err)
			continue
		}

		s.st.ActiveOrders = append(s.st.ActiveOrders, LiveOrder{
			ID:        id,
			Symbol:    c.Ticker,
			Side:      string(broker.Buy),
			Trigger:   c.ORHigh,
			StopPrice: stop,
			Shares:    shares,
			ATR14:     c.ATR14,
			ORHigh:    c.ORHigh,
		})
		s.log.Info("entry submitted", "symbol", c.Ticker, "order", id,
			"shares", shares, "trigger", c.ORHigh, "stop", stop, "rvol", c.RVOL)
	}
}

// detectFills promotes active orders whose shares now show in the
// broker position list, placing the protective stop in the same
// iteration. A fill whose stop cannot be placed is market-flattened
// immediately; the session never carries an unprotected position past
// the iteration that detected it.
func (s *Session) detectFills(ctx context.Context) {
	if len(s.st.ActiveOrders) == 0 {
		return
	}
	positions, err := s.brk.GetPositions(ctx)
	if err != nil {
		s.log.Warn("fill detection skipped", "error", err)
		return
	}
	bySym := make(map[string]broker.Position, len(positions))
	for _, p := range positions {
		bySym[p.Symbol] = p
	}

	remaining := s.st.ActiveOrders[:0]
	for _, o := range s.st.ActiveOrders {
		p, ok := bySym[o.Symbol]
		if !ok || p.Qty < o.Shares {
			remaining = append(remaining, o)
			continue
		}

		fillPrice := p.AvgPrice
		if fillPrice <= 0 {
			fillPrice = o.Trigger
		}
		s.st.Fills[o.Symbol] = Fill{EntryPrice: fillPrice, Shares: o.Shares}
		s.log.Info("entry filled", "symbol", o.Symbol, "order", o.ID,
			"shares", o.Shares, "price", fillPrice)

		stopID, err := s.placeProtectiveStop(ctx, o.Symbol, o.Shares, o.StopPrice)
		if err != nil || stopID == "" {
			s.log.Error("protective stop failed, flattening fill",
				"symbol", o.Symbol, "stop", o.StopPrice, "error", err)
			s.marketFlatten(ctx, o.Symbol, o.Shares)
			continue
		}
		s.st.OpenPositions = append(s.st.OpenPositions, OpenPosition{
			Symbol:      o.Symbol,
			Shares:      o.Shares,
			StopPrice:   o.StopPrice,
			StopOrderID: stopID,
			ATR14:       o.ATR14,
			ORHigh:      o.ORHigh,
		})
		s.log.Info("protective stop placed", "symbol", o.Symbol,
			"order", stopID, "stop", o.StopPrice)
	}
	s.st.ActiveOrders = remaining
}

// monitorStops verifies every open position still has its stop resting
// at the broker. A vanished stop (rejected async, cancelled out of
// band) is replaced by walking the repair ladder to wider levels; if
// no tier can be placed the position is market-flattened. RepairIdx
// only advances, so repairs never re-tighten a stop.
func (s *Session) monitorStops(ctx context.Context) {
	if len(s.st.OpenPositions) == 0 {
		return
	}
	orders, err := s.brk.GetActiveOrders(ctx)
	if err != nil {
		s.log.Warn("stop monitor skipped", "error", err)
		return
	}
	resting := make(map[string]bool, len(orders))
	for _, o := range orders {
		resting[o.Ref] = true
	}
	positions, err := s.brk.GetPositions(ctx)
	if err != nil {
		s.log.Warn("stop monitor skipped", "error", err)
		return
	}
	held := make(map[string]int, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p.Qty
	}

	ladder := s.cfg.Session.RepairLadder
	kept := s.st.OpenPositions[:0]
	for i := range s.st.OpenPositions {
		pos := s.st.OpenPositions[i]
		if pos.StopOrderID != "" && resting[pos.StopOrderID] {
			kept = append(kept, pos)
			continue
		}
		if held[pos.Symbol] == 0 {
			// position already gone; exit detection settles it
			kept = append(kept, pos)
			continue
		}

		if pos.ORHigh <= 0 || pos.ATR14 <= 0 {
			// adopted position with no opening-range stats: no ladder
			// to compute, close it rather than guess a stop level
			s.log.Warn("no stop reference for position, flattening", "symbol", pos.Symbol)
			s.marketFlatten(ctx, pos.Symbol, pos.Shares)
			continue
		}

		s.log.Warn("protective stop vanished, repairing",
			"symbol", pos.Symbol, "order", pos.StopOrderID, "tier", pos.RepairIdx)
		q, err := s.brk.GetQuote(ctx, pos.Symbol)
		if err != nil {
			s.log.Warn("repair quote failed, retrying next tick",
				"symbol", pos.Symbol, "error", err)
			kept = append(kept, pos)
			continue
		}

		repaired := false
		for ; pos.RepairIdx < len(ladder); pos.RepairIdx++ {
			stop := pos.ORHigh - ladder[pos.RepairIdx]*pos.ATR14
			if stop >= q.Bid {
				// already traded through this tier
				continue
			}
			id, err := s.brk.PlaceOrder(ctx, broker.OrderRequest{
				Symbol:   pos.Symbol,
				Side:     broker.Sell,
				Type:     broker.Stop,
				Quantity: pos.Shares,
				Price:    stop,
			})
			if err != nil || id == "" {
				s.log.Warn("stop repair tier rejected", "symbol", pos.Symbol,
					"tier", pos.RepairIdx, "stop", stop, "error", err)
				continue
			}
			pos.StopPrice = stop
			pos.StopOrderID = id
			repaired = true
			s.log.Info("protective stop repaired", "symbol", pos.Symbol,
				"order", id, "tier", pos.RepairIdx, "stop", stop)
			break
		}
		if repaired {
			kept = append(kept, pos)
			continue
		}

		s.log.Error("stop repair exhausted, flattening", "symbol", pos.Symbol)
		s.marketFlatten(ctx, pos.Symbol, pos.Shares)
	}
	s.st.OpenPositions = kept
}

// detectExits settles positions the broker no longer holds: the stop
// fired. Realized P&L uses the tracked stop level against the recorded
// entry fill.
func (s *Session) detectExits(ctx context.Context) {
	if len(s.st.OpenPositions) == 0 {
		return
	}
	positions, err := s.brk.GetPositions(ctx)
	if err != nil {
		s.log.Warn("exit detection skipped", "error", err)
		return
	}
	held := make(map[string]int, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p.Qty
	}

	kept := s.st.OpenPositions[:0]
	for _, pos := range s.st.OpenPositions {
		if held[pos.Symbol] != 0 || s.flattenedNow[pos.Symbol] {
			kept = append(kept, pos)
			continue
		}
		fill := s.st.Fills[pos.Symbol]
		pnl := (pos.StopPrice - fill.EntryPrice) * float64(pos.Shares)
		s.st.RealizedPnL += pnl
		delete(s.st.Fills, pos.Symbol)
		s.log.Info("stop-out detected", "symbol", pos.Symbol,
			"entry", fill.EntryPrice, "exit", pos.StopPrice, "pnl", pnl)
	}
	s.st.OpenPositions = kept

	// drop flattened symbols that the broker has now confirmed gone
	for sym := range s.flattenedNow {
		if held[sym] == 0 {
			s.st.removePosition(sym)
		}
	}
}

// detectVanishedOrders drops tracked entry orders that the broker no
// longer lists and that never produced a position; the usual cause is
// an asynchronous rejection.
func (s *Session) detectVanishedOrders(ctx context.Context) {
	if len(s.st.ActiveOrders) == 0 {
		return
	}
	orders, err := s.brk.GetActiveOrders(ctx)
	if err != nil {
		s.log.Warn("order check skipped", "error", err)
		return
	}
	listed := make(map[string]bool, len(orders))
	for _, o := range orders {
		listed[o.Ref] = true
	}

	kept := s.st.ActiveOrders[:0]
	for _, o := range s.st.ActiveOrders {
		if listed[o.ID] {
			kept = append(kept, o)
			continue
		}
		// fill detection ran first this iteration, so a missing order
		// with no position means the broker dropped it
		s.log.Warn("entry order vanished, likely rejected",
			"symbol", o.Symbol, "order", o.ID)
	}
	s.st.ActiveOrders = kept
}

// marketFlatten closes one position at market, realizing against the
// last traded price. Used by the stop monitor and failed-stop paths;
// the normal end-of-day close goes through flatten.
func (s *Session) marketFlatten(ctx context.Context, symbol string, shares int) {
	id, err := s.placeMarketWithFallback(ctx, symbol, broker.Sell, shares)
	if err != nil || id == "" {
		s.log.Error("flatten order failed", "symbol", symbol, "error", err)
		return
	}
	exit := 0.0
	if q, err := s.brk.GetQuote(ctx, symbol); err == nil {
		exit = q.Last
	}
	fill := s.st.Fills[symbol]
	pnl := (exit - fill.EntryPrice) * float64(shares)
	s.st.RealizedPnL += pnl
	delete(s.st.Fills, symbol)
	if s.flattenedNow == nil {
		s.flattenedNow = make(map[string]bool)
	}
	s.flattenedNow[symbol] = true
	s.log.Info("position flattened", "symbol", symbol, "order", id,
		"exit", exit, "pnl", pnl)
}

// flatten is the end-of-day close: keep fetching positions and selling
// everything nonzero until the book is empty or the hard market close
// arrives. Surviving positions past the close are a critical fault.
func (s *Session) flatten(ctx context.Context) {
	poll := time.Duration(s.cfg.Session.PollSeconds) * time.Second
	hardClose := market.SessionClose(s.date)

	for {
		if ctx.Err() != nil {
			break
		}
		if s.clock.Now().After(hardClose) {
			break
		}
		positions, err := s.brk.GetPositions(ctx)
		if err != nil {
			s.log.Error("flatten position fetch failed", "error", err)
			s.clock.Sleep(poll)
			continue
		}
		open := 0
		for _, p := range positions {
			if p.Qty == 0 {
				continue
			}
			open++
			id, err := s.placeMarketWithFallback(ctx, p.Symbol, broker.Sell, p.Qty)
			if err != nil || id == "" {
				s.log.Error("flatten order failed", "symbol", p.Symbol, "error", err)
				continue
			}
			// a slow broker can keep reporting the position for another
			// poll after the first sell; the resubmission must not
			// realize the same P&L twice, so the fill entry is the
			// once-only token
			f, ok := s.st.Fills[p.Symbol]
			if !ok {
				s.log.Warn("resubmitted end-of-day exit", "symbol", p.Symbol, "order", id)
				continue
			}
			entry := f.EntryPrice
			pnl := (p.LastPrice - entry) * float64(p.Qty)
			s.st.RealizedPnL += pnl
			s.st.removePosition(p.Symbol)
			delete(s.st.Fills, p.Symbol)
			s.log.Info("end-of-day exit", "symbol", p.Symbol, "order", id,
				"exit", p.LastPrice, "pnl", pnl)
		}
		if open == 0 {
			s.st.ActiveOrders = nil
			return
		}
		s.persist()
		s.clock.Sleep(poll)
	}

	if positions, err := s.brk.GetPositions(ctx); err == nil {
		for _, p := range positions {
			if p.Qty != 0 {
				s.log.Error("CRITICAL: position survived past market close",
					"symbol", p.Symbol, "qty", p.Qty)
			}
		}
	}
}

func (s *Session) heartbeat(ctx context.Context, now time.Time) {
	interval := time.Duration(s.cfg.Session.HeartbeatSeconds) * time.Second
	if interval <= 0 || now.Sub(s.lastHeartbeat) < interval {
		return
	}
	s.lastHeartbeat = now
	sum, err := s.brk.GetAccountSummary(ctx)
	if err != nil {
		s.log.Warn("heartbeat summary failed", "error", err)
		return
	}
	s.log.Info("heartbeat",
		"day_realized", sum.DayRealized,
		"day_unrealized", sum.DayUnrealized,
		"account_value", sum.AccountValue,
		"orders", len(s.st.ActiveOrders),
		"positions", len(s.st.OpenPositions))
}

// pollNotifications surfaces broker notifications once each, flagging
// anything that smells like a rejection or error.
func (s *Session) pollNotifications(ctx context.Context, now time.Time) {
	interval := time.Duration(s.cfg.Session.NotifySeconds) * time.Second
	if interval <= 0 || now.Sub(s.lastNotify) < interval {
		return
	}
	s.lastNotify = now
	notes, err := s.brk.GetNotifications(ctx)
	if err != nil {
		s.log.Warn("notification poll failed", "error", err)
		return
	}
	for _, n := range notes {
		key := n.Title + "|" + n.Message
		if s.seenNotes[key] {
			continue
		}
		s.seenNotes[key] = true
		if alarming(n) {
			s.log.Warn("broker notification", "title", n.Title, "message", n.Message)
		} else {
			s.log.Debug("broker notification", "title", n.Title, "message", n.Message)
		}
	}
}

func alarming(n broker.Notification) bool {
	text := strings.ToLower(n.Title + " " + n.Message)
	for _, kw := range []string{"reject", "error", "fail", "insufficient", "cancel"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (s *Session) killSwitchActive() bool {
	if s.cfg.Session.KillSwitchFile == "" {
		return false
	}
	_, err := os.Stat(s.cfg.Session.KillSwitchFile)
	return err == nil
}

// persist saves state best-effort; a failed save is logged and the
// session carries on, since trading must not halt on a disk hiccup.
func (s *Session) persist() {
	if err := s.store.Save(s.date, s.st); err != nil {
		s.log.Warn("state save failed", "error", err)
	}
}
