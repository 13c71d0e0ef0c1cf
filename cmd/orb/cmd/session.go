package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/broker"
	"github.com/rustyeddy/orb/logx"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Replay one trading day through the live session loop",
	Long: `Session runs the live trading state machine against the bar-replay
broker: same recovery, refinement, fill detection, stop monitoring and
end-of-day flatten as a real session, driven by a virtual clock so a
full day replays in seconds.

State is persisted per tick under the configured state directory;
re-running the same date resumes from that state instead of
re-submitting entries.

Example:
  orb session -c orb.yaml --date 2023-06-15`,
	RunE: runSession,
}

var sessionDate string

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().StringVar(&sessionDate, "date", "", "trading day, YYYY-MM-DD (required)")
	sessionCmd.MarkFlagRequired("date")
}

func runSession(cmd *cobra.Command, args []string) error {
	date, err := time.ParseInLocation("2006-01-02", sessionDate, market.Eastern)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}

	provider := market.NewFileProvider(cfg.Data.BarsDir)
	bars := make(map[string][]market.Bar, len(cfg.Data.Universe))
	for _, sym := range cfg.Data.Universe {
		series, err := provider.IntradayBars(cmd.Context(), sym, date)
		if err != nil {
			logger.Warn("no bars for symbol, excluded from replay", "symbol", sym, "error", err)
			continue
		}
		bars[sym] = series
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bar data for %s under %s", sessionDate, cfg.Data.BarsDir)
	}

	rp := broker.NewReplay(bars, market.SessionOpen(date), cfg.Account.InitialCapital, cfg.Account.Leverage)
	// stamp log records with the virtual clock, not the wall clock
	vlog := logx.WithClock(logger, rp)

	store := session.NewFileStore(cfg.Session.StateDir)
	sess := session.New(cfg, rp, rp, provider, store, vlog, date)
	if err := sess.Run(cmd.Context()); err != nil {
		return err
	}

	sum, err := rp.GetAccountSummary(cmd.Context())
	if err != nil {
		return err
	}
	st := sess.State()
	fmt.Printf("symbols     %d\n", len(bars))
	fmt.Printf("triggered   %d\n", len(st.Triggered))
	fmt.Printf("realized    %.2f\n", sum.DayRealized)
	fmt.Printf("account     %.2f\n", sum.AccountValue)
	return nil
}
