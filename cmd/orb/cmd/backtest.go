package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/backtest"
	"github.com/rustyeddy/orb/market"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the breakout study over a date range",
	Long: `Backtest replays the opening-range breakout over historical intraday
bars, one simulated trade per selected candidate per day, and journals
every trade, daily equity point and yearly summary.

Example:
  orb backtest -c orb.yaml --start 2023-01-03 --end 2023-12-29`,
	RunE: runBacktest,
}

var (
	btStart string
	btEnd   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btStart, "start", "", "first trading day, YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "last trading day, YYYY-MM-DD (defaults to start)")

	backtestCmd.MarkFlagRequired("start")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	start, err := time.ParseInLocation("2006-01-02", btStart, market.Eastern)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	end := start
	if btEnd != "" {
		if end, err = time.ParseInLocation("2006-01-02", btEnd, market.Eastern); err != nil {
			return fmt.Errorf("parse end: %w", err)
		}
	}
	if end.Before(start) {
		return fmt.Errorf("end %s is before start %s", btEnd, btStart)
	}

	jnl, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	provider := market.NewFileProvider(cfg.Data.BarsDir)
	runner, err := backtest.NewRunner(cfg, provider, jnl, logger)
	if err != nil {
		return err
	}

	res, err := runner.Run(cmd.Context(), backtest.TradingDays(start, end))
	if err != nil {
		return err
	}
	if n := provider.BadLines(); n > 0 {
		logger.Warn("bar files contained unparseable lines", "count", n)
	}

	fmt.Printf("days       %d\n", res.Days)
	fmt.Printf("trades     %d (%d entered)\n", res.Trades, res.Entered)
	fmt.Printf("wins       %d\n", res.Wins)
	fmt.Printf("losses     %d\n", res.Losses)
	fmt.Printf("gross pnl  %.2f\n", res.GrossPnL)
	fmt.Printf("commission %.2f\n", res.Commission)
	fmt.Printf("net pnl    %.2f\n", res.NetPnL)
	fmt.Printf("equity     %.2f\n", res.FinalEquity)
	if res.Blown {
		fmt.Println("account blown: equity hit the floor during the run")
	}
	return nil
}
