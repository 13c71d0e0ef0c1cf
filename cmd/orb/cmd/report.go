package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/journal"
	"github.com/rustyeddy/orb/market"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a journaled run",
	Long: `Report reads the SQLite journal and prints yearly summaries, the tail
of the equity curve, and optionally the trades in a date range.

Example:
  orb report -c orb.yaml
  orb report -c orb.yaml --trades --start 2023-06-01 --end 2023-06-30`,
	RunE: runReport,
}

var (
	rpTrades bool
	rpStart  string
	rpEnd    string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&rpTrades, "trades", false, "list individual trades")
	reportCmd.Flags().StringVar(&rpStart, "start", "", "trade list start, YYYY-MM-DD")
	reportCmd.Flags().StringVar(&rpEnd, "end", "", "trade list end, YYYY-MM-DD")
}

func runReport(cmd *cobra.Command, args []string) error {
	if cfg.Journal.Type != "sqlite" {
		return fmt.Errorf("report needs journal.type 'sqlite', got %q", cfg.Journal.Type)
	}
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	years, err := j.Years()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "year\tstart\tend\tpnl\treturn")
	for _, y := range years {
		fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%.2f%%\n",
			y.Year, y.StartEquity, y.EndEquity, y.PnL, y.ReturnPct)
	}
	w.Flush()

	curve, err := j.EquityCurve()
	if err != nil {
		return err
	}
	if len(curve) > 0 {
		last := curve[len(curve)-1]
		fmt.Printf("\nequity %.2f as of %s (%d days)\n",
			last.Equity, last.Date.Format("2006-01-02"), len(curve))
	}

	if !rpTrades {
		return nil
	}
	start := time.Time{}
	end := time.Now()
	if rpStart != "" {
		if start, err = time.ParseInLocation("2006-01-02", rpStart, market.Eastern); err != nil {
			return fmt.Errorf("parse start: %w", err)
		}
	}
	if rpEnd != "" {
		if end, err = time.ParseInLocation("2006-01-02", rpEnd, market.Eastern); err != nil {
			return fmt.Errorf("parse end: %w", err)
		}
	}
	trades, err := j.ListTradesBetween(start, end)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\ndate\tticker\tdir\tshares\tentry\texit\treason\tnet")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\t%.4f\t%.4f\t%s\t%.2f\n",
			t.Date.Format("2006-01-02"), t.Ticker, t.Direction, t.Shares,
			t.EntryPrice, t.ExitPrice, t.ExitReason, t.NetPnL)
	}
	return tw.Flush()
}
