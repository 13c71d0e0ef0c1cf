package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xyproto/unzip"

	"github.com/rustyeddy/orb/market"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage local bar data",
}

var dataExtractCmd = &cobra.Command{
	Use:   "extract ARCHIVE...",
	Short: "Unpack vendor bar archives into the bars directory",
	Long: `Extract unpacks downloaded zip archives of bar files into the
configured bars directory. Files inside the archive keep their
<SYMBOL>/<YYYY-MM-DD>.csv layout; per-file .xz compression is read
transparently by the bar loader.

Example:
  orb data extract ~/Downloads/bars-2023.zip`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDataExtract,
}

var dataCheckCmd = &cobra.Command{
	Use:   "check SYMBOL DATE",
	Short: "Parse one symbol-day and report what the loader sees",
	Args:  cobra.ExactArgs(2),
	RunE:  runDataCheck,
}

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataExtractCmd)
	dataCmd.AddCommand(dataCheckCmd)
}

func runDataExtract(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(cfg.Data.BarsDir, 0o755); err != nil {
		return err
	}
	for _, archive := range args {
		logger.Info("extracting archive", "archive", archive, "dest", cfg.Data.BarsDir)
		if err := unzip.Extract(archive, cfg.Data.BarsDir); err != nil {
			return fmt.Errorf("extract %s: %w", archive, err)
		}
	}
	return nil
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	date, err := time.ParseInLocation("2006-01-02", args[1], market.Eastern)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	provider := market.NewFileProvider(cfg.Data.BarsDir)
	bars, err := provider.IntradayBars(cmd.Context(), args[0], date)
	if err != nil {
		return err
	}
	or, rest, err := market.SplitOpeningRange(bars)
	if err != nil {
		return err
	}
	fmt.Printf("bars        %d (%d after opening range)\n", len(bars), len(rest))
	fmt.Printf("or          o=%.4f h=%.4f l=%.4f c=%.4f v=%.0f\n",
		or.Open, or.High, or.Low, or.Close, or.Volume)
	fmt.Printf("direction   %+d\n", or.Direction())
	fmt.Printf("day volume  %.0f\n", market.TotalVolume(bars))
	if n := provider.BadLines(); n > 0 {
		fmt.Printf("bad lines   %d\n", n)
	}
	return nil
}
