package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/config"
	"github.com/rustyeddy/orb/journal"
	"github.com/rustyeddy/orb/logx"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orb",
	Short: "Opening-range breakout research and trading toolkit",
	Long: `Orb studies and trades the opening-range breakout on US equities.

It provides tools for:
  - Deterministic backtests over intraday bar files
  - Replaying a trading day through the live session loop
  - Fixed and compounding account growth accounting
  - Trade, equity and yearly journals (CSV or SQLite)
  - Reporting over journaled runs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real config comes from the config file
		_ = godotenv.Load()

		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFromFile(cfgFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Default()
		}
		logger = logx.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
}

func openJournal() (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile, cfg.Journal.YearsFile)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
	}
}
