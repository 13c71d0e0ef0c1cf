package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Default().Validate())
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	body := `
account:
  initial_capital: 1000
  leverage: 1
  mode: compounding
strategy:
  top_n: 5
  stop_atr_scale: 0.05
  entry_cutoff: "10:30"
session:
  poll_seconds: 5
  repair_ladder: [0.05, 0.1, 0.2]
journal:
  type: sqlite
  db_path: ./test.sqlite
data:
  bars_dir: ./bars
  universe: [AAPL, MSFT]
`
	path := filepath.Join(t.TempDir(), "orb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, cfg.Account.InitialCapital)
	assert.Equal(t, 0.05, cfg.Strategy.StopATRScale)
	assert.Equal(t, "10:30", cfg.Strategy.EntryCutoff)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Data.Universe)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.99, cfg.Costs.CommMin)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.Account.InitialCapital = 0 }},
		{"bad mode", func(c *Config) { c.Account.Mode = "martingale" }},
		{"zero top_n", func(c *Config) { c.Strategy.TopN = 0 }},
		{"zero stop scale", func(c *Config) { c.Strategy.StopATRScale = 0 }},
		{"bad cutoff", func(c *Config) { c.Strategy.EntryCutoff = "25:99" }},
		{"pct volume over 1", func(c *Config) { c.Liquidity.MaxPctVolume = 1.5 }},
		{"decreasing ladder", func(c *Config) { c.Session.RepairLadder = []float64{0.2, 0.1} }},
		{"csv missing paths", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }},
		{"unknown journal", func(c *Config) { c.Journal.Type = "parquet" }},
		{"missing bars dir", func(c *Config) { c.Data.BarsDir = "" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	h, m, err := ParseClock("09:38")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 38, m)

	_, _, err = ParseClock("bogus")
	assert.Error(t, err)
}
