// Package config holds the process configuration. It is constructed
// once at startup and passed by reference into the backtest runner and
// the session constructor; nothing reads ambient globals.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete strategy/run configuration.
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Strategy  StrategyConfig  `json:"strategy" yaml:"strategy"`
	Costs     CostsConfig     `json:"costs" yaml:"costs"`
	Liquidity LiquidityConfig `json:"liquidity" yaml:"liquidity"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Data      DataConfig      `json:"data" yaml:"data"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// AccountConfig contains account growth parameters.
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	Leverage       float64 `json:"leverage" yaml:"leverage"`
	RiskScale      float64 `json:"risk_scale" yaml:"risk_scale"`
	// Mode is "fixed" (constant notional per trade) or "compounding"
	// (equal-risk split of equity across each day's candidates).
	Mode string `json:"mode" yaml:"mode"`
}

// StrategyConfig contains candidate selection and entry/stop parameters.
type StrategyConfig struct {
	TopN         int     `json:"top_n" yaml:"top_n"`
	MinATR       float64 `json:"min_atr" yaml:"min_atr"`
	MinAvgVolume float64 `json:"min_avg_volume" yaml:"min_avg_volume"`
	LongOnly     bool    `json:"long_only" yaml:"long_only"`

	// StopATRScale sizes the protective stop distance as a multiple of
	// ATR(14). One value, used by both the backtest and the live path.
	StopATRScale float64 `json:"stop_atr_scale" yaml:"stop_atr_scale"`

	// EntryCutoff ("HH:MM" exchange time) expires resting entries
	// unfilled. Empty disables.
	EntryCutoff string `json:"entry_cutoff" yaml:"entry_cutoff"`

	// LimitRetest switches the simulator to the maker-style fill rule.
	LimitRetest bool `json:"limit_retest" yaml:"limit_retest"`
}

// CostsConfig models execution friction.
type CostsConfig struct {
	SpreadPct    float64 `json:"spread_pct" yaml:"spread_pct"`
	MinTick      float64 `json:"min_tick" yaml:"min_tick"`
	CommPerShare float64 `json:"comm_share" yaml:"comm_share"`
	CommMin      float64 `json:"comm_min" yaml:"comm_min"`
	FreeExits    bool    `json:"free_exits" yaml:"free_exits"`
}

// LiquidityConfig caps trade size against traded volume.
type LiquidityConfig struct {
	MaxPctVolume float64 `json:"max_pct_volume" yaml:"max_pct_volume"`
	HardShareCap int     `json:"hard_share_cap" yaml:"hard_share_cap"`
}

// RiskConfig limits live order submission; zero values disable the
// corresponding check. The backtest ignores this section.
type RiskConfig struct {
	MaxRiskPct       float64 `json:"max_risk_pct" yaml:"max_risk_pct"`
	MaxNotionalPct   float64 `json:"max_notional_pct" yaml:"max_notional_pct"`
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions"`
	MinStopDistance  float64 `json:"min_stop_distance" yaml:"min_stop_distance"`
}

// SessionConfig drives the live/replay session loop.
type SessionConfig struct {
	PollSeconds      int    `json:"poll_seconds" yaml:"poll_seconds"`
	HeartbeatSeconds int    `json:"heartbeat_seconds" yaml:"heartbeat_seconds"`
	NotifySeconds    int    `json:"notify_seconds" yaml:"notify_seconds"`
	EODBufferMinutes int    `json:"eod_buffer_minutes" yaml:"eod_buffer_minutes"`
	KillSwitchFile   string `json:"kill_switch_file" yaml:"kill_switch_file"`
	StateDir         string `json:"state_dir" yaml:"state_dir"`
	// MonitorStops enables the stop-integrity monitor; needed against a
	// real broker, pointless against a full-replay broker.
	MonitorStops bool `json:"monitor_stops" yaml:"monitor_stops"`
	// RepairLadder is the ordered, non-decreasing list of ATR
	// multipliers tried when a resting protective stop vanishes.
	RepairLadder []float64 `json:"repair_ladder" yaml:"repair_ladder"`
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	YearsFile  string `json:"years_file,omitempty" yaml:"years_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// DataConfig locates the bar files.
type DataConfig struct {
	BarsDir string `json:"bars_dir" yaml:"bars_dir"`
	// Universe is the symbol pool handed to the ranker each day.
	Universe []string `json:"universe" yaml:"universe"`
}

// LogConfig controls the structured log stream.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "text"
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Account.Mode != "fixed" && c.Account.Mode != "compounding" {
		return fmt.Errorf("account.mode must be 'fixed' or 'compounding', got %q", c.Account.Mode)
	}
	if c.Account.Leverage <= 0 {
		return fmt.Errorf("account.leverage must be positive")
	}
	if c.Strategy.TopN <= 0 {
		return fmt.Errorf("strategy.top_n must be positive")
	}
	if c.Strategy.StopATRScale <= 0 {
		return fmt.Errorf("strategy.stop_atr_scale must be positive")
	}
	if c.Strategy.EntryCutoff != "" {
		if _, _, err := ParseClock(c.Strategy.EntryCutoff); err != nil {
			return fmt.Errorf("strategy.entry_cutoff: %w", err)
		}
	}
	if c.Costs.SpreadPct < 0 || c.Costs.MinTick < 0 {
		return fmt.Errorf("costs must not be negative")
	}
	if c.Liquidity.MaxPctVolume < 0 || c.Liquidity.MaxPctVolume > 1 {
		return fmt.Errorf("liquidity.max_pct_volume must be within [0, 1]")
	}
	if c.Risk.MaxRiskPct < 0 || c.Risk.MaxNotionalPct < 0 || c.Risk.MinStopDistance < 0 {
		return fmt.Errorf("risk limits must not be negative")
	}
	if c.Session.PollSeconds <= 0 {
		return fmt.Errorf("session.poll_seconds must be positive")
	}
	for i := 1; i < len(c.Session.RepairLadder); i++ {
		if c.Session.RepairLadder[i] < c.Session.RepairLadder[i-1] {
			return fmt.Errorf("session.repair_ladder must be non-decreasing")
		}
	}
	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && (c.Journal.TradesFile == "" || c.Journal.EquityFile == "" || c.Journal.YearsFile == "") {
		return fmt.Errorf("journal trades_file, equity_file and years_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	if c.Data.BarsDir == "" {
		return fmt.Errorf("data.bars_dir is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: 25000,
			Leverage:       4,
			RiskScale:      1,
			Mode:           "compounding",
		},
		Strategy: StrategyConfig{
			TopN:         10,
			MinATR:       0.10,
			MinAvgVolume: 500000,
			LongOnly:     false,
			StopATRScale: 0.10,
		},
		Costs: CostsConfig{
			SpreadPct:    0.001,
			MinTick:      0.01,
			CommPerShare: 0.005,
			CommMin:      0.99,
		},
		Liquidity: LiquidityConfig{
			MaxPctVolume: 0.01,
		},
		Risk: RiskConfig{
			MaxRiskPct:       0.05,
			MaxNotionalPct:   1.0,
			MaxOpenPositions: 10,
			MinStopDistance:  0.01,
		},
		Session: SessionConfig{
			PollSeconds:      5,
			HeartbeatSeconds: 300,
			NotifySeconds:    60,
			EODBufferMinutes: 10,
			StateDir:         "./state",
			MonitorStops:     true,
			RepairLadder:     []float64{0.10, 0.20, 0.35, 0.50},
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./orb.sqlite",
		},
		Data: DataConfig{
			BarsDir: "./bars",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("out of range clock %q", s)
	}
	return hour, minute, nil
}
