package fisco

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
currency: EUR
initial_cash: 10000
venue: MIL

logging:
  level: warn
  format: text

storage:
  sqlite_path: fisco.db
  report_dir: reports

costs:
  default:
    commission_pct: 0.0019
    min_commission: 2.75
    base_slippage_bps: 5
    ter: 0.002
  slippage_scaling: 1.0
  cost_ceiling: 0.02

risk:
  stop_loss_pct: -0.08
  take_profit_pct: 0.25
  trailing_stop_pct: -0.05
  trailing_activation_pct: 0.10
  volatility_breaker: 0.45

selection:
  max_open_positions: 5
  max_entries_per_day: 2
  min_cash_reserve_pct: 0.05
  min_trade_value: 500
  entry_score_threshold: 0.55
  score_add_threshold: 1.2
  base_weight: 0.25
  weights:
    momentum: 0.4
    risk: 0.3
    vol: 0.1
    cost: 0.1
    overlap: 0.1

holding:
  base_days: 40
  min_days: 5
  max_days: 120
  max_age_days: 180

tax:
  rate: 0.26
  materiality_threshold: 1
  carryforward_years: 4
  default_category: ETF

symbols:
  SWDA.MI:
    benchmark: MSCI-WORLD
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fisim.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Currency != "EUR" || cfg.InitialCash != 10000 || cfg.Venue != "MIL" {
		t.Errorf("top level = %s %v %s", cfg.Currency, cfg.InitialCash, cfg.Venue)
	}
	if cfg.Costs.Default.MinCommission != 2.75 {
		t.Errorf("min commission = %v", cfg.Costs.Default.MinCommission)
	}
	if cfg.Risk.StopLossPct != -0.08 {
		t.Errorf("stop loss = %v", cfg.Risk.StopLossPct)
	}
	if cfg.Selection.MaxOpenPositions != 5 || cfg.Selection.Weights.Momentum != 0.4 {
		t.Errorf("selection = %+v", cfg.Selection)
	}
	if cfg.Tax.Rate != 0.26 || cfg.Tax.CarryforwardYears != 4 {
		t.Errorf("tax = %+v", cfg.Tax)
	}
	if cfg.Benchmark("SWDA.MI") != "MSCI-WORLD" {
		t.Errorf("benchmark = %q", cfg.Benchmark("SWDA.MI"))
	}
	if cfg.Benchmark("UNKNOWN") != "" {
		t.Error("unknown symbol has a benchmark")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FISCO_SQLITE_PATH", "/var/lib/fisco/override.db")
	t.Setenv("FISCO_LOG_LEVEL", "debug")
	t.Setenv("FISCO_INITIAL_CASH", "2500")

	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.SQLitePath != "/var/lib/fisco/override.db" {
		t.Errorf("sqlite path = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.InitialCash != 2500 {
		t.Errorf("initial cash = %v", cfg.InitialCash)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file loaded")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing currency", func(c *Config) { c.Currency = "" }},
		{"negative cash", func(c *Config) { c.InitialCash = -1 }},
		{"zero open positions", func(c *Config) { c.Selection.MaxOpenPositions = 0 }},
		{"zero entries per day", func(c *Config) { c.Selection.MaxEntriesPerDay = 0 }},
		{"reserve out of range", func(c *Config) { c.Selection.MinCashReservePct = 1 }},
		{"zero base weight", func(c *Config) { c.Selection.BaseWeight = 0 }},
		{"positive stop loss", func(c *Config) { c.Risk.StopLossPct = 0.08 }},
		{"zero take profit", func(c *Config) { c.Risk.TakeProfitPct = 0 }},
		{"holding bounds inverted", func(c *Config) { c.Holding.MaxDays = 1 }},
		{"base days outside bounds", func(c *Config) { c.Holding.BaseDays = 500 }},
		{"max age below max days", func(c *Config) { c.Holding.MaxAgeDays = 10 }},
		{"tax rate out of range", func(c *Config) { c.Tax.Rate = 1 }},
		{"zero carryforward", func(c *Config) { c.Tax.CarryforwardYears = 0 }},
		{"missing default category", func(c *Config) { c.Tax.DefaultCategory = "" }},
		{"zero cost ceiling", func(c *Config) { c.Costs.CostCeiling = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config passed validation")
			}
		})
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
