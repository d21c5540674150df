package fisco

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a simulation run. It is loaded
// once and passed explicitly into every engine component; there is no
// package-level mutable configuration.
type Config struct {
	Currency    string                  `yaml:"currency"`
	InitialCash float64                 `yaml:"initial_cash"`
	Venue       string                  `yaml:"venue"`
	Logging     LoggingConfig           `yaml:"logging"`
	Storage     StorageConfig           `yaml:"storage"`
	Costs       CostConfig              `yaml:"costs"`
	Risk        RiskConfig              `yaml:"risk"`
	Selection   SelectionConfig         `yaml:"selection"`
	Holding     HoldingConfig           `yaml:"holding"`
	Tax         TaxConfig               `yaml:"tax"`
	Interest    InterestConfig          `yaml:"interest"`
	Symbols     map[string]SymbolConfig `yaml:"symbols"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig holds paths for data persistence.
type StorageConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	QuotesPath  string `yaml:"quotes_path"`
	SignalsPath string `yaml:"signals_path"`
	ReportDir   string `yaml:"report_dir"`
}

// SymbolConfig carries static per-symbol metadata.
type SymbolConfig struct {
	// Benchmark is the underlying index the ETF tracks, used for the
	// overlap penalty in candidate scoring.
	Benchmark string `yaml:"benchmark"`
}

// CostConfig configures the cost model.
type CostConfig struct {
	Default         SymbolCostConfig            `yaml:"default"`
	Symbols         map[string]SymbolCostConfig `yaml:"symbols"`
	SlippageScaling float64                     `yaml:"slippage_scaling"`
	// CostCeiling normalizes the cost penalty in candidate scoring.
	CostCeiling float64 `yaml:"cost_ceiling"`
}

// SymbolCostConfig is the per-symbol cost model input.
type SymbolCostConfig struct {
	CommissionPct   float64 `yaml:"commission_pct"`
	MinCommission   float64 `yaml:"min_commission"`
	BaseSlippageBps float64 `yaml:"base_slippage_bps"`
	TER             float64 `yaml:"ter"`
}

// RiskConfig holds the mandatory-exit thresholds. Loss thresholds are
// negative fractions (e.g. -0.08 for an 8% stop).
type RiskConfig struct {
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	TrailingStopPct float64 `yaml:"trailing_stop_pct"`
	// TrailingActivationPct is the gain at which the trailing stop arms.
	TrailingActivationPct float64 `yaml:"trailing_activation_pct"`
	VolatilityBreaker     float64 `yaml:"volatility_breaker"`
}

// SelectionConfig holds the portfolio-construction thresholds.
type SelectionConfig struct {
	MaxOpenPositions    int          `yaml:"max_open_positions"`
	MaxEntriesPerDay    int          `yaml:"max_entries_per_day"`
	MinCashReservePct   float64      `yaml:"min_cash_reserve_pct"`
	MinTradeValue       float64      `yaml:"min_trade_value"`
	EntryScoreThreshold float64      `yaml:"entry_score_threshold"`
	ScoreAddThreshold   float64      `yaml:"score_add_threshold"`
	BaseWeight          float64      `yaml:"base_weight"`
	OverlapForbidden    bool         `yaml:"overlap_forbidden"`
	Weights             ScoreWeights `yaml:"weights"`
}

// ScoreWeights are the candidate scoring weights.
type ScoreWeights struct {
	Momentum float64 `yaml:"momentum"`
	Risk     float64 `yaml:"risk"`
	Vol      float64 `yaml:"vol"`
	Cost     float64 `yaml:"cost"`
	Overlap  float64 `yaml:"overlap"`
}

// HoldingConfig bounds the dynamic holding-period model.
type HoldingConfig struct {
	BaseDays   int `yaml:"base_days"`
	MinDays    int `yaml:"min_days"`
	MaxDays    int `yaml:"max_days"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// TaxConfig configures the tax engine. Categories and their compensable
// groups are configuration input, not hard-coded rules.
type TaxConfig struct {
	Rate                 float64           `yaml:"rate"`
	MaterialityThreshold float64           `yaml:"materiality_threshold"`
	CarryforwardYears    int               `yaml:"carryforward_years"`
	DefaultCategory      string            `yaml:"default_category"`
	Categories           map[string]string `yaml:"categories"`
	Compensable          [][]string        `yaml:"compensable"`
}

// InterestConfig enables month-end interest accrual on idle cash.
type InterestConfig struct {
	Enabled    bool    `yaml:"enabled"`
	AnnualRate float64 `yaml:"annual_rate"`
}

// LoadConfig reads the YAML configuration file at the given path, parses it,
// applies environment variable overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FISCO_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("FISCO_REPORT_DIR"); v != "" {
		cfg.Storage.ReportDir = v
	}
	if v := os.Getenv("FISCO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FISCO_INITIAL_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.InitialCash = f
		}
	}
}

// Validate checks configuration coherence before a run is allowed to start.
func (c *Config) Validate() error {
	if c.Currency == "" {
		return fmt.Errorf("currency is not set")
	}
	if c.InitialCash < 0 {
		return fmt.Errorf("initial cash must not be negative")
	}
	if c.Selection.MaxOpenPositions <= 0 {
		return fmt.Errorf("selection.max_open_positions must be positive")
	}
	if c.Selection.MaxEntriesPerDay <= 0 {
		return fmt.Errorf("selection.max_entries_per_day must be positive")
	}
	if c.Selection.MinCashReservePct < 0 || c.Selection.MinCashReservePct >= 1 {
		return fmt.Errorf("selection.min_cash_reserve_pct out of range [0,1)")
	}
	if c.Selection.BaseWeight <= 0 || c.Selection.BaseWeight > 1 {
		return fmt.Errorf("selection.base_weight out of range (0,1]")
	}
	if c.Risk.StopLossPct >= 0 {
		return fmt.Errorf("risk.stop_loss_pct must be negative")
	}
	if c.Risk.TakeProfitPct <= 0 {
		return fmt.Errorf("risk.take_profit_pct must be positive")
	}
	if c.Holding.MinDays <= 0 || c.Holding.MaxDays < c.Holding.MinDays {
		return fmt.Errorf("holding day bounds are incoherent (min %d, max %d)", c.Holding.MinDays, c.Holding.MaxDays)
	}
	if c.Holding.BaseDays < c.Holding.MinDays || c.Holding.BaseDays > c.Holding.MaxDays {
		return fmt.Errorf("holding.base_days %d outside [%d,%d]", c.Holding.BaseDays, c.Holding.MinDays, c.Holding.MaxDays)
	}
	if c.Holding.MaxAgeDays < c.Holding.MaxDays {
		return fmt.Errorf("holding.max_age_days %d below holding.max_days %d", c.Holding.MaxAgeDays, c.Holding.MaxDays)
	}
	if c.Tax.Rate < 0 || c.Tax.Rate >= 1 {
		return fmt.Errorf("tax.rate out of range [0,1)")
	}
	if c.Tax.CarryforwardYears <= 0 {
		return fmt.Errorf("tax.carryforward_years must be positive")
	}
	if c.Tax.DefaultCategory == "" {
		return fmt.Errorf("tax.default_category is not set")
	}
	if c.Costs.CostCeiling <= 0 {
		return fmt.Errorf("costs.cost_ceiling must be positive")
	}
	return nil
}

// Benchmark returns the configured underlying benchmark of a symbol, or "".
func (c *Config) Benchmark(symbol string) string {
	return c.Symbols[symbol].Benchmark
}
