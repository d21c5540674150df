package fisco

// CostModel estimates commission and volatility-adjusted slippage for a
// trade. It is deterministic: the estimate depends only on static
// per-symbol configuration and the latest known volatility.
type CostModel struct {
	cur      string
	defaults SymbolCostConfig
	symbols  map[string]SymbolCostConfig
	// Annualized volatility is multiplied by this factor to widen the
	// slippage estimate in rough markets.
	slippageScaling float64
	ceiling         float64
}

// costCeiling returns the normalization ceiling for the scoring cost penalty.
func (m *CostModel) costCeiling() float64 { return m.ceiling }

// TradeCosts is the estimated friction of one trade.
type TradeCosts struct {
	Commission  Money
	Slippage    Money
	SlippageBps float64
}

// Total returns commission plus slippage.
func (c TradeCosts) Total() Money { return c.Commission.Add(c.Slippage) }

// NewCostModel builds a cost model from configuration.
func NewCostModel(cfg CostConfig, currency string) *CostModel {
	m := &CostModel{
		cur:             currency,
		defaults:        cfg.Default,
		symbols:         make(map[string]SymbolCostConfig),
		slippageScaling: cfg.SlippageScaling,
		ceiling:         cfg.CostCeiling,
	}
	for symbol, sc := range cfg.Symbols {
		m.symbols[symbol] = sc
	}
	return m
}

// symbolConfig returns the per-symbol cost configuration, falling back to
// the defaults for any unconfigured symbol.
func (m *CostModel) symbolConfig(symbol string) SymbolCostConfig {
	if sc, ok := m.symbols[symbol]; ok {
		return sc
	}
	return m.defaults
}

// TER returns the configured annual total expense ratio for a symbol.
func (m *CostModel) TER(symbol string) float64 { return m.symbolConfig(symbol).TER }

// Estimate computes the trade costs for a quantity at a price, given the
// latest annualized volatility:
//
//	commission   = max(min_commission, value * commission_pct)
//	slippage_bps = max(base_bps, volatility * scaling)
//	slippage     = value * slippage_bps / 10000
//
// A zero volatility skips the volatility scaling and falls back to the
// base spread.
func (m *CostModel) Estimate(symbol string, qty Quantity, price Money, volatility float64) TradeCosts {
	sc := m.symbolConfig(symbol)
	value := price.Mul(qty)

	commission := value.Scale(sc.CommissionPct).Max(M(sc.MinCommission, m.cur))

	bps := sc.BaseSlippageBps
	if volatility > 0 {
		if scaled := volatility * m.slippageScaling; scaled > bps {
			bps = scaled
		}
	}
	slippage := value.Scale(bps / 10000)

	return TradeCosts{Commission: commission, Slippage: slippage, SlippageBps: bps}
}
