package fisco

// PlanStatus is the lifecycle state of an open-position plan.
type PlanStatus string

const (
	PlanActive   PlanStatus = "ACTIVE"
	PlanExtended PlanStatus = "EXTENDED"
	PlanClosing  PlanStatus = "CLOSING"
	PlanClosed   PlanStatus = "CLOSED"
)

// OpenPositionPlan tracks the intended holding window of one open position.
type OpenPositionPlan struct {
	Symbol            string
	EntryDate         Date
	EntryPrice        Money
	HoldingDaysTarget int
	ExpectedExitDate  Date
	EntryScore        float64
	CurrentScore      float64
	Status            PlanStatus

	// PeakPrice is the highest close seen since the trailing stop armed;
	// zero until activation.
	PeakPrice Money
}

// Age returns the position age in days on a given date.
func (p *OpenPositionPlan) Age(on Date) int { return on.Sub(p.EntryDate) }

// HoldingModel computes dynamic target holding windows. All three signal
// adjustments are deliberately inverted: stronger momentum, a higher risk
// scalar, or higher volatility all shorten the target hold (take profit or
// cut risk sooner), while a RISK_OFF regime lengthens it to wait out
// weakness.
type HoldingModel struct {
	cfg            HoldingConfig
	entryThreshold float64
}

// NewHoldingModel builds a holding model from configuration; entryThreshold
// is the selection entry bar a position must keep clearing to be extended.
func NewHoldingModel(cfg HoldingConfig, entryThreshold float64) *HoldingModel {
	return &HoldingModel{cfg: cfg, entryThreshold: entryThreshold}
}

// ExpectedHoldingDays returns the target holding window for a new position,
// clamped to the configured range.
func (m *HoldingModel) ExpectedHoldingDays(sig Signal) int {
	days := float64(m.cfg.BaseDays)

	if mom := clamp01(sig.Momentum); mom > 0 {
		days *= 1.0 - 0.4*mom
	}
	if sig.RiskScalar > 0 {
		days *= 1.0 - 0.3*sig.RiskScalar
	}
	// Zero volatility skips the adjustment entirely.
	if sig.Volatility20d > 0 {
		days *= 1.0 / (1.0 + sig.Volatility20d)
	}
	if sig.State == RiskOff {
		days *= 1.5
	}

	target := int(days + 0.5)
	if target < m.cfg.MinDays {
		target = m.cfg.MinDays
	}
	if target > m.cfg.MaxDays {
		target = m.cfg.MaxDays
	}
	return target
}

// ShouldExtend decides, for a position that reached its expected exit date,
// between extending the hold and a planned exit. It extends only while the
// signal is still RISK_ON, the current score clears the entry threshold,
// and the absolute age ceiling is not exceeded. The returned holding days
// are the recomputed window for the extension, zero on a planned exit.
func (m *HoldingModel) ShouldExtend(plan *OpenPositionPlan, sig Signal, on Date) (extend bool, newHoldingDays int) {
	if sig.State != RiskOn {
		return false, 0
	}
	if plan.CurrentScore <= m.entryThreshold {
		return false, 0
	}
	if plan.Age(on) >= m.cfg.MaxAgeDays {
		return false, 0
	}
	days := m.ExpectedHoldingDays(sig)
	// Never extend past the absolute age ceiling.
	if remaining := m.cfg.MaxAgeDays - plan.Age(on); days > remaining {
		days = remaining
	}
	if days <= 0 {
		return false, 0
	}
	return true, days
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
