package fisco

import (
	"math"
	"testing"
)

func closeTo(got, want, tol float64) bool { return math.Abs(got-want) <= tol }

// reportFixture replays one buy, one taxed sell, and one interest accrual.
func reportFixture(t *testing.T) (*Config, *RunResult) {
	t.Helper()
	cfg := testEngineConfig()

	l := NewLedger("run-1", RunBacktest, "EUR")
	base := LedgerEntry{
		RunID:        "run-1",
		RunType:      RunBacktest,
		DecisionPath: "TEST/FIXTURE",
		ReasonCode:   "FIXTURE",
	}
	deposit := base
	deposit.Date = MustParseDate("2024-01-02")
	deposit.Type = EntryDeposit
	deposit.Amount = eur(10000)

	buy := base
	buy.Date = MustParseDate("2024-01-03")
	buy.Type = EntryBuy
	buy.Symbol = "SWDA.MI"
	buy.Quantity = Q(100)
	buy.Price = eur(10)
	buy.Fees = eur(5)
	buy.PMCSnapshot = eur(10.05)

	// gain = 1200 - 5 - 100*10.05 = 190; 100 of it offset by carried
	// losses, tax on the remaining 90 at 26%.
	sell := base
	sell.Date = MustParseDate("2024-06-03")
	sell.Type = EntrySell
	sell.Symbol = "SWDA.MI"
	sell.Quantity = Q(100)
	sell.Price = eur(12)
	sell.Fees = eur(5)
	sell.PMCSnapshot = eur(10.05)
	sell.TaxPaid = eur(23.40)

	interest := base
	interest.Date = MustParseDate("2024-06-28")
	interest.Type = EntryInterest
	interest.Amount = eur(12.50)

	for _, e := range []LedgerEntry{deposit, buy, sell, interest} {
		if err := l.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	eq := func(date string, total float64) EquityPoint {
		return EquityPoint{Date: MustParseDate(date), Total: eur(total)}
	}
	res := &RunResult{
		Ledger: l,
		Equity: []EquityPoint{
			eq("2024-01-02", 10000),
			eq("2024-01-03", 9995),
			eq("2024-06-03", 10166.60),
			eq("2024-06-28", 10179.10),
		},
		Proposals: []Proposal{
			{Status: StatusTrade, Symbol: "SWDA.MI"},
			{Status: StatusRejected, Symbol: "EIMI.MI", Reason: RejectCashInsufficient},
			{Status: StatusHold, Symbol: "SWDA.MI"},
		},
		Buckets: []TaxLossBucket{
			{Symbol: "EIMI.MI", Loss: eur(-200), Used: eur(100), ExpiresAt: MustParseDate("2027-12-31"), Category: "ETF"},
			{Symbol: "XDWD.MI", Loss: eur(-50), Used: eur(50), ExpiresAt: MustParseDate("2026-12-31"), Category: "ETF"},
		},
	}
	return cfg, res
}

func TestRunReport_KPIs(t *testing.T) {
	cfg, res := reportFixture(t)
	r := NewRunReport("run-1", RunBacktest, cfg, res)

	if r.Start != MustParseDate("2024-01-02") || r.End != MustParseDate("2024-06-28") {
		t.Errorf("period = %s..%s", r.Start, r.End)
	}
	if r.TradingDays != 4 {
		t.Errorf("trading days = %d, want 4", r.TradingDays)
	}
	if r.Buys != 1 || r.Sells != 1 {
		t.Errorf("buys/sells = %d/%d, want 1/1", r.Buys, r.Sells)
	}
	if !r.FeesPaid.Equal(eur(10)) {
		t.Errorf("fees = %s, want 10", r.FeesPaid)
	}
	if !r.TaxPaid.Equal(eur(23.40)) {
		t.Errorf("tax = %s, want 23.40", r.TaxPaid)
	}
	if !r.InterestEarned.Equal(eur(12.50)) {
		t.Errorf("interest = %s, want 12.50", r.InterestEarned)
	}
	if !r.FinalEquity.Equal(eur(10179.10)) {
		t.Errorf("final equity = %s", r.FinalEquity)
	}
	if !closeTo(r.TotalReturn, 0.01791, 1e-9) {
		t.Errorf("total return = %v", r.TotalReturn)
	}
	if r.CAGR <= r.TotalReturn {
		t.Errorf("CAGR %v not annualized above the sub-year return %v", r.CAGR, r.TotalReturn)
	}
	// Worst dip is 9995 against the 10000 peak.
	if !closeTo(r.MaxDrawdown, -0.0005, 1e-9) {
		t.Errorf("max drawdown = %v, want -0.0005", r.MaxDrawdown)
	}
}

func TestRunReport_FiscalYearSummary(t *testing.T) {
	cfg, res := reportFixture(t)
	r := NewRunReport("run-1", RunBacktest, cfg, res)

	if len(r.TaxByYear) != 1 {
		t.Fatalf("tax years = %d, want 1", len(r.TaxByYear))
	}
	y := r.TaxByYear[0]
	if y.Year != 2024 {
		t.Errorf("year = %d", y.Year)
	}
	if !y.RealizedGains.Equal(eur(190)) {
		t.Errorf("realized gains = %s, want 190", y.RealizedGains)
	}
	if !y.RealizedLosses.IsZero() {
		t.Errorf("realized losses = %s, want 0", y.RealizedLosses)
	}
	// 23.40 of tax at 26% means 90 was taxed, so 100 was offset.
	if !y.OffsetUsed.Equal(eur(100)) {
		t.Errorf("offset used = %s, want 100", y.OffsetUsed)
	}
	if !y.TaxPaid.Equal(eur(23.40)) {
		t.Errorf("tax paid = %s, want 23.40", y.TaxPaid)
	}
}

func TestRunReport_RejectionsAndBuckets(t *testing.T) {
	cfg, res := reportFixture(t)
	r := NewRunReport("run-1", RunBacktest, cfg, res)

	// HOLD proposals are not decisions, so the rate is 1 of 2.
	if r.Rejections != 1 {
		t.Errorf("rejections = %d, want 1", r.Rejections)
	}
	if !closeTo(r.RejectionRate, 0.5, 1e-9) {
		t.Errorf("rejection rate = %v, want 0.5", r.RejectionRate)
	}
	if r.RejectionsByReason[RejectCashInsufficient] != 1 {
		t.Errorf("by-reason map = %v", r.RejectionsByReason)
	}

	// The exhausted bucket does not count as open capacity.
	if r.OpenBuckets != 1 {
		t.Errorf("open buckets = %d, want 1", r.OpenBuckets)
	}
	if !r.RemainingCapacity.Equal(eur(100)) {
		t.Errorf("remaining capacity = %s, want 100", r.RemainingCapacity)
	}
}

func TestRunReport_EmptyRun(t *testing.T) {
	cfg := testEngineConfig()
	res := &RunResult{Ledger: NewLedger("run-1", RunBacktest, "EUR")}
	r := NewRunReport("run-1", RunBacktest, cfg, res)

	if !r.FinalEquity.Equal(r.InitialCash) {
		t.Errorf("final equity = %s, want the initial cash", r.FinalEquity)
	}
	if r.TotalReturn != 0 || r.CAGR != 0 || r.Sharpe != 0 {
		t.Errorf("KPIs on an empty run: return=%v cagr=%v sharpe=%v", r.TotalReturn, r.CAGR, r.Sharpe)
	}
}
