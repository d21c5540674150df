package fisco

import (
	"math"
	"sort"
)

// YearTaxSummary aggregates the realized fiscal activity of one calendar
// year.
type YearTaxSummary struct {
	Year           int   `json:"year"`
	RealizedGains  Money `json:"realizedGains"`
	RealizedLosses Money `json:"realizedLosses"`
	OffsetUsed     Money `json:"offsetUsed"`
	TaxPaid        Money `json:"taxPaid"`
}

// RunReport is the KPI summary of a completed run. Everything in it is
// derived from the run result; it carries no state of its own.
type RunReport struct {
	RunID    string  `json:"runId"`
	RunType  RunType `json:"runType"`
	Currency string  `json:"currency"`

	Start       Date `json:"start"`
	End         Date `json:"end"`
	TradingDays int  `json:"tradingDays"`

	InitialCash Money   `json:"initialCash"`
	FinalEquity Money   `json:"finalEquity"`
	TotalReturn float64 `json:"totalReturn"`
	CAGR        float64 `json:"cagr"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	Sharpe      float64 `json:"sharpe"`
	Turnover    float64 `json:"turnover"`

	Buys           int   `json:"buys"`
	Sells          int   `json:"sells"`
	FeesPaid       Money `json:"feesPaid"`
	TaxPaid        Money `json:"taxPaid"`
	InterestEarned Money `json:"interestEarned"`

	Rejections         int                  `json:"rejections"`
	RejectionRate      float64              `json:"rejectionRate"`
	RejectionsByReason map[RejectReason]int `json:"rejectionsByReason,omitempty"`

	TaxByYear []YearTaxSummary `json:"taxByYear,omitempty"`

	OpenBuckets       int   `json:"openBuckets"`
	RemainingCapacity Money `json:"remainingCapacity"`
}

// NewRunReport computes the KPI summary from a finished run.
func NewRunReport(runID string, runType RunType, cfg *Config, res *RunResult) *RunReport {
	cur := cfg.Currency
	r := &RunReport{
		RunID:              runID,
		RunType:            runType,
		Currency:           cur,
		TradingDays:        len(res.Equity),
		InitialCash:        M(cfg.InitialCash, cur),
		FeesPaid:           M(0, cur),
		TaxPaid:            M(0, cur),
		InterestEarned:     M(0, cur),
		RemainingCapacity:  M(0, cur),
		RejectionsByReason: make(map[RejectReason]int),
	}
	if len(res.Equity) > 0 {
		r.Start = res.Equity[0].Date
		r.End = res.Equity[len(res.Equity)-1].Date
		r.FinalEquity = res.Equity[len(res.Equity)-1].Total
	} else {
		r.FinalEquity = r.InitialCash
	}

	traded := M(0, cur)
	taxByYear := make(map[int]*YearTaxSummary)
	rate := cfg.Tax.Rate
	for _, e := range res.Ledger.Entries() {
		switch e.Type {
		case EntryBuy:
			r.Buys++
			r.FeesPaid = r.FeesPaid.Add(e.Fees)
			traded = traded.Add(e.GrossAmount())
		case EntrySell:
			r.Sells++
			r.FeesPaid = r.FeesPaid.Add(e.Fees)
			r.TaxPaid = r.TaxPaid.Add(e.TaxPaid)
			traded = traded.Add(e.GrossAmount())

			y := taxByYear[e.Date.Year()]
			if y == nil {
				y = &YearTaxSummary{
					Year:           e.Date.Year(),
					RealizedGains:  M(0, cur),
					RealizedLosses: M(0, cur),
					OffsetUsed:     M(0, cur),
					TaxPaid:        M(0, cur),
				}
				taxByYear[e.Date.Year()] = y
			}
			gain := e.GrossAmount().Sub(e.Fees).Sub(e.PMCSnapshot.Mul(e.Quantity))
			if gain.IsNegative() {
				y.RealizedLosses = y.RealizedLosses.Add(gain)
			} else {
				y.RealizedGains = y.RealizedGains.Add(gain)
				if rate > 0 {
					// gain minus the taxed part is what carried losses
					// absorbed.
					y.OffsetUsed = y.OffsetUsed.Add(gain.Sub(e.TaxPaid.Div(Q(rate))))
				}
			}
			y.TaxPaid = y.TaxPaid.Add(e.TaxPaid)
		case EntryInterest:
			r.InterestEarned = r.InterestEarned.Add(e.Amount)
		}
	}
	years := make([]int, 0, len(taxByYear))
	for y := range taxByYear {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		r.TaxByYear = append(r.TaxByYear, *taxByYear[y])
	}

	considered := 0
	for _, p := range res.Proposals {
		if p.Status == StatusHold {
			continue
		}
		considered++
		if p.Status == StatusRejected {
			r.Rejections++
			r.RejectionsByReason[p.Reason]++
		}
	}
	if considered > 0 {
		r.RejectionRate = float64(r.Rejections) / float64(considered)
	}

	for _, b := range res.Buckets {
		if !b.Remaining().IsPositive() {
			continue
		}
		r.OpenBuckets++
		r.RemainingCapacity = r.RemainingCapacity.Add(b.Remaining())
	}

	r.TotalReturn = r.FinalEquity.InexactFloat()/r.InitialCash.InexactFloat() - 1
	if days := r.End.Sub(r.Start); days > 0 {
		r.CAGR = math.Pow(1+r.TotalReturn, 365/float64(days)) - 1
	}
	r.MaxDrawdown = maxDrawdown(res.Equity)
	r.Sharpe = sharpe(res.Equity)
	if avg := averageEquity(res.Equity); avg > 0 {
		r.Turnover = traded.InexactFloat() / avg
	}
	return r
}

// maxDrawdown is the worst peak-to-trough decline of the equity curve,
// reported as a negative fraction.
func maxDrawdown(equity []EquityPoint) float64 {
	worst, peak := 0.0, 0.0
	for _, p := range equity {
		v := p.Total.InexactFloat()
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe is the annualized Sharpe ratio of the daily equity returns, with a
// zero risk-free rate.
func sharpe(equity []EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	var returns []float64
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Total.InexactFloat()
		if prev == 0 {
			continue
		}
		returns = append(returns, equity[i].Total.InexactFloat()/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range returns {
		mean += x
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, x := range returns {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(252)
}

func averageEquity(equity []EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range equity {
		sum += p.Total.InexactFloat()
	}
	return sum / float64(len(equity))
}
