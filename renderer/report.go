package renderer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	fisco "github.com/odottori/ETF-ITA-sub000"
)

// ReportMarkdown renders the KPI summary of a run to a markdown string.
func ReportMarkdown(r *fisco.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report %s (%s)\n\n", r.RunID, r.RunType)
	fmt.Fprintf(&b, "Period: %s to %s (%d trading days)\n\n", r.Start, r.End, r.TradingDays)

	fmt.Fprint(&b, "## Performance\n\n")
	fmt.Fprintln(&b, "| Metric | Value |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Initial Cash | %s |\n", r.InitialCash)
	fmt.Fprintf(&b, "| Final Equity | %s |\n", r.FinalEquity)
	fmt.Fprintf(&b, "| Total Return | %.2f%% |\n", r.TotalReturn*100)
	fmt.Fprintf(&b, "| CAGR | %.2f%% |\n", r.CAGR*100)
	fmt.Fprintf(&b, "| Max Drawdown | %.2f%% |\n", r.MaxDrawdown*100)
	fmt.Fprintf(&b, "| Sharpe | %.2f |\n", r.Sharpe)
	fmt.Fprintf(&b, "| Turnover | %.2f |\n", r.Turnover)

	fmt.Fprint(&b, "\n## Activity\n\n")
	fmt.Fprintln(&b, "| Metric | Value |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Buys | %d |\n", r.Buys)
	fmt.Fprintf(&b, "| Sells | %d |\n", r.Sells)
	fmt.Fprintf(&b, "| Fees Paid | %s |\n", r.FeesPaid)
	fmt.Fprintf(&b, "| Tax Paid | %s |\n", r.TaxPaid)
	fmt.Fprintf(&b, "| Interest Earned | %s |\n", r.InterestEarned)
	fmt.Fprintf(&b, "| Rejections | %d (%.1f%%) |\n", r.Rejections, r.RejectionRate*100)

	ConditionalBlock(&b, func(w io.Writer) bool {
		if len(r.RejectionsByReason) == 0 {
			return false
		}
		fmt.Fprint(w, "\n## Rejections by Reason\n\n")
		fmt.Fprintln(w, "| Reason | Count |")
		fmt.Fprintln(w, "|:---|---:|")
		for _, reason := range sortedReasons(r.RejectionsByReason) {
			fmt.Fprintf(w, "| %s | %d |\n", reason, r.RejectionsByReason[reason])
		}
		return true
	})

	ConditionalBlock(&b, func(w io.Writer) bool {
		if len(r.TaxByYear) == 0 {
			return false
		}
		fmt.Fprint(w, "\n## Fiscal Summary per Year\n\n")
		fmt.Fprintln(w, "| Year | Realized Gains | Realized Losses | Offset Used | Tax Paid |")
		fmt.Fprintln(w, "|:---|---:|---:|---:|---:|")
		for _, y := range r.TaxByYear {
			fmt.Fprintf(w, "| %d | %s | %s | %s | %s |\n",
				y.Year,
				y.RealizedGains.SignedString(),
				y.RealizedLosses.SignedString(),
				y.OffsetUsed,
				y.TaxPaid,
			)
		}
		return true
	})

	fmt.Fprintf(&b, "\nOpen loss buckets: %d, remaining offset capacity %s\n", r.OpenBuckets, r.RemainingCapacity)

	return b.String()
}

// LedgerMarkdown renders ledger entries as a markdown table, most recent last.
func LedgerMarkdown(entries []fisco.LedgerEntry) string {
	var b strings.Builder

	fmt.Fprint(&b, "# Ledger\n\n")
	fmt.Fprintln(&b, "| Date | Type | Symbol | Qty | Price | Fees | Tax | PMC | Reason |")
	fmt.Fprintln(&b, "|:---|:---|:---|---:|---:|---:|---:|---:|:---|")
	for _, e := range entries {
		switch e.Type {
		case fisco.EntryDeposit, fisco.EntryInterest:
			fmt.Fprintf(&b, "| %s | %s | | | %s | | | | %s |\n",
				e.Date, e.Type, e.Amount, e.ReasonCode)
		default:
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				e.Date, e.Type, e.Symbol, e.Quantity, e.Price, e.Fees, e.TaxPaid, e.PMCSnapshot, e.ReasonCode)
		}
	}
	return b.String()
}

// BucketsMarkdown renders the tax-loss buckets of a run.
func BucketsMarkdown(buckets []fisco.TaxLossBucket) string {
	var b strings.Builder

	fmt.Fprint(&b, "# Tax-Loss Buckets\n\n")
	if len(buckets) == 0 {
		fmt.Fprintln(&b, "No buckets.")
		return b.String()
	}
	fmt.Fprintln(&b, "| Symbol | Realized | Loss | Used | Remaining | Expires | Category |")
	fmt.Fprintln(&b, "|:---|:---|---:|---:|---:|:---|:---|")
	for i := range buckets {
		bk := &buckets[i]
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			bk.Symbol, bk.RealizeDate, bk.Loss.SignedString(), bk.Used, bk.Remaining(), bk.ExpiresAt, bk.Category)
	}
	return b.String()
}

// ProposalsMarkdown renders the proposal log of a run.
func ProposalsMarkdown(proposals []fisco.Proposal) string {
	var b strings.Builder

	fmt.Fprint(&b, "# Proposal Log\n\n")
	fmt.Fprintln(&b, "| Date | Symbol | Side | Qty | Price | Score | Status | Reason |")
	fmt.Fprintln(&b, "|:---|:---|:---|---:|---:|---:|:---|:---|")
	for _, p := range proposals {
		reason := string(p.Reason)
		if p.Detail != "" {
			reason = p.Detail
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %.3f | %s | %s |\n",
			p.Date, p.Symbol, p.Side, p.Quantity, p.Price, p.Score, p.Status, reason)
	}
	return b.String()
}

// RunsMarkdown renders the stored-run catalog.
func RunsMarkdown(runs []fisco.RunInfo) string {
	var b strings.Builder

	fmt.Fprint(&b, "# Stored Runs\n\n")
	if len(runs) == 0 {
		fmt.Fprintln(&b, "No runs stored.")
		return b.String()
	}
	fmt.Fprintln(&b, "| Run | Type | Start | End | Entries |")
	fmt.Fprintln(&b, "|:---|:---|:---|:---|---:|")
	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n", r.RunID, r.RunType, r.Start, r.End, r.Entries)
	}
	return b.String()
}

func sortedReasons(m map[fisco.RejectReason]int) []fisco.RejectReason {
	out := make([]fisco.RejectReason, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
