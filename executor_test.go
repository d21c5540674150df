package fisco

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type execFixture struct {
	ledger   *Ledger
	book     *PositionBook
	feed     *MemoryFeed
	tax      *TaxEngine
	executor *Executor
}

// newExecFixture funds a backtest ledger with 1000 EUR and wires an executor
// with a 0.1% / 2 EUR minimum commission and no slippage.
func newExecFixture(t *testing.T) *execFixture {
	t.Helper()
	ledger := NewLedger("run-1", RunBacktest, "EUR")
	if err := ledger.Append(testEntry("2024-01-02", EntryDeposit)); err != nil {
		t.Fatal(err)
	}
	book := NewPositionBook("EUR")
	feed := NewMemoryFeed()
	costs := NewCostModel(CostConfig{
		Default: SymbolCostConfig{CommissionPct: 0.001, MinCommission: 2},
	}, "EUR")
	tax := testTaxEngine(t, TaxConfig{})
	return &execFixture{
		ledger:   ledger,
		book:     book,
		feed:     feed,
		tax:      tax,
		executor: NewExecutor(ledger, book, feed, costs, tax, discardLogger()),
	}
}

func (f *execFixture) entryCount() int {
	n := 0
	for range f.ledger.Entries() {
		n++
	}
	return n
}

func mustExecute(t *testing.T, f *execFixture, order Order, on Date) ExecOutcome {
	t.Helper()
	out, err := f.executor.Execute(order, on)
	if err != nil {
		t.Fatalf("execute %s %s: %v", order.Side, order.Symbol, err)
	}
	return out
}

func testOrder(side Side, qty Quantity) Order {
	return Order{
		Symbol:       "SWDA.MI",
		Side:         side,
		Quantity:     qty,
		Price:        eur(10),
		DecisionPath: "TEST/FIXTURE",
		ReasonCode:   "FIXTURE",
	}
}

func TestExecutor_BuyThenSell(t *testing.T) {
	f := newExecFixture(t)
	jan3 := MustParseDate("2024-01-03")
	jan4 := MustParseDate("2024-01-04")
	f.feed.Add("SWDA.MI", jan3, Quote{Close: eur(10)})
	f.feed.Add("SWDA.MI", jan4, Quote{Close: eur(12)})

	out := mustExecute(t, f, testOrder(SideBuy, Q(50)), jan3)
	if out.Rejected() {
		t.Fatalf("buy rejected: %s %s", out.Reason, out.Detail)
	}
	// 50*10 + max(2, 0.1%) commission = 502.
	if got := f.ledger.Cash(); !got.Equal(eur(498)) {
		t.Errorf("cash after buy = %s, want 498", got)
	}
	if got := out.Entry.PMCSnapshot; !got.Equal(eur(10.04)) {
		t.Errorf("PMC snapshot = %s, want 10.04", got)
	}
	if !f.book.Get("SWDA.MI").Quantity.Equal(Q(50)) {
		t.Error("position book not updated after buy")
	}

	out = mustExecute(t, f, testOrder(SideSell, Q(50)), jan4)
	if out.Rejected() {
		t.Fatalf("sell rejected: %s %s", out.Reason, out.Detail)
	}
	// gain = 600 - 2 - 50*10.04 = 96, tax = 96 * 0.26 = 24.96.
	if got := out.Entry.TaxPaid; !got.Equal(eur(24.96)) {
		t.Errorf("tax = %s, want 24.96", got)
	}
	if got := f.ledger.Cash(); !got.Equal(eur(1071.04)) {
		t.Errorf("cash after sell = %s, want 1071.04", got)
	}
	if f.book.Get("SWDA.MI").IsOpen() {
		t.Error("position still open after full sell")
	}
}

func TestExecutor_RejectCashInsufficient(t *testing.T) {
	f := newExecFixture(t)
	on := MustParseDate("2024-01-03")
	f.feed.Add("SWDA.MI", on, Quote{Close: eur(10)})

	// 120*10 = 1200 against a 1000 balance.
	out := mustExecute(t, f, testOrder(SideBuy, Q(120)), on)
	if !out.Rejected() || out.Reason != RejectCashInsufficient {
		t.Fatalf("outcome = %+v, want CASH_INSUFFICIENT rejection", out)
	}
	if n := f.entryCount(); n != 1 {
		t.Errorf("ledger grew to %d entries on a rejected order", n)
	}
	if !f.ledger.Cash().Equal(eur(1000)) {
		t.Error("cash changed on a rejected order")
	}
	if f.book.Get("SWDA.MI").IsOpen() {
		t.Error("position book changed on a rejected order")
	}
}

func TestExecutor_RejectPositionInsufficient(t *testing.T) {
	f := newExecFixture(t)
	on := MustParseDate("2024-01-03")
	f.feed.Add("SWDA.MI", on, Quote{Close: eur(10)})

	out := mustExecute(t, f, testOrder(SideSell, Q(10)), on)
	if !out.Rejected() || out.Reason != RejectPositionInsufficient {
		t.Fatalf("outcome = %+v, want POSITION_INSUFFICIENT rejection", out)
	}
	if n := f.entryCount(); n != 1 {
		t.Errorf("ledger grew to %d entries on a rejected order", n)
	}
}

func TestExecutor_RejectMarketDataMissing(t *testing.T) {
	f := newExecFixture(t)

	out := mustExecute(t, f, testOrder(SideBuy, Q(10)), MustParseDate("2024-01-03"))
	if !out.Rejected() || out.Reason != RejectMarketDataMissing {
		t.Fatalf("outcome = %+v, want MARKET_DATA_MISSING rejection", out)
	}
	if n := f.entryCount(); n != 1 {
		t.Errorf("ledger grew to %d entries on a rejected order", n)
	}
}

func TestExecutor_SellLossOpensBucket(t *testing.T) {
	f := newExecFixture(t)
	jan3 := MustParseDate("2024-01-03")
	jan4 := MustParseDate("2024-01-04")
	f.feed.Add("SWDA.MI", jan3, Quote{Close: eur(10)})
	f.feed.Add("SWDA.MI", jan4, Quote{Close: eur(8)})

	mustExecute(t, f, testOrder(SideBuy, Q(50)), jan3)
	out := mustExecute(t, f, testOrder(SideSell, Q(50)), jan4)
	if out.Rejected() {
		t.Fatalf("sell rejected: %s %s", out.Reason, out.Detail)
	}
	if !out.Entry.TaxPaid.IsZero() {
		t.Errorf("tax on a loss = %s, want zero", out.Entry.TaxPaid)
	}
	buckets := f.tax.Buckets()
	if len(buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(buckets))
	}
	// loss = 400 - 2 - 502 = -104, banked until end of 2028.
	if got := buckets[0].Remaining(); !got.Equal(eur(104)) {
		t.Errorf("bucket remaining = %s, want 104", got)
	}
	if got := buckets[0].ExpiresAt; got != MustParseDate("2028-12-31") {
		t.Errorf("bucket expiry = %s, want 2028-12-31", got)
	}
}

func TestExecutor_UnknownSideIsError(t *testing.T) {
	f := newExecFixture(t)
	on := MustParseDate("2024-01-03")
	f.feed.Add("SWDA.MI", on, Quote{Close: eur(10)})

	order := testOrder(Side("SHORT"), Q(10))
	if _, err := f.executor.Execute(order, on); err == nil {
		t.Fatal("unknown side accepted")
	}
}
