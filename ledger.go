package fisco

import (
	"fmt"
	"iter"
	"strings"
)

// EntryType identifies the kind of fact recorded by a ledger entry.
type EntryType string

// Entry types recorded in the fiscal ledger.
const (
	EntryDeposit  EntryType = "DEPOSIT"
	EntryBuy      EntryType = "BUY"
	EntrySell     EntryType = "SELL"
	EntryInterest EntryType = "INTEREST"
)

// RunType partitions ledger history between simulated and live sessions.
// Queries never mix partitions.
type RunType string

const (
	RunBacktest   RunType = "BACKTEST"
	RunProduction RunType = "PRODUCTION"
)

// ParseRunType parses a string into a RunType, case-insensitively.
func ParseRunType(s string) (RunType, error) {
	switch RunType(strings.ToUpper(s)) {
	case RunBacktest:
		return RunBacktest, nil
	case RunProduction:
		return RunProduction, nil
	default:
		return "", fmt.Errorf("unknown run type: %q", s)
	}
}

// LedgerEntry is an immutable fact in the fiscal ledger. Entries are created
// once at order commit and never mutated or deleted; corrections are new
// reversing entries.
type LedgerEntry struct {
	Date     Date      `json:"date"`
	Type     EntryType `json:"type"`
	Symbol   string    `json:"symbol,omitempty"`
	Quantity Quantity  `json:"quantity,omitempty"`
	Price    Money     `json:"price,omitempty"`
	// Amount carries the cash movement for DEPOSIT and INTEREST entries,
	// which have no quantity/price decomposition.
	Amount       Money   `json:"amount,omitempty"`
	Fees         Money   `json:"fees,omitempty"`
	TaxPaid      Money   `json:"taxPaid,omitempty"`
	PMCSnapshot  Money   `json:"pmcSnapshot,omitempty"`
	RunID        string  `json:"runId"`
	RunType      RunType `json:"runType"`
	DecisionPath string  `json:"decisionPath"`
	ReasonCode   string  `json:"reasonCode"`

	// Holding-period metadata, set on BUY entries only.
	HoldingDaysTarget int  `json:"holdingDaysTarget,omitempty"`
	ExpectedExitDate  Date `json:"expectedExitDate,omitempty"`
}

// GrossAmount returns quantity times price for trade entries.
func (e LedgerEntry) GrossAmount() Money { return e.Price.Mul(e.Quantity) }

// CashDelta returns the signed effect of the entry on the running cash
// balance: deposits, interest and net sell proceeds increase cash; buy cost
// plus fees decreases it.
func (e LedgerEntry) CashDelta() Money {
	switch e.Type {
	case EntryDeposit, EntryInterest:
		return e.Amount
	case EntryBuy:
		return e.GrossAmount().Add(e.Fees).Neg()
	case EntrySell:
		return e.GrossAmount().Sub(e.Fees).Sub(e.TaxPaid)
	default:
		return Money{}
	}
}

// Validate checks the audit fields every committed entry must carry.
func (e LedgerEntry) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("ledger entry has no date")
	}
	if e.RunID == "" {
		return fmt.Errorf("ledger entry has no run id")
	}
	if e.RunType != RunBacktest && e.RunType != RunProduction {
		return fmt.Errorf("ledger entry has invalid run type %q", e.RunType)
	}
	if e.DecisionPath == "" {
		return fmt.Errorf("ledger entry has empty decision path")
	}
	if e.ReasonCode == "" {
		return fmt.Errorf("ledger entry has empty reason code")
	}
	switch e.Type {
	case EntryBuy, EntrySell:
		if e.Symbol == "" {
			return fmt.Errorf("%s entry has no symbol", e.Type)
		}
		if !e.Quantity.IsPositive() {
			return fmt.Errorf("%s entry for %s has non-positive quantity %s", e.Type, e.Symbol, e.Quantity)
		}
		if !e.Price.IsPositive() {
			return fmt.Errorf("%s entry for %s has non-positive price %s", e.Type, e.Symbol, e.Price)
		}
	case EntryDeposit, EntryInterest:
		if !e.Amount.IsPositive() {
			return fmt.Errorf("%s entry has non-positive amount %s", e.Type, e.Amount)
		}
	default:
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	return nil
}

// Ledger is the append-only record of one run partition. Entries are always
// in chronological order; all derived state (cash, positions, cost basis) is
// recomputable by replaying it from the start.
type Ledger struct {
	runID   string
	runType RunType
	cur     string
	entries []LedgerEntry

	// Incrementally maintained views. TestLedger_ReplayEquivalence proves
	// they match a full replay after every append.
	cash Money
	held map[string]Quantity
}

// NewLedger creates an empty ledger for one run partition.
func NewLedger(runID string, runType RunType, currency string) *Ledger {
	return &Ledger{
		runID:   runID,
		runType: runType,
		cur:     currency,
		cash:    M(0, currency),
		held:    make(map[string]Quantity),
	}
}

// ReplayLedger rebuilds a ledger from stored entries, re-validating every
// one. The partition identity comes from the first entry.
func ReplayLedger(currency string, entries []LedgerEntry) (*Ledger, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("cannot replay an empty ledger")
	}
	l := NewLedger(entries[0].RunID, entries[0].RunType, currency)
	for i, e := range entries {
		if err := l.Append(e); err != nil {
			return nil, fmt.Errorf("replaying entry %d: %w", i, err)
		}
	}
	return l, nil
}

// RunID returns the run identifier of the partition.
func (l *Ledger) RunID() string { return l.runID }

// RunType returns the run type of the partition.
func (l *Ledger) RunType() RunType { return l.runType }

// Currency returns the ledger's accounting currency.
func (l *Ledger) Currency() string { return l.cur }

// Len returns the number of committed entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Append commits an entry after enforcing the ledger invariants: the entry
// must belong to this partition, must not be dated before the last entry,
// must not oversell, and must not drive the cash balance negative. A failed
// append leaves the ledger untouched.
func (l *Ledger) Append(e LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.RunID != l.runID || e.RunType != l.runType {
		return fmt.Errorf("entry partition %s/%s does not match ledger %s/%s",
			e.RunID, e.RunType, l.runID, l.runType)
	}
	if n := len(l.entries); n > 0 && e.Date.Before(l.entries[n-1].Date) {
		return fmt.Errorf("entry on %s predates last ledger entry on %s", e.Date, l.entries[n-1].Date)
	}
	if e.Type == EntrySell && e.Quantity.GreaterThan(l.held[e.Symbol]) {
		return fmt.Errorf("oversell of %s: selling %s with only %s held", e.Symbol, e.Quantity, l.held[e.Symbol])
	}
	newCash := l.cash.Add(e.CashDelta())
	if newCash.IsNegative() {
		return fmt.Errorf("entry on %s would drive cash negative (%s)", e.Date, newCash)
	}

	l.entries = append(l.entries, e)
	l.cash = newCash
	switch e.Type {
	case EntryBuy:
		l.held[e.Symbol] = l.held[e.Symbol].Add(e.Quantity)
	case EntrySell:
		l.held[e.Symbol] = l.held[e.Symbol].Sub(e.Quantity)
	}
	return nil
}

// Cash returns the current running cash balance.
func (l *Ledger) Cash() Money { return l.cash }

// Held returns the current quantity held for a symbol.
func (l *Ledger) Held(symbol string) Quantity { return l.held[symbol] }

// Entries returns an iterator over all entries in chronological order.
func (l *Ledger) Entries() iter.Seq2[int, LedgerEntry] {
	return func(yield func(int, LedgerEntry) bool) {
		for i, e := range l.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// CashBalance computes the cash balance on a given date by full replay.
// This is the correctness baseline the incremental balance is tested against.
func (l *Ledger) CashBalance(on Date) Money {
	balance := M(0, l.cur)
	for _, e := range l.entries {
		if e.Date.After(on) {
			// The ledger is chronological, so it is safe to break.
			break
		}
		balance = balance.Add(e.CashDelta())
	}
	return balance
}

// Position computes the quantity held for a symbol on a given date by full replay.
func (l *Ledger) Position(symbol string, on Date) Quantity {
	var qty Quantity
	for _, e := range l.entries {
		if e.Date.After(on) {
			break
		}
		if e.Symbol != symbol {
			continue
		}
		switch e.Type {
		case EntryBuy:
			qty = qty.Add(e.Quantity)
		case EntrySell:
			qty = qty.Sub(e.Quantity)
		}
	}
	return qty
}

// PositionStateAt rebuilds the full position state (quantity and PMC) for a
// symbol on a given date by replaying the ledger. PMC changes only on BUY;
// SELL leaves it untouched and a position that returns to zero resets it.
func (l *Ledger) PositionStateAt(symbol string, on Date) PositionState {
	state := PositionState{Symbol: symbol, PMC: M(0, l.cur)}
	for _, e := range l.entries {
		if e.Date.After(on) {
			break
		}
		if e.Symbol != symbol {
			continue
		}
		switch e.Type {
		case EntryBuy:
			state = state.ApplyBuy(e.Quantity, e.Price, e.Fees)
		case EntrySell:
			state = state.ApplySell(e.Quantity)
		}
	}
	return state
}

// Symbols returns every symbol that appears in the ledger.
func (l *Ledger) Symbols() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range l.entries {
		if e.Symbol == "" {
			continue
		}
		if _, ok := seen[e.Symbol]; ok {
			continue
		}
		seen[e.Symbol] = struct{}{}
		out = append(out, e.Symbol)
	}
	return out
}

// CheckConsistency replays the whole ledger and verifies that every prefix
// honors the no-oversell and non-negative-cash invariants, and that the
// incremental cash and position views match the replayed ones. A violation
// here is a data inconsistency: the run must abort, never auto-correct.
func (l *Ledger) CheckConsistency() error {
	cash := M(0, l.cur)
	held := make(map[string]Quantity)
	for i, e := range l.entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Type == EntrySell && e.Quantity.GreaterThan(held[e.Symbol]) {
			return fmt.Errorf("entry %d: oversell of %s on %s", i, e.Symbol, e.Date)
		}
		cash = cash.Add(e.CashDelta())
		if cash.IsNegative() {
			return fmt.Errorf("entry %d: negative cash balance %s on %s", i, cash, e.Date)
		}
		switch e.Type {
		case EntryBuy:
			held[e.Symbol] = held[e.Symbol].Add(e.Quantity)
		case EntrySell:
			held[e.Symbol] = held[e.Symbol].Sub(e.Quantity)
		}
	}
	if !cash.Equal(l.cash) {
		return fmt.Errorf("incremental cash %s diverges from replayed cash %s", l.cash, cash)
	}
	for symbol, qty := range held {
		if !qty.Equal(l.held[symbol]) {
			return fmt.Errorf("incremental position %s for %s diverges from replayed %s", l.held[symbol], symbol, qty)
		}
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface with a stable field order.
func (e LedgerEntry) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("date", e.Date)
	w.Append("type", e.Type)
	w.Optional("symbol", e.Symbol)
	if !e.Quantity.IsZero() {
		w.Append("quantity", e.Quantity)
	}
	if !e.Price.IsZero() {
		w.Append("price", e.Price)
	}
	if !e.Amount.IsZero() {
		w.Append("amount", e.Amount)
	}
	if !e.Fees.IsZero() {
		w.Append("fees", e.Fees)
	}
	if !e.TaxPaid.IsZero() {
		w.Append("taxPaid", e.TaxPaid)
	}
	if !e.PMCSnapshot.IsZero() {
		w.Append("pmcSnapshot", e.PMCSnapshot)
	}
	w.Append("runId", e.RunID)
	w.Append("runType", e.RunType)
	w.Append("decisionPath", e.DecisionPath)
	w.Append("reasonCode", e.ReasonCode)
	w.Optional("holdingDaysTarget", e.HoldingDaysTarget)
	if !e.ExpectedExitDate.IsZero() {
		w.Append("expectedExitDate", e.ExpectedExitDate)
	}
	return w.MarshalJSON()
}
