package fisco

import "sort"

// PositionState is the derived cost-basis state of one symbol: the open
// quantity and its weighted-average cost (PMC, "prezzo medio di carico").
// It is owned conceptually by the ledger and recomputable by full replay.
type PositionState struct {
	Symbol   string
	Quantity Quantity
	PMC      Money
}

// IsOpen returns true while any quantity is held.
func (s PositionState) IsOpen() bool { return s.Quantity.IsPositive() }

// MarketValue returns the position value at the given price.
func (s PositionState) MarketValue(price Money) Money { return price.Mul(s.Quantity) }

// ApplyBuy returns the state after buying qty at price with fees. The new
// PMC is the total carried cost (old quantity at old PMC, plus the new
// purchase including fees) divided by the total quantity. Pure: the receiver
// is not modified.
func (s PositionState) ApplyBuy(qty Quantity, price, fees Money) PositionState {
	if !qty.IsPositive() {
		return s
	}
	oldCost := s.PMC.Mul(s.Quantity)
	newCost := oldCost.Add(price.Mul(qty)).Add(fees)
	totalQty := s.Quantity.Add(qty)
	return PositionState{
		Symbol:   s.Symbol,
		Quantity: totalQty,
		PMC:      newCost.Div(totalQty),
	}
}

// ApplySell returns the state after selling qty. Selling never changes the
// PMC: it realizes gain or loss against the existing cost basis. A position
// that returns to zero resets its PMC, so a later re-entry starts fresh.
func (s PositionState) ApplySell(qty Quantity) PositionState {
	remaining := s.Quantity.Sub(qty)
	if !remaining.IsPositive() {
		return PositionState{Symbol: s.Symbol, PMC: M(0, s.PMC.Currency())}
	}
	return PositionState{Symbol: s.Symbol, Quantity: remaining, PMC: s.PMC}
}

// EstimateSellGain computes the realized gain of selling qty at price with
// fees, against the current PMC, without mutating the state:
//
//	gain = qty*price - fees - qty*pmc
//
// The caller must have validated qty <= s.Quantity; this function tolerates
// any input as defense-in-depth but upstream rejection is the primary guard.
// A zero PMC (never bought, or state lost) treats the cost basis as zero,
// making the full net proceeds taxable.
func (s PositionState) EstimateSellGain(qty Quantity, price, fees Money) (gain, pmcUsed Money) {
	pmcUsed = s.PMC
	proceeds := price.Mul(qty).Sub(fees)
	cost := pmcUsed.Mul(qty)
	return proceeds.Sub(cost), pmcUsed
}

// PositionBook is the incrementally maintained set of open position states
// and plans for one run. It is a materialized view over the ledger: the
// replay-equivalence test proves it matches Ledger.PositionStateAt.
type PositionBook struct {
	cur       string
	positions map[string]PositionState
	plans     map[string]*OpenPositionPlan
}

// NewPositionBook creates an empty position book.
func NewPositionBook(currency string) *PositionBook {
	return &PositionBook{
		cur:       currency,
		positions: make(map[string]PositionState),
		plans:     make(map[string]*OpenPositionPlan),
	}
}

// Get returns the current state for a symbol (zero state if never traded).
func (b *PositionBook) Get(symbol string) PositionState {
	if s, ok := b.positions[symbol]; ok {
		return s
	}
	return PositionState{Symbol: symbol, PMC: M(0, b.cur)}
}

// ApplyBuy folds a buy into the book and opens or refreshes the plan.
func (b *PositionBook) ApplyBuy(symbol string, qty Quantity, price, fees Money, plan *OpenPositionPlan) {
	b.positions[symbol] = b.Get(symbol).ApplyBuy(qty, price, fees)
	if plan != nil {
		b.plans[symbol] = plan
	}
}

// ApplySell folds a sell into the book; a fully closed position drops its plan.
func (b *PositionBook) ApplySell(symbol string, qty Quantity) {
	state := b.Get(symbol).ApplySell(qty)
	b.positions[symbol] = state
	if !state.IsOpen() {
		if p, ok := b.plans[symbol]; ok {
			p.Status = PlanClosed
			delete(b.plans, symbol)
		}
	}
}

// Plan returns the open-position plan for a symbol, or nil.
func (b *PositionBook) Plan(symbol string) *OpenPositionPlan { return b.plans[symbol] }

// Open returns all open position states, sorted by symbol so the daily loop
// visits positions in a deterministic order.
func (b *PositionBook) Open() []PositionState {
	var out []PositionState
	for _, s := range b.positions {
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Plans returns the plans for open positions, sorted by symbol.
func (b *PositionBook) Plans() []*OpenPositionPlan {
	var out []*OpenPositionPlan
	for _, p := range b.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
