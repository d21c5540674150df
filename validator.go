package fisco

// Pre-trade validation. Both checks replay the ledger restricted to one
// run partition and are strictly read-only: on insufficiency the caller
// must reject the order, there are no partial commits.

// CheckCashAvailable replays the ledger up to the given date and reports
// whether the cash balance covers the required amount. Deposits, interest
// and net sell proceeds increase cash; buy cost plus fees decreases it.
func CheckCashAvailable(l *Ledger, on Date, required Money) (ok bool, balance Money) {
	balance = l.CashBalance(on)
	return balance.GreaterThanOrEqual(required), balance
}

// CheckPositionAvailable replays the ledger up to the given date and
// reports whether the held quantity of the symbol covers the required one.
func CheckPositionAvailable(l *Ledger, symbol string, on Date, required Quantity) (ok bool, held Quantity) {
	held = l.Position(symbol, on)
	return held.GreaterThanOrEqual(required), held
}
