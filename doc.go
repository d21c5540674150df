// Package fisco implements an event-driven simulator for an ETF trading
// strategy under the Italian administered tax regime.
//
// The simulation advances one trading day at a time. Each day runs through a
// fixed sequence: mandatory exits are decided first, cash is recomputed as
// if those exits had filled, new entries are scored and sized against the
// recalculated cash, and at day end the SELL batch executes strictly before
// the BUY batch.
//
// Everything that happens lands in an append-only Ledger of immutable
// entries, partitioned by run. Cash, positions, and the weighted-average
// cost basis (PMC) are derived state: replaying the ledger from the start
// always reproduces them, and every run ends with a consistency check that
// proves the incrementally maintained balances match a full replay.
//
// Realized gains and losses are settled trade by trade by the TaxEngine:
// losses above a materiality threshold open carry-forward buckets that
// expire four years after realization, and gains consume compatible buckets
// soonest-expiry first before the flat rate applies to the remainder.
//
// All monetary amounts use decimal arithmetic; float64 never touches money.
package fisco
