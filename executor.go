package fisco

import (
	"fmt"
	"log/slog"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the final status of a considered order.
type OrderStatus string

const (
	StatusTrade    OrderStatus = "TRADE"
	StatusHold     OrderStatus = "HOLD"
	StatusRejected OrderStatus = "REJECTED"
)

// RejectReason enumerates the expected operational rejections. A rejection
// is not an error: the order is skipped, logged, and the simulation
// continues.
type RejectReason string

const (
	RejectCashInsufficient     RejectReason = "CASH_INSUFFICIENT"
	RejectPositionInsufficient RejectReason = "POSITION_INSUFFICIENT"
	RejectMarketDataMissing    RejectReason = "MARKET_DATA_MISSING"
	RejectMaxEntriesPerDay     RejectReason = "MAX_ENTRIES_PER_DAY"
	RejectScoreBelowThreshold  RejectReason = "SCORE_BELOW_THRESHOLD"
)

// Order is a proposed, not-yet-committed ledger mutation. Only the executor
// turns an order into a LedgerEntry.
type Order struct {
	Symbol       string
	Side         Side
	Quantity     Quantity
	Price        Money // reference close price used for sizing
	DecisionPath string
	ReasonCode   string

	// Volatility at decision time, input to the cost model.
	Volatility float64
	// Score at decision time, carried onto the open-position plan.
	Score float64

	// Holding-period metadata for BUY orders.
	HoldingDaysTarget int
	ExpectedExitDate  Date
}

// ExecOutcome is the result of attempting one order: either a committed
// ledger entry, or a rejection with a reason. Fatal precondition failures
// travel separately as errors.
type ExecOutcome struct {
	Entry  *LedgerEntry
	Reason RejectReason
	Detail string

	Costs TradeCosts
	Tax   TaxAssessment
}

// Rejected reports whether the order was rejected.
func (o ExecOutcome) Rejected() bool { return o.Entry == nil }

// Executor commits validated orders to the fiscal ledger atomically: a
// rejected order leaves the ledger, the tax engine, and the position book
// untouched.
type Executor struct {
	ledger *Ledger
	book   *PositionBook
	market MarketDataFeed
	costs  *CostModel
	tax    *TaxEngine
	logger *slog.Logger
}

// NewExecutor wires an executor for one run partition.
func NewExecutor(ledger *Ledger, book *PositionBook, market MarketDataFeed, costs *CostModel, tax *TaxEngine, logger *slog.Logger) *Executor {
	return &Executor{
		ledger: ledger,
		book:   book,
		market: market,
		costs:  costs,
		tax:    tax,
		logger: logger,
	}
}

// Execute attempts one order on one date. The sequence is fixed: market
// data guardrail, pre-trade validation, cost estimation, tax (SELL) or cost
// basis (BUY) computation, and finally exactly one fully-audited ledger
// append. Any rejection happens before the append, so there is no partial
// state change on any rejection path.
func (e *Executor) Execute(order Order, on Date) (ExecOutcome, error) {
	quote, ok := e.market.Quote(order.Symbol, on)
	if !ok {
		return e.reject(order, on, RejectMarketDataMissing,
			fmt.Sprintf("no market price for %s on %s", order.Symbol, on)), nil
	}
	price := quote.Close
	costs := e.costs.Estimate(order.Symbol, order.Quantity, price, order.Volatility)
	fees := costs.Total()

	entry := LedgerEntry{
		Date:         on,
		Symbol:       order.Symbol,
		Quantity:     order.Quantity,
		Price:        price,
		Fees:         fees,
		RunID:        e.ledger.RunID(),
		RunType:      e.ledger.RunType(),
		DecisionPath: order.DecisionPath,
		ReasonCode:   order.ReasonCode,
	}

	var tax TaxAssessment
	switch order.Side {
	case SideBuy:
		required := price.Mul(order.Quantity).Add(fees)
		if ok, balance := CheckCashAvailable(e.ledger, on, required); !ok {
			return e.reject(order, on, RejectCashInsufficient,
				fmt.Sprintf("need %s, have %s", required, balance)), nil
		}
		entry.Type = EntryBuy
		entry.PMCSnapshot = e.book.Get(order.Symbol).ApplyBuy(order.Quantity, price, fees).PMC
		entry.HoldingDaysTarget = order.HoldingDaysTarget
		entry.ExpectedExitDate = order.ExpectedExitDate

	case SideSell:
		if ok, held := CheckPositionAvailable(e.ledger, order.Symbol, on, order.Quantity); !ok {
			return e.reject(order, on, RejectPositionInsufficient,
				fmt.Sprintf("need %s, hold %s", order.Quantity, held)), nil
		}
		state := e.book.Get(order.Symbol)
		gain, pmcUsed := state.EstimateSellGain(order.Quantity, price, fees)
		tax = e.tax.CalculateTax(order.Symbol, on, gain)
		entry.Type = EntrySell
		entry.TaxPaid = tax.Tax
		entry.PMCSnapshot = pmcUsed

	default:
		return ExecOutcome{}, fmt.Errorf("unknown order side %q", order.Side)
	}

	if err := e.ledger.Append(entry); err != nil {
		// Validation passed, so a refused append is a data inconsistency:
		// surface it, never auto-correct.
		return ExecOutcome{}, fmt.Errorf("ledger append on %s: %w", on, err)
	}
	if entry.Type == EntrySell {
		if err := e.tax.Commit(tax); err != nil {
			return ExecOutcome{}, fmt.Errorf("tax commit on %s: %w", on, err)
		}
		e.book.ApplySell(order.Symbol, order.Quantity)
	} else {
		var plan *OpenPositionPlan
		if order.HoldingDaysTarget > 0 {
			plan = &OpenPositionPlan{
				Symbol:            order.Symbol,
				EntryDate:         on,
				EntryPrice:        price,
				HoldingDaysTarget: order.HoldingDaysTarget,
				ExpectedExitDate:  order.ExpectedExitDate,
				EntryScore:        order.Score,
				CurrentScore:      order.Score,
				Status:            PlanActive,
			}
		}
		e.book.ApplyBuy(order.Symbol, order.Quantity, price, fees, plan)
	}

	e.logger.Info("order executed",
		"date", on.String(),
		"symbol", order.Symbol,
		"side", string(order.Side),
		"qty", entry.Quantity.String(),
		"price", price.String(),
		"fees", fees.String(),
		"tax", entry.TaxPaid.String(),
		"reason", order.ReasonCode,
	)
	return ExecOutcome{Entry: &entry, Costs: costs, Tax: tax}, nil
}

// reject logs and returns a rejection outcome without touching any state.
func (e *Executor) reject(order Order, on Date, reason RejectReason, detail string) ExecOutcome {
	e.logger.Info("order rejected",
		"date", on.String(),
		"symbol", order.Symbol,
		"side", string(order.Side),
		"reason", string(reason),
		"detail", detail,
	)
	return ExecOutcome{Reason: reason, Detail: detail}
}
