package fisco

import (
	"context"
	"fmt"
	"log/slog"
)

// Reason codes stamped on ledger entries and proposals. Every committed
// entry names the rule that produced it.
const (
	ReasonInitialDeposit   = "INITIAL_DEPOSIT"
	ReasonRiskOffExit      = "RISK_OFF_EXIT"
	ReasonStopLoss         = "STOP_LOSS"
	ReasonTakeProfit       = "TAKE_PROFIT"
	ReasonTrailingStop     = "TRAILING_STOP"
	ReasonVolBreaker       = "VOLATILITY_BREAKER"
	ReasonPlannedExit      = "PLANNED_EXIT"
	ReasonHoldingExtended  = "HOLDING_EXTENDED"
	ReasonEntrySignal      = "ENTRY_SIGNAL"
	ReasonMonthEndInterest = "MONTH_END_INTEREST"
)

// EquityPoint is one sample of the portfolio-value time series.
type EquityPoint struct {
	Date      Date  `json:"date"`
	Cash      Money `json:"cash"`
	Positions Money `json:"positions"`
	Total     Money `json:"total"`
}

// RunResult bundles everything a completed run produced.
type RunResult struct {
	Ledger    *Ledger
	Proposals []Proposal
	Buckets   []TaxLossBucket
	Equity    []EquityPoint
	Report    *RunReport
}

// Engine drives the day-by-day simulation. Each simulated trading day goes
// through a fixed sequence of phases:
//
//	DAY_START -> MANDATORY_EXIT -> CASH_RECALC -> ENTRY_SELECTION -> DAY_END
//
// Exits are decided first, cash is recomputed as if those exits had filled,
// entries are sized against that cash, and at day end the SELL batch is
// submitted strictly before the BUY batch so exits always free cash before
// entries spend it.
//
// The engine is strictly sequential across days (day N's ledger state is a
// precondition for day N+1) and assumes a single writer per run partition.
// It is not idempotent for a (run, date): callers must clear prior rows for
// the run before re-running.
type Engine struct {
	cfg      *Config
	market   MarketDataFeed
	signals  SignalSource
	calendar TradingCalendar
	logger   *slog.Logger
}

// NewEngine wires a simulation engine. All collaborators are passed
// explicitly; the engine holds no global state.
func NewEngine(cfg *Config, market MarketDataFeed, signals SignalSource, calendar TradingCalendar, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		market:   market,
		signals:  signals,
		calendar: calendar,
		logger:   logger,
	}
}

// pendingSell is a forced or planned exit decided during MANDATORY_EXIT,
// executed at DAY_END.
type pendingSell struct {
	order Order
}

// Run simulates the strategy over the given period and returns the full
// result bundle. The first simulated date is the first open day with
// signals, the last is the final one. A fatal precondition failure
// (no signals in the window, a detected ledger inconsistency) aborts the
// run with an error and no silent auto-correction.
func (e *Engine) Run(ctx context.Context, runID string, runType RunType, period Range) (*RunResult, error) {
	days := e.tradingDays(period)
	if len(days) == 0 {
		return nil, fmt.Errorf("no signals available between %s and %s", period.From, period.To)
	}

	cur := e.cfg.Currency
	ledger := NewLedger(runID, runType, cur)
	book := NewPositionBook(cur)
	costs := NewCostModel(e.cfg.Costs, cur)
	taxEngine, err := NewTaxEngine(e.cfg.Tax, cur)
	if err != nil {
		return nil, fmt.Errorf("tax engine: %w", err)
	}
	holding := NewHoldingModel(e.cfg.Holding, e.cfg.Selection.EntryScoreThreshold)
	selector := NewSelector(e.cfg.Selection, costs, holding, e.cfg.Benchmark, cur)
	executor := NewExecutor(ledger, book, e.market, costs, taxEngine, e.logger)

	if err := ledger.Append(LedgerEntry{
		Date:         days[0],
		Type:         EntryDeposit,
		Amount:       M(e.cfg.InitialCash, cur),
		RunID:        runID,
		RunType:      runType,
		DecisionPath: "RUN_SETUP/INITIAL_DEPOSIT",
		ReasonCode:   ReasonInitialDeposit,
	}); err != nil {
		return nil, fmt.Errorf("initial deposit: %w", err)
	}

	result := &RunResult{Ledger: ledger}
	lastPrice := make(map[string]Money)

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run aborted on %s: %w", day, err)
		}
		e.logger.Debug("day start", "date", day.String(), "open", len(book.Open()), "cash", ledger.Cash().String())

		// Refresh last known prices and the current score of every open
		// plan; extension and top-up decisions read the score later today.
		for _, p := range book.Open() {
			q, hasQuote := e.market.Quote(p.Symbol, day)
			if hasQuote {
				lastPrice[p.Symbol] = q.Close
			}
			plan := book.Plan(p.Symbol)
			if plan == nil || !hasQuote {
				continue
			}
			if sig, ok := e.signals.Signal(p.Symbol, day); ok {
				plan.CurrentScore = selector.Score(Candidate{Symbol: p.Symbol, Signal: sig, Price: q.Close}, book.Open())
			}
		}

		// MANDATORY_EXIT: decide forced and planned exits.
		sells, exitProposals := e.mandatoryExits(day, book, holding)
		result.Proposals = append(result.Proposals, exitProposals...)

		// CASH_RECALC: simulate post-sell cash so entry sizing never uses
		// stale pre-sell balances.
		estCash := ledger.Cash()
		selling := make(map[string]Quantity)
		for _, s := range sells {
			q, ok := e.market.Quote(s.order.Symbol, day)
			if !ok {
				continue
			}
			c := costs.Estimate(s.order.Symbol, s.order.Quantity, q.Close, s.order.Volatility)
			execPrice := q.Close.Scale(1 - c.SlippageBps/10000)
			estCash = estCash.Add(execPrice.Mul(s.order.Quantity)).Sub(c.Commission)
			selling[s.order.Symbol] = selling[s.order.Symbol].Add(s.order.Quantity)
		}

		// ENTRY_SELECTION: rank RISK_ON candidates against the
		// recalculated cash.
		candidates := e.entryCandidates(day, book)
		portfolioValue := estCash
		for _, p := range book.Open() {
			remaining := p.Quantity.Sub(selling[p.Symbol])
			if !remaining.IsPositive() {
				continue
			}
			if price, ok := lastPrice[p.Symbol]; ok {
				portfolioValue = portfolioValue.Add(price.Mul(remaining))
			}
		}
		buys, entryProposals := selector.SelectEntries(day, candidates, book, estCash, portfolioValue)
		result.Proposals = append(result.Proposals, entryProposals...)

		// DAY_END: SELL batch strictly before BUY batch.
		for _, s := range sells {
			outcome, err := executor.Execute(s.order, day)
			if err != nil {
				return nil, fmt.Errorf("day %s sell batch: %w", day, err)
			}
			result.Proposals = append(result.Proposals, proposalFor(s.order, day, outcome))
		}
		for _, b := range buys {
			outcome, err := executor.Execute(b, day)
			if err != nil {
				return nil, fmt.Errorf("day %s buy batch: %w", day, err)
			}
			if !outcome.Rejected() {
				// Fresh positions must be priced in today's equity sample.
				lastPrice[b.Symbol] = outcome.Entry.Price
			}
			result.Proposals = append(result.Proposals, proposalFor(b, day, outcome))
		}

		// Month-end interest accrual on idle cash.
		if e.cfg.Interest.Enabled && (i+1 == len(days) || days[i+1].Month() != day.Month()) {
			interest := ledger.Cash().Scale(e.cfg.Interest.AnnualRate / 12)
			if interest.IsPositive() {
				if err := ledger.Append(LedgerEntry{
					Date:         day,
					Type:         EntryInterest,
					Amount:       interest,
					RunID:        runID,
					RunType:      runType,
					DecisionPath: "CASH_MANAGEMENT/MONTH_END_INTEREST",
					ReasonCode:   ReasonMonthEndInterest,
				}); err != nil {
					return nil, fmt.Errorf("interest accrual on %s: %w", day, err)
				}
			}
		}

		// Sample the equity curve at day end.
		positions := M(0, cur)
		for _, p := range book.Open() {
			if price, ok := lastPrice[p.Symbol]; ok {
				positions = positions.Add(price.Mul(p.Quantity))
			}
		}
		result.Equity = append(result.Equity, EquityPoint{
			Date:      day,
			Cash:      ledger.Cash(),
			Positions: positions,
			Total:     ledger.Cash().Add(positions),
		})
	}

	if err := ledger.CheckConsistency(); err != nil {
		return nil, fmt.Errorf("ledger consistency after run: %w", err)
	}

	for i := range result.Proposals {
		result.Proposals[i].RunID = runID
		result.Proposals[i].RunType = runType
	}

	result.Buckets = taxEngine.Buckets()
	result.Report = NewRunReport(runID, runType, e.cfg, result)
	return result, nil
}

// tradingDays returns the simulated dates: open venue days inside the
// period for which the signal source has data.
func (e *Engine) tradingDays(period Range) []Date {
	withSignals := make(map[Date]struct{})
	for _, d := range e.signals.Dates() {
		withSignals[d] = struct{}{}
	}
	var days []Date
	period.Days(func(d Date) bool {
		if !e.calendar.IsOpen(e.cfg.Venue, d) {
			return true
		}
		if _, ok := withSignals[d]; ok {
			days = append(days, d)
		}
		return true
	})
	return days
}

// mandatoryExits walks the open positions in priority order and decides
// which must be sold today. The rule priority is fixed: RISK_OFF signal,
// stop-loss, take-profit, trailing stop, volatility breaker. Positions at
// their expected exit date without a forced exit go through the holding
// model for the extend-vs-exit decision.
func (e *Engine) mandatoryExits(day Date, book *PositionBook, holding *HoldingModel) ([]pendingSell, []Proposal) {
	var sells []pendingSell
	var proposals []Proposal

	for _, pos := range book.Open() {
		plan := book.Plan(pos.Symbol)
		sig, hasSig := e.signals.Signal(pos.Symbol, day)
		quote, hasQuote := e.market.Quote(pos.Symbol, day)

		reason := ""
		switch {
		case hasSig && sig.State == RiskOff:
			reason = ReasonRiskOffExit
		case hasQuote && !pos.PMC.IsZero():
			pnlPct := quote.Close.InexactFloat()/pos.PMC.InexactFloat() - 1
			switch {
			case pnlPct <= e.cfg.Risk.StopLossPct:
				reason = ReasonStopLoss
			case pnlPct >= e.cfg.Risk.TakeProfitPct:
				reason = ReasonTakeProfit
			default:
				if plan != nil && pnlPct >= e.cfg.Risk.TrailingActivationPct {
					if quote.Close.GreaterThan(plan.PeakPrice) {
						plan.PeakPrice = quote.Close
					}
				}
				if plan != nil && plan.PeakPrice.IsPositive() {
					drawdown := quote.Close.InexactFloat()/plan.PeakPrice.InexactFloat() - 1
					if drawdown <= e.cfg.Risk.TrailingStopPct {
						reason = ReasonTrailingStop
					}
				}
			}
		}
		if reason == "" && hasSig && e.cfg.Risk.VolatilityBreaker > 0 && sig.Volatility20d >= e.cfg.Risk.VolatilityBreaker {
			reason = ReasonVolBreaker
		}

		if reason == "" && plan != nil && !plan.ExpectedExitDate.IsZero() && !day.Before(plan.ExpectedExitDate) {
			if hasSig {
				if extend, newDays := holding.ShouldExtend(plan, sig, day); extend {
					plan.Status = PlanExtended
					plan.HoldingDaysTarget = newDays
					plan.ExpectedExitDate = day.Add(newDays)
					proposals = append(proposals, Proposal{
						Date:   day,
						Symbol: pos.Symbol,
						Side:   SideSell,
						Score:  plan.CurrentScore,
						Status: StatusHold,
						Detail: fmt.Sprintf("holding extended by %d days", newDays),
					})
					e.logger.Debug("holding extended", "date", day.String(), "symbol", pos.Symbol, "days", newDays)
					continue
				}
			}
			reason = ReasonPlannedExit
		}
		if reason == "" {
			continue
		}

		if plan != nil {
			plan.Status = PlanClosing
		}
		vol := 0.0
		score := 0.0
		if hasSig {
			vol = sig.Volatility20d
		}
		if plan != nil {
			score = plan.CurrentScore
		}
		var refPrice Money
		if hasQuote {
			refPrice = quote.Close
		}
		sells = append(sells, pendingSell{order: Order{
			Symbol:       pos.Symbol,
			Side:         SideSell,
			Quantity:     pos.Quantity,
			Price:        refPrice,
			DecisionPath: "MANDATORY_EXIT/" + reason,
			ReasonCode:   reason,
			Volatility:   vol,
			Score:        score,
		}})
	}
	return sells, proposals
}

// entryCandidates collects the RISK_ON symbols with a quote for the day and
// refreshes the current score context on open plans.
func (e *Engine) entryCandidates(day Date, book *PositionBook) []Candidate {
	var out []Candidate
	for _, symbol := range e.signals.Symbols() {
		sig, ok := e.signals.Signal(symbol, day)
		if !ok || sig.State != RiskOn {
			continue
		}
		quote, ok := e.market.Quote(symbol, day)
		if !ok {
			// No price today: the executor would hard-reject anyway.
			continue
		}
		out = append(out, Candidate{Symbol: symbol, Signal: sig, Price: quote.Close})
	}
	return out
}

// proposalFor converts an execution outcome into its audit record.
func proposalFor(order Order, day Date, outcome ExecOutcome) Proposal {
	p := Proposal{
		Date:     day,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    order.Price,
		Score:    order.Score,
	}
	if outcome.Rejected() {
		p.Status = StatusRejected
		p.Reason = outcome.Reason
		p.Detail = outcome.Detail
	} else {
		p.Status = StatusTrade
	}
	return p
}
