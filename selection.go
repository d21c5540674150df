package fisco

import "sort"

// Candidate is one RISK_ON symbol considered for entry on a given day.
type Candidate struct {
	Symbol string
	Signal Signal
	Price  Money
}

// Proposal is one record of the orders proposal log: every considered
// candidate ends up here with its final status and, if rejected, the
// reason. The log exists for audit, not replay.
type Proposal struct {
	RunID    string       `json:"runId"`
	RunType  RunType      `json:"runType"`
	Date     Date         `json:"date"`
	Symbol   string       `json:"symbol"`
	Side     Side         `json:"side"`
	Quantity Quantity     `json:"quantity,omitempty"`
	Price    Money        `json:"price,omitempty"`
	Score    float64      `json:"score,omitempty"`
	Status   OrderStatus  `json:"status"`
	Reason   RejectReason `json:"reason,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

// RejectMaxOpenPositions marks a candidate dropped because the portfolio is
// already at its open-position cap and the candidate does not qualify as a
// top-up of an existing winner.
const RejectMaxOpenPositions RejectReason = "MAX_OPEN_POSITIONS"

// Selector scores, ranks, filters, and sizes entry candidates.
type Selector struct {
	cfg       SelectionConfig
	costs     *CostModel
	holding   *HoldingModel
	benchmark func(symbol string) string
	cur       string
}

// NewSelector builds a selector. benchmark resolves a symbol to its
// underlying index for the overlap penalty.
func NewSelector(cfg SelectionConfig, costs *CostModel, holding *HoldingModel, benchmark func(string) string, currency string) *Selector {
	return &Selector{
		cfg:       cfg,
		costs:     costs,
		holding:   holding,
		benchmark: benchmark,
		cur:       currency,
	}
}

// Score computes the composite candidate score, clamped to [0,1]:
//
//	momentum*w_m + risk*w_r + vol_norm*w_v - cost_penalty*w_c - overlap_penalty*w_o
//
// The volatility contribution is normalized so calmer symbols score higher.
// The cost penalty folds the annual TER and a round trip of slippage into a
// single [0,1] fraction of the configured cost ceiling.
func (s *Selector) Score(c Candidate, open []PositionState) float64 {
	w := s.cfg.Weights

	volNorm := 1.0
	if c.Signal.Volatility20d > 0 {
		volNorm = 1.0 / (1.0 + c.Signal.Volatility20d)
	}

	slipBps := s.costs.Estimate(c.Symbol, Q(1), c.Price, c.Signal.Volatility20d).SlippageBps
	costPenalty := clamp01((s.costs.TER(c.Symbol) + 2*slipBps/10000) / s.costs.costCeiling())

	overlapPenalty := 0.0
	if s.cfg.OverlapForbidden {
		if bench := s.benchmark(c.Symbol); bench != "" {
			for _, p := range open {
				if p.Symbol != c.Symbol && s.benchmark(p.Symbol) == bench {
					overlapPenalty = 1.0
					break
				}
			}
		}
	}

	score := clamp01(c.Signal.Momentum)*w.Momentum +
		c.Signal.RiskScalar*w.Risk +
		volNorm*w.Vol -
		costPenalty*w.Cost -
		overlapPenalty*w.Overlap
	return clamp01(score)
}

// scored pairs a candidate with its computed score.
type scored struct {
	Candidate
	score float64
}

// SelectEntries ranks the candidates and allocates capital in rank order.
// cash is the recalculated post-sell balance for the day; portfolioValue is
// the total portfolio value used for sizing. It returns the BUY orders to
// submit plus one proposal per dropped candidate.
func (s *Selector) SelectEntries(on Date, candidates []Candidate, book *PositionBook, cash, portfolioValue Money) ([]Order, []Proposal) {
	open := book.Open()

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{Candidate: c, score: s.Score(c, open)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	reserve := portfolioValue.Scale(s.cfg.MinCashReservePct)
	spendable := cash.Sub(reserve)
	minTrade := M(s.cfg.MinTradeValue, s.cur)

	var orders []Order
	var proposals []Proposal
	entries := 0
	openCount := len(open)

	drop := func(c scored, reason RejectReason, detail string) {
		proposals = append(proposals, Proposal{
			Date:   on,
			Symbol: c.Symbol,
			Side:   SideBuy,
			Price:  c.Price,
			Score:  c.score,
			Status: StatusRejected,
			Reason: reason,
			Detail: detail,
		})
	}

	for _, c := range ranked {
		if entries >= s.cfg.MaxEntriesPerDay {
			drop(c, RejectMaxEntriesPerDay, "daily entry cap reached")
			continue
		}
		if c.score < s.cfg.EntryScoreThreshold {
			drop(c, RejectScoreBelowThreshold, "score below entry threshold")
			continue
		}
		topUp := book.Get(c.Symbol).IsOpen()
		if openCount >= s.cfg.MaxOpenPositions {
			// At capacity only a top-up of an existing winner passes, and
			// only when it clearly beats the position's entry score.
			if !topUp {
				drop(c, RejectMaxOpenPositions, "open position cap reached")
				continue
			}
			plan := book.Plan(c.Symbol)
			if plan == nil || c.score <= plan.EntryScore*s.cfg.ScoreAddThreshold {
				drop(c, RejectScoreBelowThreshold, "score below top-up bar")
				continue
			}
		}
		if spendable.LessThan(minTrade) {
			drop(c, RejectCashInsufficient, "cash after reserve below minimum trade value")
			continue
		}

		target := portfolioValue.Scale(s.cfg.BaseWeight * c.Signal.RiskScalar)
		qty := Q(target.DivPrice(c.Price).IntPart())
		// Cap so cumulative spend (including estimated fees) never exceeds
		// the spendable cash.
		for qty.IsPositive() {
			spend := c.Price.Mul(qty).Add(s.costs.Estimate(c.Symbol, qty, c.Price, c.Signal.Volatility20d).Total())
			if spend.LessThanOrEqual(spendable) {
				break
			}
			qty = qty.Sub(Q(1))
		}
		if !qty.IsPositive() || c.Price.Mul(qty).LessThan(minTrade) {
			drop(c, RejectCashInsufficient, "allocation below minimum trade value")
			continue
		}

		holdingDays := s.holding.ExpectedHoldingDays(c.Signal)
		spend := c.Price.Mul(qty).Add(s.costs.Estimate(c.Symbol, qty, c.Price, c.Signal.Volatility20d).Total())
		spendable = spendable.Sub(spend)
		entries++
		if !topUp {
			openCount++
		}

		orders = append(orders, Order{
			Symbol:            c.Symbol,
			Side:              SideBuy,
			Quantity:          qty,
			Price:             c.Price,
			DecisionPath:      "ENTRY_SELECTION/RANKED",
			ReasonCode:        "ENTRY_SIGNAL",
			Volatility:        c.Signal.Volatility20d,
			Score:             c.score,
			HoldingDaysTarget: holdingDays,
			ExpectedExitDate:  on.Add(holdingDays),
		})
	}
	return orders, proposals
}
