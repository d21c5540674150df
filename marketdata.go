package fisco

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Quote is the market snapshot of one symbol on one trading day.
type Quote struct {
	Close    Money
	AdjClose Money
	High     Money
	Low      Money
	Volume   int64
}

// MarketDataFeed supplies end-of-day quotes. The executor hard-rejects any
// order for which the lookup is absent; the feed never invents data.
type MarketDataFeed interface {
	// Quote returns the quote for (symbol, date) and whether it exists.
	Quote(symbol string, on Date) (Quote, bool)
}

// SignalState is the discrete regime emitted by the signal source.
type SignalState string

const (
	RiskOn  SignalState = "RISK_ON"
	RiskOff SignalState = "RISK_OFF"
	Hold    SignalState = "HOLD"
)

// Signal is the per-symbol, per-day strategy input, validated once at the
// system boundary: after decoding, state is a known enum value and the risk
// scalar is inside [0,1].
type Signal struct {
	State         SignalState
	RiskScalar    float64
	Volatility20d float64
	Momentum      float64
}

// Validate checks the boundary constraints on a decoded signal.
func (s Signal) Validate() error {
	switch s.State {
	case RiskOn, RiskOff, Hold:
	default:
		return fmt.Errorf("unknown signal state %q", s.State)
	}
	if s.RiskScalar < 0 || s.RiskScalar > 1 {
		return fmt.Errorf("risk scalar %v out of range [0,1]", s.RiskScalar)
	}
	if s.Volatility20d < 0 {
		return fmt.Errorf("negative volatility %v", s.Volatility20d)
	}
	return nil
}

// SignalSource supplies trading signals per symbol and day.
type SignalSource interface {
	// Signal returns the signal for (symbol, date) and whether it exists.
	Signal(symbol string, on Date) (Signal, bool)
	// Symbols returns every symbol the source covers, sorted.
	Symbols() []string
	// Dates returns the sorted dates for which at least one signal exists.
	Dates() []Date
}

type feedKey struct {
	symbol string
	date   Date
}

// MemoryFeed is an in-memory MarketDataFeed, loaded from JSONL or built by
// tests.
type MemoryFeed struct {
	quotes map[feedKey]Quote
}

// NewMemoryFeed creates an empty feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{quotes: make(map[feedKey]Quote)}
}

// Add stores a quote for (symbol, date), replacing any previous one.
func (f *MemoryFeed) Add(symbol string, on Date, q Quote) {
	f.quotes[feedKey{symbol, on}] = q
}

// Quote implements MarketDataFeed.
func (f *MemoryFeed) Quote(symbol string, on Date) (Quote, bool) {
	q, ok := f.quotes[feedKey{symbol, on}]
	return q, ok
}

// MemorySignals is an in-memory SignalSource.
type MemorySignals struct {
	signals map[feedKey]Signal
}

// NewMemorySignals creates an empty signal source.
func NewMemorySignals() *MemorySignals {
	return &MemorySignals{signals: make(map[feedKey]Signal)}
}

// Add stores a signal for (symbol, date), replacing any previous one.
func (s *MemorySignals) Add(symbol string, on Date, sig Signal) {
	s.signals[feedKey{symbol, on}] = sig
}

// Signal implements SignalSource.
func (s *MemorySignals) Signal(symbol string, on Date) (Signal, bool) {
	sig, ok := s.signals[feedKey{symbol, on}]
	return sig, ok
}

// Symbols implements SignalSource.
func (s *MemorySignals) Symbols() []string {
	seen := make(map[string]struct{})
	var out []string
	for k := range s.signals {
		if _, ok := seen[k.symbol]; !ok {
			seen[k.symbol] = struct{}{}
			out = append(out, k.symbol)
		}
	}
	sort.Strings(out)
	return out
}

// Dates implements SignalSource.
func (s *MemorySignals) Dates() []Date {
	seen := make(map[Date]struct{})
	var out []Date
	for k := range s.signals {
		if _, ok := seen[k.date]; !ok {
			seen[k.date] = struct{}{}
			out = append(out, k.date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// quoteRow is the JSONL wire shape of one quote.
type quoteRow struct {
	Date     Date    `json:"date"`
	Symbol   string  `json:"symbol"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Volume   int64   `json:"volume"`
}

// DecodeQuotes reads a JSONL stream of quotes into a MemoryFeed. Empty
// lines are skipped; a malformed line aborts the decode.
func DecodeQuotes(r io.Reader, currency string) (*MemoryFeed, error) {
	feed := NewMemoryFeed()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row quoteRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("quotes line %d: %w", line, err)
		}
		if row.Symbol == "" || row.Date.IsZero() {
			return nil, fmt.Errorf("quotes line %d: missing symbol or date", line)
		}
		if row.Close <= 0 {
			return nil, fmt.Errorf("quotes line %d: non-positive close for %s", line, row.Symbol)
		}
		feed.Add(row.Symbol, row.Date, Quote{
			Close:    M(row.Close, currency),
			AdjClose: M(row.AdjClose, currency),
			High:     M(row.High, currency),
			Low:      M(row.Low, currency),
			Volume:   row.Volume,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading quotes: %w", err)
	}
	return feed, nil
}

// signalRow is the JSONL wire shape of one signal.
type signalRow struct {
	Date       Date    `json:"date"`
	Symbol     string  `json:"symbol"`
	State      string  `json:"state"`
	RiskScalar float64 `json:"riskScalar"`
	Volatility float64 `json:"volatility20d"`
	Momentum   float64 `json:"momentum"`
}

// DecodeSignals reads a JSONL stream of signals into a MemorySignals,
// validating each row at the boundary.
func DecodeSignals(r io.Reader) (*MemorySignals, error) {
	src := NewMemorySignals()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row signalRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("signals line %d: %w", line, err)
		}
		if row.Symbol == "" || row.Date.IsZero() {
			return nil, fmt.Errorf("signals line %d: missing symbol or date", line)
		}
		sig := Signal{
			State:         SignalState(row.State),
			RiskScalar:    row.RiskScalar,
			Volatility20d: row.Volatility,
			Momentum:      row.Momentum,
		}
		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("signals line %d (%s %s): %w", line, row.Symbol, row.Date, err)
		}
		src.Add(row.Symbol, row.Date, sig)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading signals: %w", err)
	}
	return src, nil
}
