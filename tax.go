package fisco

import (
	"fmt"
	"sort"
)

// TaxCategory classifies a symbol's realized gains for compensation
// purposes. The set of categories, and which of them are mutually
// compensable, is configuration input, not a hard-coded rule.
type TaxCategory string

// TaxLossBucket is a carried-forward capital loss ("zainetto fiscale")
// usable to offset later gains of a compensable category. A bucket is
// usable through and including its expiry date, never after; it expires by
// date comparison and is never deleted.
type TaxLossBucket struct {
	Symbol      string      `json:"symbol"`
	RealizeDate Date        `json:"realizeDate"`
	Loss        Money       `json:"loss"` // always negative
	Used        Money       `json:"used"` // monotonically non-decreasing, 0 <= Used <= |Loss|
	ExpiresAt   Date        `json:"expiresAt"`
	Category    TaxCategory `json:"category"`
}

// Remaining returns the offset capacity left in the bucket.
func (b *TaxLossBucket) Remaining() Money { return b.Loss.Abs().Sub(b.Used) }

// UsableOn reports whether the bucket can offset a gain realized on the
// given date: not yet expired (the expiry date itself is still usable) and
// with capacity left.
func (b *TaxLossBucket) UsableOn(on Date) bool {
	return !on.After(b.ExpiresAt) && b.Remaining().IsPositive()
}

// BucketUse records one bucket's contribution to offsetting a gain.
type BucketUse struct {
	Bucket *TaxLossBucket
	Amount Money
}

// TaxAssessment is the outcome of taxing one realized gain or loss. It is
// computed without touching engine state; Commit applies it.
type TaxAssessment struct {
	Symbol       string
	Date         Date
	Gain         Money
	Category     TaxCategory
	Tax          Money
	ZainettoUsed Money
	Explanation  string

	uses      []BucketUse
	newBucket *TaxLossBucket
}

// TaxEngine computes capital-gains tax with multi-year loss carry-forward.
// It owns the run's bucket set; the engine assumes a single writer per run.
type TaxEngine struct {
	cur         string
	rate        float64
	materiality Money
	carryYears  int
	categories  map[string]TaxCategory
	defaultCat  TaxCategory
	compensable map[TaxCategory]map[TaxCategory]bool
	buckets     []*TaxLossBucket
}

// NewTaxEngine builds a tax engine from configuration.
func NewTaxEngine(cfg TaxConfig, currency string) (*TaxEngine, error) {
	if cfg.Rate < 0 || cfg.Rate >= 1 {
		return nil, fmt.Errorf("tax rate %v out of range [0,1)", cfg.Rate)
	}
	if cfg.CarryforwardYears <= 0 {
		return nil, fmt.Errorf("carryforward years must be positive, got %d", cfg.CarryforwardYears)
	}
	t := &TaxEngine{
		cur:         currency,
		rate:        cfg.Rate,
		materiality: M(cfg.MaterialityThreshold, currency),
		carryYears:  cfg.CarryforwardYears,
		categories:  make(map[string]TaxCategory),
		defaultCat:  TaxCategory(cfg.DefaultCategory),
		compensable: make(map[TaxCategory]map[TaxCategory]bool),
	}
	if t.defaultCat == "" {
		return nil, fmt.Errorf("default tax category is not set")
	}
	for symbol, cat := range cfg.Categories {
		t.categories[symbol] = TaxCategory(cat)
	}
	// A category always compensates itself; the configured groups extend that.
	sameAs := func(a, b TaxCategory) {
		if t.compensable[a] == nil {
			t.compensable[a] = make(map[TaxCategory]bool)
		}
		t.compensable[a][b] = true
	}
	for _, group := range cfg.Compensable {
		for _, a := range group {
			for _, b := range group {
				sameAs(TaxCategory(a), TaxCategory(b))
			}
		}
	}
	return t, nil
}

// Category resolves the tax category for a symbol.
func (t *TaxEngine) Category(symbol string) TaxCategory {
	if cat, ok := t.categories[symbol]; ok {
		return cat
	}
	return t.defaultCat
}

// Compensable reports whether a loss of category a may offset a gain of
// category b. Cross-category offsetting is forbidden unless the two
// categories are configured in the same compensable group; this is a
// documented domain rule, not a bug.
func (t *TaxEngine) Compensable(a, b TaxCategory) bool {
	if a == b {
		return true
	}
	return t.compensable[a][b]
}

// CalculateTax assesses the tax consequence of a realized gain (or loss)
// for a symbol on a date. For a gain, eligible non-expired buckets of a
// compensable category are consumed soonest-expiry-first and only the
// residual is taxed. For a loss beyond the materiality threshold the
// assessment carries a new carry-forward bucket expiring on December 31st
// of the realization year plus the configured carry-forward window.
//
// The engine state is not modified; call Commit to apply the assessment.
func (t *TaxEngine) CalculateTax(symbol string, on Date, gain Money) TaxAssessment {
	a := TaxAssessment{
		Symbol:       symbol,
		Date:         on,
		Gain:         gain,
		Category:     t.Category(symbol),
		Tax:          M(0, t.cur),
		ZainettoUsed: M(0, t.cur),
	}

	if gain.IsNegative() {
		if gain.Abs().GreaterThan(t.materiality) {
			a.newBucket = &TaxLossBucket{
				Symbol:      symbol,
				RealizeDate: on,
				Loss:        gain,
				Used:        M(0, t.cur),
				ExpiresAt:   on.EndOfYear(t.carryYears),
				Category:    a.Category,
			}
			a.Explanation = fmt.Sprintf("loss of %s carried forward in category %s until %s",
				gain.Abs(), a.Category, a.newBucket.ExpiresAt)
		} else {
			a.Explanation = fmt.Sprintf("loss of %s below materiality threshold, no carry-forward", gain.Abs())
		}
		return a
	}
	if gain.IsZero() {
		a.Explanation = "no gain realized"
		return a
	}

	remaining := gain
	for _, b := range t.eligibleBuckets(a.Category, on) {
		if !remaining.IsPositive() {
			break
		}
		use := b.Remaining().Min(remaining)
		a.uses = append(a.uses, BucketUse{Bucket: b, Amount: use})
		a.ZainettoUsed = a.ZainettoUsed.Add(use)
		remaining = remaining.Sub(use)
	}
	a.Tax = remaining.Scale(t.rate).Max(M(0, t.cur))
	a.Explanation = fmt.Sprintf("gain %s in category %s: %s offset by carried losses, %s taxed at %.2f%%",
		gain, a.Category, a.ZainettoUsed, remaining, t.rate*100)
	return a
}

// eligibleBuckets returns the usable buckets for a gain of the given
// category, ordered by soonest expiry first (ties broken by realize date,
// then symbol, for determinism).
func (t *TaxEngine) eligibleBuckets(cat TaxCategory, on Date) []*TaxLossBucket {
	var out []*TaxLossBucket
	for _, b := range t.buckets {
		if b.UsableOn(on) && t.Compensable(b.Category, cat) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt != out[j].ExpiresAt {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		if out[i].RealizeDate != out[j].RealizeDate {
			return out[i].RealizeDate.Before(out[j].RealizeDate)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Commit applies an assessment: bucket consumption is recorded (an increment
// can never exceed the remaining capacity) and any new carry-forward bucket
// is opened. Commit is called only after the corresponding ledger entry is
// accepted, so bucket state never runs ahead of the ledger.
func (t *TaxEngine) Commit(a TaxAssessment) error {
	for _, use := range a.uses {
		if use.Amount.GreaterThan(use.Bucket.Remaining()) {
			return fmt.Errorf("bucket for %s realized %s: usage %s exceeds remaining capacity %s",
				use.Bucket.Symbol, use.Bucket.RealizeDate, use.Amount, use.Bucket.Remaining())
		}
	}
	for _, use := range a.uses {
		use.Bucket.Used = use.Bucket.Used.Add(use.Amount)
	}
	if a.newBucket != nil {
		t.buckets = append(t.buckets, a.newBucket)
	}
	return nil
}

// Buckets returns a copy of all buckets, including expired and exhausted
// ones, in creation order.
func (t *TaxEngine) Buckets() []TaxLossBucket {
	out := make([]TaxLossBucket, 0, len(t.buckets))
	for _, b := range t.buckets {
		out = append(out, *b)
	}
	return out
}

// Restore seeds the engine with previously persisted buckets, e.g. when a
// production partition continues across sessions.
func (t *TaxEngine) Restore(buckets []TaxLossBucket) {
	for i := range buckets {
		b := buckets[i]
		t.buckets = append(t.buckets, &b)
	}
}
