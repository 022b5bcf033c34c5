package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is one raw data point returned by a price source:
// a sold listing or a catalog price row, in the source's native
// currency, before any filtering.
type PriceObservation struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`

	// ListedTitle and ListedCondition are the listing's own words; the
	// region/language/packaging filter matches against ListedTitle.
	ListedTitle     string `json:"listed_title"`
	ListedCondition string `json:"listed_condition,omitempty"`

	URL       string          `json:"url,omitempty"`
	Source    string          `json:"source"`
	Shipping  decimal.Decimal `json:"shipping"`
	HasAmount bool            `json:"has_amount"`
}

// SourceEstimate aggregates the kept observations of one source into a
// single EUR figure.
type SourceEstimate struct {
	Source           string
	AmountEUR        decimal.Decimal
	SampleCount      int
	Strategy         Strategy
	UsedFallbackRate bool
}

// SkipReason codes the distinct non-estimate outcomes of one item.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipNoGame           SkipReason = "no-game"
	SkipRegionRequired   SkipReason = "region-required"
	SkipInsufficientData SkipReason = "insufficient-data"
)

// FinalEstimate is the output of one orchestrator run over one item:
// either a weighted EUR amount with its trace, or a skip reason.
type FinalEstimate struct {
	Item CatalogItem

	AmountEUR decimal.Decimal
	HasAmount bool
	Reason    SkipReason

	// Sources lists the per-source estimates that contributed, with the
	// effective weight applied to each.
	Sources []WeightedSource

	Trace string
}

// WeightedSource records one source's contribution to the combination.
type WeightedSource struct {
	Estimate SourceEstimate
	Weight   float64
}
