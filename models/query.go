package models

import "fmt"

// Strategy names the relaxation step that produced a kept observation
// set.
type Strategy string

const (
	StrategyStrict           Strategy = "strict"
	StrategyRelaxedLanguage  Strategy = "relaxed-language"
	StrategyRelaxedPackaging Strategy = "relaxed-packaging"
	StrategyNone             Strategy = "none"
)

// PriceQuery is the value object handed to a price source. Together with
// the source namespace its fields define the cache-key fingerprint, so
// two items that resolve to the same query share one network call.
type PriceQuery struct {
	Platform  string
	Title     string
	Region    Region
	Language  Language
	Packaging PackagingState

	AllowLots    bool
	AllowBoxOnly bool
}

// KeyParts returns the normalized fields that identify this query in the
// cache. Order is fixed; the cache layer hashes them together with the
// source namespace.
func (q PriceQuery) KeyParts() []string {
	return []string{
		"platform=" + q.Platform,
		"title=" + q.Title,
		"region=" + string(q.Region),
		"language=" + string(q.Language),
		"packaging=" + string(q.Packaging),
		fmt.Sprintf("lots=%t", q.AllowLots),
		fmt.Sprintf("boxonly=%t", q.AllowBoxOnly),
	}
}
