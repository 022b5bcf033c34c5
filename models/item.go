// Package models defines the data model for one pricing run: catalog
// items, queries, price observations, and the estimates derived from
// them.
package models

// PackagingState describes how complete a physical game item is.
type PackagingState string

const (
	PackagingCIB   PackagingState = "CIB"
	PackagingLoose PackagingState = "Loose"
	PackagingSkip  PackagingState = "Skip"
)

// CatalogItem is one row of the collection being priced. It is immutable
// input to a single pricing run; enrichment results are reported
// separately, never written back into it.
type CatalogItem struct {
	Platform      string
	Title         string
	ConditionText string
	Rarity        string

	HasBox    bool
	HasManual bool
	HasInsert bool
	HasGame   bool

	// Region is empty when the catalog row carried none; the driver
	// decides between the configured default and a RegionRequired
	// failure.
	Region Region

	PreferredLanguage Language

	// RowIndex preserves input order when writing results.
	RowIndex int
}

// ClassifyPackaging maps component flags to a packaging state.
// CIB needs game+box+manual; a game missing either is Loose; no game is
// Skip unless the caller opts in, in which case the accessory bundle is
// priced as Loose.
func ClassifyPackaging(hasGame, hasBox, hasManual, includeNonGame bool) PackagingState {
	if !hasGame {
		if includeNonGame {
			return PackagingLoose
		}
		return PackagingSkip
	}
	if hasBox && hasManual {
		return PackagingCIB
	}
	return PackagingLoose
}

// Packaging classifies the item with non-game items skipped.
func (it CatalogItem) Packaging() PackagingState {
	return ClassifyPackaging(it.HasGame, it.HasBox, it.HasManual, false)
}
