// Package filter keeps the price observations relevant to a query:
// region, language, and packaging keyword checks with a progressive
// relaxation ladder. Region is never relaxed.
package filter

import (
	"strings"

	"github.com/retrocellar/price-enricher/models"
)

// Regions map to include and exclude marker sets. An observation is
// kept only when its listed title matches at least one include marker
// and none of the exclude markers, case-insensitive substring.
var regionInclude = map[models.Region][]string{
	models.RegionPAL:   {"pal", "eur", "european", "europe", "uk version"},
	models.RegionNTSCU: {"ntsc", "usa", "us version", "north america", "american"},
	models.RegionNTSCJ: {"ntsc-j", "japan", "japanese", "jap"},
}

// Short markers are matched as whole words; "jp" as a substring would
// hit "jpeg".
var regionIncludeWords = map[models.Region][]string{
	models.RegionNTSCJ: {"jp"},
}

var regionExclude = map[models.Region][]string{
	models.RegionPAL:   {"ntsc-u", "ntsc-j", "ntscu", "ntscj", "usa", "japan", "japanese", "jap"},
	models.RegionNTSCU: {"pal", "ntsc-j", "ntscj", "japan", "japanese", "jap"},
	models.RegionNTSCJ: {"pal", "usa", "ntsc-u", "ntscu", "us version"},
}

// Language markers are matched as whole words: the two-letter codes
// would otherwise hit random substrings ("en" in "adventure").
var languageWords = map[models.Language][]string{
	models.LanguageEN: {"english"},
	models.LanguageFR: {"french", "français", "francais"},
	models.LanguageDE: {"german", "deutsch"},
	models.LanguageIT: {"italian", "italiano"},
	models.LanguageES: {"spanish", "español", "espanol"},
}

var cibMarkers = []string{"cib", "complete", "boxed", "with box"}

// A listing marked for the opposite packaging is rejected even when it
// also carries a matching marker ("SNES cart CIB complete" is not a
// loose cart).
var cibExclude = []string{"cib", "complete in box"}

var looseExclude = []string{"loose", "cartridge only", "disc only", "game only"}

func looseMarkers(platform string) []string {
	if models.IsCartridgePlatform(platform) {
		return []string{"cartridge", "cart only", "loose", "game only", "cart"}
	}
	return []string{"disc", "loose", "game only", "disc only"}
}

var lotMarkers = []string{"lot of", "bundle", "job lot", "bulk", " x ", "collection of", "set of"}

var boxOnlyMarkers = []string{
	"box only", "case only", "manual only", "empty box",
	"replacement case", "no game", "no cartridge", "no disc",
	"artwork only", "cover only",
}

// Options tunes the ladder.
type Options struct {
	// MinResults is the kept-count threshold below which the ladder
	// advances to the next step.
	MinResults int
	// StrictLanguage enables the language filter at the strict step
	// when the query carries a preferred language.
	StrictLanguage bool
	AllowLots      bool
	AllowBoxOnly   bool
}

// step is one rung of the relaxation ladder: a strategy label plus the
// filters still active at that rung. Region is absent on purpose: it
// applies at every rung.
type step struct {
	strategy  models.Strategy
	language  bool
	packaging bool
}

var ladder = []step{
	{strategy: models.StrategyStrict, language: true, packaging: true},
	{strategy: models.StrategyRelaxedLanguage, language: false, packaging: true},
	{strategy: models.StrategyRelaxedPackaging, language: false, packaging: false},
}

// Apply runs the ladder over raw observations and returns the kept set
// together with the strategy that produced it. The ladder stops at the
// first rung whose kept count reaches Options.MinResults; when it
// exhausts, the final rung's remainder is returned, possibly empty.
func Apply(observations []models.PriceObservation, query models.PriceQuery, opts Options) ([]models.PriceObservation, models.Strategy) {
	if opts.MinResults <= 0 {
		opts.MinResults = 1
	}

	var (
		kept     []models.PriceObservation
		strategy = models.StrategyNone
	)
	for _, rung := range ladder {
		kept = applyStep(observations, query, opts, rung)
		strategy = rung.strategy
		if len(kept) >= opts.MinResults {
			return kept, strategy
		}
	}
	return kept, strategy
}

func applyStep(observations []models.PriceObservation, query models.PriceQuery, opts Options, rung step) []models.PriceObservation {
	langWords := languageWords[query.Language]
	useLanguage := rung.language && opts.StrictLanguage && len(langWords) > 0

	var kept []models.PriceObservation
	for _, obs := range observations {
		title := strings.ToLower(obs.ListedTitle)

		if !MatchesRegion(title, query.Region) {
			continue
		}
		if !opts.AllowLots && containsAny(title, lotMarkers) {
			continue
		}
		if !opts.AllowBoxOnly && containsAny(title, boxOnlyMarkers) {
			continue
		}
		if useLanguage && mentionsOtherLanguage(title, query.Language) {
			continue
		}
		if rung.packaging && !matchesPackaging(title, query) {
			continue
		}
		kept = append(kept, obs)
	}
	return kept
}

// MatchesRegion reports whether a lowercased listing title passes the
// region gate: at least one include marker and no exclude marker.
func MatchesRegion(lowerTitle string, region models.Region) bool {
	include, ok := regionInclude[region]
	if !ok {
		return false
	}
	if !containsAny(lowerTitle, include) && !containsAnyWord(lowerTitle, regionIncludeWords[region]) {
		return false
	}
	return !containsAny(lowerTitle, regionExclude[region])
}

func matchesPackaging(lowerTitle string, query models.PriceQuery) bool {
	switch query.Packaging {
	case models.PackagingCIB:
		return containsAny(lowerTitle, cibMarkers) && !containsAny(lowerTitle, looseExclude)
	case models.PackagingLoose:
		return containsAny(lowerTitle, looseMarkers(query.Platform)) && !containsAny(lowerTitle, cibExclude)
	default:
		return true
	}
}

// mentionsOtherLanguage reports whether the title names a language
// other than the preferred one.
func mentionsOtherLanguage(lowerTitle string, preferred models.Language) bool {
	for lang, words := range languageWords {
		if lang == preferred {
			continue
		}
		for _, word := range words {
			if containsWord(lowerTitle, word) {
				return true
			}
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func containsAnyWord(haystack string, needles []string) bool {
	for _, needle := range needles {
		if containsWord(haystack, needle) {
			return true
		}
	}
	return false
}

// containsWord matches needle bounded by non-letters.
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], needle)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(needle)
		beforeOK := start == 0 || !isLetter(haystack[start-1])
		afterOK := end == len(haystack) || !isLetter(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
