package source

import (
	"regexp"
	"strings"

	"github.com/retrocellar/price-enricher/models"
)

var (
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	editionSuffixRe = regexp.MustCompile(`(?i)\s*(Edition|Version|Release)\s*$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// CleanTitle strips parenthetical metadata, edition suffixes, and
// trademark glyphs that hurt search recall.
func CleanTitle(title string) string {
	title = parentheticalRe.ReplaceAllString(title, " ")
	title = editionSuffixRe.ReplaceAllString(title, "")
	title = strings.NewReplacer("™", "", "®", "", `"`, "").Replace(title)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(title, " "))
}

var regionQueryKeywords = map[models.Region][]string{
	models.RegionPAL:   {"PAL"},
	models.RegionNTSCU: {"NTSC", "USA"},
	models.RegionNTSCJ: {"NTSC-J", "Japan"},
}

var regionNegativeKeywords = map[models.Region][]string{
	models.RegionPAL:   {"NTSC-U", "NTSC-J", "NTSCU", "NTSCJ", "JAP", "Japan", "Japanese", "USA"},
	models.RegionNTSCU: {"PAL", "JAP", "Japan", "Japanese", "NTSC-J", "NTSCJ"},
	models.RegionNTSCJ: {"PAL", "USA", "NTSC-U", "NTSCU"},
}

var languageQueryKeywords = map[models.Language][]string{
	models.LanguageEN: {"English"},
	models.LanguageFR: {"French", "Français"},
	models.LanguageDE: {"German", "Deutsch"},
	models.LanguageIT: {"Italian", "Italiano"},
	models.LanguageES: {"Spanish", "Español"},
}

func packagingQueryKeywords(query models.PriceQuery) []string {
	switch query.Packaging {
	case models.PackagingCIB:
		return []string{"CIB", "complete", "boxed"}
	case models.PackagingLoose:
		if models.IsCartridgePlatform(query.Platform) {
			return []string{"cartridge", "cart", "loose"}
		}
		return []string{"disc", "loose"}
	default:
		return nil
	}
}

// buildSearchKeywords assembles the positive query string: cleaned
// title plus OR-groups for platform aliases, region markers, packaging
// markers, and a preferred language.
func buildSearchKeywords(query models.PriceQuery) string {
	parts := []string{CleanTitle(query.Title)}

	if kw := models.PlatformSearchKeywords(models.NormalizePlatform(query.Platform)); len(kw) > 0 {
		parts = append(parts, orGroup(kw))
	}
	if kw := regionQueryKeywords[query.Region]; len(kw) > 0 {
		parts = append(parts, orGroup(kw))
	}
	if kw := packagingQueryKeywords(query); len(kw) > 0 {
		parts = append(parts, orGroup(kw))
	}
	if kw := languageQueryKeywords[query.Language]; len(kw) > 0 {
		parts = append(parts, orGroup(kw))
	}
	return strings.Join(parts, " ")
}

// buildNegativeKeywords assembles the excluded terms: wrong regions
// always, lots and accessory-only listings unless allowed.
func buildNegativeKeywords(query models.PriceQuery) []string {
	negatives := append([]string(nil), regionNegativeKeywords[query.Region]...)

	if !query.AllowLots {
		negatives = append(negatives, "lot", "bundle", "joblot")
	}
	if !query.AllowBoxOnly {
		negatives = append(negatives, "box only", "case only", "manual only", "empty box")
	}
	return negatives
}

// titleSimilarity is the Jaccard overlap of the cleaned titles' word
// sets, 0 to 1.
func titleSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(title string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(CleanTitle(title))) {
		tokens[strings.Trim(field, ".,:;!?'\"()[]")] = true
	}
	delete(tokens, "")
	return tokens
}

func orGroup(keywords []string) string {
	if len(keywords) == 1 {
		return keywords[0]
	}
	return "(" + strings.Join(keywords, " OR ") + ")"
}
