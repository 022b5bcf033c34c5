package models

import "strings"

// Region is the video/cartridge standard an item was released for.
// It is the mandatory pricing axis: every query sent to a region-aware
// source carries one.
type Region string

const (
	RegionPAL   Region = "PAL"
	RegionNTSCU Region = "NTSC-U"
	RegionNTSCJ Region = "NTSC-J"
)

// ParseRegion maps free-form catalog values onto a Region. The second
// return reports whether the input named a region at all; callers decide
// whether a missing region defaults or fails.
func ParseRegion(value string) (Region, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PAL", "EUR", "EUROPE", "EUROPEAN", "UK":
		return RegionPAL, true
	case "NTSC-U", "NTSC-U/C", "NTSCU", "NTSC_U", "USA", "US", "NA", "NORTH AMERICA":
		return RegionNTSCU, true
	case "NTSC-J", "NTSCJ", "NTSC_J", "JAP", "JAPAN", "JP", "JAPANESE":
		return RegionNTSCJ, true
	}
	return "", false
}

// Language is the preferred language for game variants.
type Language string

const (
	LanguageAny Language = "ANY"
	LanguageEN  Language = "EN"
	LanguageFR  Language = "FR"
	LanguageDE  Language = "DE"
	LanguageIT  Language = "IT"
	LanguageES  Language = "ES"
)

// ParseLanguage maps a config value onto a Language, defaulting to ANY.
func ParseLanguage(value string) Language {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "EN":
		return LanguageEN
	case "FR":
		return LanguageFR
	case "DE":
		return LanguageDE
	case "IT":
		return LanguageIT
	case "ES":
		return LanguageES
	default:
		return LanguageAny
	}
}
