package models

import "strings"

// platformNames maps free-form catalog platform values to their
// canonical names. Lookup is lowercase.
var platformNames = map[string]string{
	"nes":              "NES",
	"famicom":          "Famicom",
	"snes":             "SNES",
	"super nintendo":   "SNES",
	"super nes":        "SNES",
	"super famicom":    "Super Famicom",
	"n64":              "Nintendo 64",
	"nintendo 64":      "Nintendo 64",
	"gamecube":         "GameCube",
	"gc":               "GameCube",
	"wii":              "Wii",
	"wii u":            "Wii U",
	"switch":           "Nintendo Switch",
	"nintendo switch":  "Nintendo Switch",
	"game boy":         "Game Boy",
	"gameboy":          "Game Boy",
	"gb":               "Game Boy",
	"game boy color":   "Game Boy Color",
	"gbc":              "Game Boy Color",
	"game boy advance": "Game Boy Advance",
	"gba":              "Game Boy Advance",
	"ds":               "Nintendo DS",
	"nintendo ds":      "Nintendo DS",
	"3ds":              "Nintendo 3DS",
	"master system":    "Master System",
	"sms":              "Master System",
	"mega drive":       "Mega Drive",
	"megadrive":        "Mega Drive",
	"genesis":          "Genesis",
	"sega genesis":     "Genesis",
	"saturn":           "Sega Saturn",
	"sega saturn":      "Sega Saturn",
	"dreamcast":        "Dreamcast",
	"game gear":        "Game Gear",
	"playstation":      "PlayStation",
	"ps1":              "PlayStation",
	"psx":              "PlayStation",
	"playstation 2":    "PlayStation 2",
	"ps2":              "PlayStation 2",
	"playstation 3":    "PlayStation 3",
	"ps3":              "PlayStation 3",
	"psp":              "PSP",
	"ps vita":          "PS Vita",
	"xbox":             "Xbox",
	"xbox 360":         "Xbox 360",
	"neo geo":          "Neo Geo",
	"pc engine":        "PC Engine",
	"turbografx":       "TurboGrafx-16",
	"atari 2600":       "Atari 2600",
	"atari jaguar":     "Atari Jaguar",
	"3do":              "3DO",
}

// platformSearchKeywords widens a platform into the aliases sellers use
// in listing titles.
var platformSearchKeywords = map[string][]string{
	"NES":              {"NES", "Nintendo Entertainment System"},
	"Famicom":          {"Famicom", "FC"},
	"SNES":             {"SNES", "Super Nintendo", "Super NES"},
	"Super Famicom":    {"Super Famicom", "SFC"},
	"Nintendo 64":      {"N64", "Nintendo 64"},
	"GameCube":         {"GameCube", "NGC"},
	"Wii":              {"Wii", "Nintendo Wii"},
	"Game Boy":         {"Game Boy", "GameBoy", "GB"},
	"Game Boy Color":   {"Game Boy Color", "GBC"},
	"Game Boy Advance": {"Game Boy Advance", "GBA"},
	"Nintendo DS":      {"DS", "Nintendo DS", "NDS"},
	"Nintendo 3DS":     {"3DS", "Nintendo 3DS"},
	"Master System":    {"Master System", "SMS"},
	"Mega Drive":       {"Mega Drive", "Megadrive"},
	"Genesis":          {"Genesis", "Sega Genesis"},
	"Sega Saturn":      {"Saturn", "Sega Saturn"},
	"Dreamcast":        {"Dreamcast", "DC"},
	"Game Gear":        {"Game Gear", "GG"},
	"PlayStation":      {"PlayStation", "PS1", "PSX"},
	"PlayStation 2":    {"PlayStation 2", "PS2"},
	"PlayStation 3":    {"PlayStation 3", "PS3"},
	"PSP":              {"PSP", "PlayStation Portable"},
	"PS Vita":          {"PS Vita", "Vita"},
	"Xbox":             {"Xbox", "Original Xbox"},
	"Xbox 360":         {"Xbox 360", "X360"},
}

// cartridgePlatforms hold games on carts; anything else listed in
// discPlatforms ships on optical media. The split drives Loose search
// keywords ("cartridge" vs "disc").
var cartridgePlatforms = map[string]bool{
	"NES": true, "Famicom": true, "SNES": true, "Super Famicom": true,
	"Nintendo 64": true, "Game Boy": true, "Game Boy Color": true,
	"Game Boy Advance": true, "Nintendo DS": true, "Nintendo 3DS": true,
	"Master System": true, "Mega Drive": true, "Genesis": true,
	"Game Gear": true, "Atari 2600": true, "Atari Jaguar": true,
	"Neo Geo": true, "PC Engine": true, "TurboGrafx-16": true,
}

// NormalizePlatform canonicalizes a catalog platform value. Unknown
// platforms pass through trimmed rather than failing the row.
func NormalizePlatform(platform string) string {
	key := strings.ToLower(strings.TrimSpace(platform))
	if canonical, ok := platformNames[key]; ok {
		return canonical
	}
	return strings.TrimSpace(platform)
}

// PlatformSearchKeywords returns the listing-title aliases for a
// canonical platform, falling back to the platform name itself.
func PlatformSearchKeywords(platform string) []string {
	if kw, ok := platformSearchKeywords[platform]; ok {
		return kw
	}
	if platform == "" {
		return nil
	}
	return []string{platform}
}

// IsCartridgePlatform reports whether the platform's games ship on
// cartridges.
func IsCartridgePlatform(platform string) bool {
	return cartridgePlatforms[platform]
}
