package models

import "testing"

func TestParseRegion(t *testing.T) {
	tests := []struct {
		input  string
		want   Region
		wantOK bool
	}{
		{input: "PAL", want: RegionPAL, wantOK: true},
		{input: "pal", want: RegionPAL, wantOK: true},
		{input: " EUR ", want: RegionPAL, wantOK: true},
		{input: "UK", want: RegionPAL, wantOK: true},
		{input: "NTSC-U", want: RegionNTSCU, wantOK: true},
		{input: "usa", want: RegionNTSCU, wantOK: true},
		{input: "NTSC-J", want: RegionNTSCJ, wantOK: true},
		{input: "jap", want: RegionNTSCJ, wantOK: true},
		{input: "japan", want: RegionNTSCJ, wantOK: true},
		{input: "", wantOK: false},
		{input: "SECAM", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRegion(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseRegion(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("ParseRegion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLanguage(t *testing.T) {
	if got := ParseLanguage("fr"); got != LanguageFR {
		t.Fatalf("ParseLanguage(fr) = %q, want %q", got, LanguageFR)
	}
	if got := ParseLanguage(""); got != LanguageAny {
		t.Fatalf("ParseLanguage(empty) = %q, want %q", got, LanguageAny)
	}
	if got := ParseLanguage("klingon"); got != LanguageAny {
		t.Fatalf("ParseLanguage(unknown) = %q, want %q", got, LanguageAny)
	}
}

func TestPriceQueryKeyParts(t *testing.T) {
	q := PriceQuery{
		Platform:  "SNES",
		Title:     "Super Mario World",
		Region:    RegionPAL,
		Language:  LanguageEN,
		Packaging: PackagingCIB,
	}
	first := q.KeyParts()
	second := q.KeyParts()
	if len(first) == 0 {
		t.Fatalf("KeyParts() returned no parts")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("KeyParts() not deterministic: %v vs %v", first, second)
		}
	}
}
