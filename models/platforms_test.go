package models

import "testing"

func TestNormalizePlatform(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "snes", want: "SNES"},
		{input: "Super Nintendo", want: "SNES"},
		{input: " ps1 ", want: "PlayStation"},
		{input: "megadrive", want: "Mega Drive"},
		{input: "Vectrex", want: "Vectrex"}, // unknown passes through
	}
	for _, tt := range tests {
		if got := NormalizePlatform(tt.input); got != tt.want {
			t.Fatalf("NormalizePlatform(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPlatformSearchKeywords(t *testing.T) {
	kw := PlatformSearchKeywords("SNES")
	if len(kw) < 2 {
		t.Fatalf("SNES keywords = %v, want aliases", kw)
	}

	kw = PlatformSearchKeywords("Vectrex")
	if len(kw) != 1 || kw[0] != "Vectrex" {
		t.Fatalf("unknown platform keywords = %v, want the name itself", kw)
	}

	if kw := PlatformSearchKeywords(""); kw != nil {
		t.Fatalf("empty platform keywords = %v, want nil", kw)
	}
}

func TestIsCartridgePlatform(t *testing.T) {
	if !IsCartridgePlatform("SNES") {
		t.Fatalf("SNES should be a cartridge platform")
	}
	if IsCartridgePlatform("PlayStation") {
		t.Fatalf("PlayStation should not be a cartridge platform")
	}
}
