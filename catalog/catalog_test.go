package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retrocellar/price-enricher/models"
)

const sampleCSV = `platform,title,condition,rarity,has_box,has_manual,has_insert,has_game,region,language
SNES,Super Mario World,Good,Common,Y,Y,N,Y,PAL,EN
snes,Donkey Kong Country,,Rare,n,n,,y,EUR,
PS1,Final Fantasy VII,Mint,,yes,no,no,,USA,fr
`

func TestRead(t *testing.T) {
	items, err := Read(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	first := items[0]
	if first.Platform != "SNES" || first.Title != "Super Mario World" {
		t.Fatalf("first item = %+v", first)
	}
	if !first.HasBox || !first.HasManual || first.HasInsert || !first.HasGame {
		t.Fatalf("first item flags = %+v", first)
	}
	if first.Region != models.RegionPAL {
		t.Fatalf("first region = %q, want PAL", first.Region)
	}
	if first.PreferredLanguage != models.LanguageEN {
		t.Fatalf("first language = %q, want EN", first.PreferredLanguage)
	}
	if first.RowIndex != 2 {
		t.Fatalf("first row index = %d, want 2", first.RowIndex)
	}

	second := items[1]
	if second.Region != models.RegionPAL {
		t.Fatalf("EUR alias parsed as %q, want PAL", second.Region)
	}
	if second.HasBox || second.HasManual {
		t.Fatalf("lowercase n should read false: %+v", second)
	}
	if !second.HasGame {
		t.Fatalf("lowercase y should read true")
	}

	third := items[2]
	if third.Region != models.RegionNTSCU {
		t.Fatalf("USA alias parsed as %q, want NTSC-U", third.Region)
	}
	// has_game left empty defaults to true.
	if !third.HasGame {
		t.Fatalf("empty has_game should default to true")
	}
	if third.PreferredLanguage != models.LanguageFR {
		t.Fatalf("third language = %q, want FR", third.PreferredLanguage)
	}
}

func TestReadHeaderCaseInsensitive(t *testing.T) {
	csv := "Platform, Title ,REGION\nSNES,Super Mario World,PAL\n"
	items, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(items) != 1 || items[0].Region != models.RegionPAL {
		t.Fatalf("items = %+v", items)
	}
}

func TestReadMissingRequiredColumn(t *testing.T) {
	if _, err := Read(strings.NewReader("title,region\nZelda,PAL\n")); err == nil {
		t.Fatalf("Read() without a platform column should fail")
	}
}

func TestReadRejectsRowWithoutTitle(t *testing.T) {
	csv := "platform,title\nSNES,Super Mario World\nSNES,\n"
	_, err := Read(strings.NewReader(csv))
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("Read() error = %v, want a row error", err)
	}
	if rowErr.Row != 3 {
		t.Fatalf("row = %d, want 3", rowErr.Row)
	}
}

func TestReadUnknownRegionLeftEmpty(t *testing.T) {
	csv := "platform,title,region\nSNES,Super Mario World,SECAM\n"
	items, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if items[0].Region != "" {
		t.Fatalf("unknown region parsed as %q, want empty", items[0].Region)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	items, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("ReadFile() on a missing file should fail")
	}
}
