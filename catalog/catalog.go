// Package catalog reads the inventory CSV into catalog items the
// pricing engine can work on.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/retrocellar/price-enricher/models"
)

// Canonical column names. Header matching is case-insensitive and
// ignores surrounding whitespace; unknown columns are preserved but
// unused.
const (
	colPlatform  = "platform"
	colTitle     = "title"
	colCondition = "condition"
	colRarity    = "rarity"
	colBox       = "has_box"
	colManual    = "has_manual"
	colInsert    = "has_insert"
	colGame      = "has_game"
	colRegion    = "region"
	colLanguage  = "language"
)

// RowError reports a row that could not be turned into a catalog item.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadFile loads a catalog CSV from disk.
func ReadFile(path string) ([]models.CatalogItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %q: %w", path, err)
	}
	defer f.Close()
	items, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	return items, nil
}

// Read parses catalog rows from r. The first record is the header and
// must include at least the platform and title columns. Rows missing a
// title are rejected; unparseable booleans and regions fall back to
// safe defaults (false, no region).
func Read(r io.Reader) ([]models.CatalogItem, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colPlatform, colTitle} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("header missing required column %q", required)
		}
	}

	var items []models.CatalogItem
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &RowError{Row: row + 1, Err: err}
		}
		row++

		item, err := buildItem(record, index, row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func buildItem(record []string, index map[string]int, row int) (models.CatalogItem, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	title := field(colTitle)
	if title == "" {
		return models.CatalogItem{}, &RowError{Row: row, Err: fmt.Errorf("missing title")}
	}

	item := models.CatalogItem{
		Platform:      field(colPlatform),
		Title:         title,
		ConditionText: field(colCondition),
		Rarity:        field(colRarity),
		HasBox:        parseFlag(field(colBox)),
		HasManual:     parseFlag(field(colManual)),
		HasInsert:     parseFlag(field(colInsert)),
		HasGame:       parseFlagDefault(field(colGame), true),
		RowIndex:      row,
	}
	if region, ok := models.ParseRegion(field(colRegion)); ok {
		item.Region = region
	}
	item.PreferredLanguage = models.ParseLanguage(field(colLanguage))
	return item, nil
}

// parseFlag normalizes the Y/N style booleans the catalog uses. Empty
// and unrecognized values read as false.
func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "yes", "true", "1", "x", "oui":
		return true
	default:
		return false
	}
}

// parseFlagDefault is parseFlag with a fallback for the empty string.
// The game flag defaults to true because most rows are games and older
// exports omit the column.
func parseFlagDefault(value string, empty bool) bool {
	if strings.TrimSpace(value) == "" {
		return empty
	}
	return parseFlag(value)
}
