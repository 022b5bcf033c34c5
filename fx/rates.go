package fx

import (
	"strings"

	"github.com/shopspring/decimal"
)

// fallbackRates are static EUR rates used when the live feed and its
// cache are both unavailable. Values are periodically refreshed by
// hand; staleness is acceptable for a resale estimate.
var fallbackRates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromFloat(1.0),
	"USD": decimal.NewFromFloat(0.92),
	"GBP": decimal.NewFromFloat(1.17),
	"JPY": decimal.NewFromFloat(0.0061),
	"CHF": decimal.NewFromFloat(1.05),
	"CAD": decimal.NewFromFloat(0.68),
	"AUD": decimal.NewFromFloat(0.60),
	"SEK": decimal.NewFromFloat(0.087),
	"NOK": decimal.NewFromFloat(0.084),
	"DKK": decimal.NewFromFloat(0.13),
	"PLN": decimal.NewFromFloat(0.23),
	"CZK": decimal.NewFromFloat(0.040),
}

var currencySymbols = map[string]string{
	"$":         "USD",
	"US$":       "USD",
	"US DOLLAR": "USD",
	"DOLLAR":    "USD",
	"£":         "GBP",
	"POUND":     "GBP",
	"€":         "EUR",
	"EURO":      "EUR",
	"¥":         "JPY",
	"YEN":       "JPY",
}

// NormalizeCurrency maps symbols and common names onto ISO codes;
// anything unrecognized passes through upper-cased.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if iso, ok := currencySymbols[code]; ok {
		return iso
	}
	return code
}
