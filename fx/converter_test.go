package fx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"

	"github.com/retrocellar/price-enricher/cache"
	"github.com/retrocellar/price-enricher/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 1
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func mockedConverter(t *testing.T) (*Converter, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := &http.Client{Transport: transport}
	c := NewConverter(cache.NewMemoryStore(), testConfig()).WithClient(client)
	return c, transport
}

func TestToEUREuroIdentity(t *testing.T) {
	c, _ := mockedConverter(t)

	eur, rate, fallback, err := c.ToEUR(context.Background(), decimal.NewFromFloat(12.345), "EUR")
	if err != nil {
		t.Fatalf("ToEUR() error: %v", err)
	}
	if fallback {
		t.Fatalf("EUR identity should not touch the rate table")
	}
	if eur.String() != "12.35" {
		t.Fatalf("ToEUR() = %s, want 12.35", eur)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("rate = %s, want 1", rate)
	}
}

func TestToEURUsesLiveRates(t *testing.T) {
	c, transport := mockedConverter(t)
	transport.RegisterResponder(http.MethodGet, "https://api.exchangerate.host/latest",
		httpmock.NewStringResponder(200, `{"rates": {"USD": 1.25, "GBP": 0.8}}`))

	eur, _, fallback, err := c.ToEUR(context.Background(), decimal.NewFromInt(10), "USD")
	if err != nil {
		t.Fatalf("ToEUR() error: %v", err)
	}
	if fallback {
		t.Fatalf("live fetch succeeded but fallback reported")
	}
	// 1 EUR = 1.25 USD, so 10 USD = 8 EUR.
	if eur.String() != "8" && eur.String() != "8.00" {
		t.Fatalf("ToEUR(10 USD) = %s, want 8.00", eur)
	}

	eur, _, _, err = c.ToEUR(context.Background(), decimal.NewFromInt(8), "GBP")
	if err != nil {
		t.Fatalf("ToEUR() error: %v", err)
	}
	if eur.String() != "10" && eur.String() != "10.00" {
		t.Fatalf("ToEUR(8 GBP) = %s, want 10.00", eur)
	}
}

// An EUR amount pushed out to a foreign currency at the stored rate and
// converted back must land within a cent, whatever the rate's
// magnitude.
func TestToEURRoundTripWithinOneCent(t *testing.T) {
	c, transport := mockedConverter(t)
	transport.RegisterResponder(http.MethodGet, "https://api.exchangerate.host/latest",
		httpmock.NewStringResponder(200, `{"rates": {"USD": 1.0843, "GBP": 0.8571, "JPY": 163.2}}`))

	tests := []struct {
		eur      string
		currency string
	}{
		{"123.45", "USD"},
		{"0.99", "USD"},
		{"19.99", "GBP"},
		{"30.51", "JPY"},
	}

	tolerance := decimal.NewFromFloat(0.01)
	for _, tt := range tests {
		t.Run(tt.currency+" "+tt.eur, func(t *testing.T) {
			start, _ := decimal.NewFromString(tt.eur)

			_, rate, _, err := c.ToEUR(context.Background(), decimal.NewFromInt(1), tt.currency)
			if err != nil {
				t.Fatalf("ToEUR() error: %v", err)
			}
			foreign := start.Div(rate).Round(2)

			back, _, _, err := c.ToEUR(context.Background(), foreign, tt.currency)
			if err != nil {
				t.Fatalf("ToEUR() error: %v", err)
			}
			if back.Sub(start).Abs().GreaterThan(tolerance) {
				t.Fatalf("round trip %s EUR -> %s %s -> %s EUR, drift over 0.01", start, foreign, tt.currency, back)
			}
		})
	}
}

func TestToEURFallbackWhenFeedsDown(t *testing.T) {
	c, transport := mockedConverter(t)
	transport.RegisterNoResponder(httpmock.NewStringResponder(503, "unavailable"))

	eur, rate, fallback, err := c.ToEUR(context.Background(), decimal.NewFromInt(100), "USD")
	if err != nil {
		t.Fatalf("ToEUR() error: %v", err)
	}
	if !fallback {
		t.Fatalf("fallback not reported with feeds down")
	}
	if !rate.Equal(decimal.NewFromFloat(0.92)) {
		t.Fatalf("rate = %s, want 0.92", rate)
	}
	if eur.String() != "92" && eur.String() != "92.00" {
		t.Fatalf("ToEUR(100 USD) = %s, want 92.00", eur)
	}
}

func TestToEURSecondEndpointAfterFirstFails(t *testing.T) {
	c, transport := mockedConverter(t)
	transport.RegisterResponder(http.MethodGet, "https://api.exchangerate.host/latest",
		httpmock.NewStringResponder(500, "boom"))
	transport.RegisterResponder(http.MethodGet, "https://open.er-api.com/v6/latest/EUR",
		httpmock.NewStringResponder(200, `{"rates": {"USD": 2.0}}`))

	eur, _, fallback, err := c.ToEUR(context.Background(), decimal.NewFromInt(10), "USD")
	if err != nil {
		t.Fatalf("ToEUR() error: %v", err)
	}
	if fallback {
		t.Fatalf("second endpoint succeeded but fallback reported")
	}
	if eur.String() != "5" && eur.String() != "5.00" {
		t.Fatalf("ToEUR(10 USD) = %s, want 5.00", eur)
	}
}

func TestToEURUnknownCurrency(t *testing.T) {
	c, transport := mockedConverter(t)
	transport.RegisterNoResponder(httpmock.NewStringResponder(503, "unavailable"))

	if _, _, _, err := c.ToEUR(context.Background(), decimal.NewFromInt(1), "XAU"); err == nil {
		t.Fatalf("ToEUR() with unknown currency should fail")
	}
}

func TestToEURCachesRateTable(t *testing.T) {
	store := cache.NewMemoryStore()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://api.exchangerate.host/latest",
		httpmock.NewStringResponder(200, `{"rates": {"USD": 1.25}}`))
	client := &http.Client{Transport: transport}

	first := NewConverter(store, testConfig()).WithClient(client)
	if _, _, _, err := first.ToEUR(context.Background(), decimal.NewFromInt(10), "USD"); err != nil {
		t.Fatalf("ToEUR() error: %v", err)
	}

	// A second converter over the same store must not hit the network.
	dead := httpmock.NewMockTransport()
	dead.RegisterNoResponder(httpmock.NewStringResponder(503, "down"))
	second := NewConverter(store, testConfig()).WithClient(&http.Client{Transport: dead})

	eur, _, fallback, err := second.ToEUR(context.Background(), decimal.NewFromInt(10), "USD")
	if err != nil {
		t.Fatalf("ToEUR() from cache error: %v", err)
	}
	if fallback {
		t.Fatalf("cached rates reported as fallback")
	}
	if eur.String() != "8" && eur.String() != "8.00" {
		t.Fatalf("ToEUR(10 USD) from cache = %s, want 8.00", eur)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "$", want: "USD"},
		{input: "US$", want: "USD"},
		{input: "£", want: "GBP"},
		{input: "€", want: "EUR"},
		{input: "¥", want: "JPY"},
		{input: "usd", want: "USD"},
		{input: " gbp ", want: "GBP"},
		{input: "CHF", want: "CHF"},
	}
	for _, tt := range tests {
		if got := NormalizeCurrency(tt.input); got != tt.want {
			t.Fatalf("NormalizeCurrency(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
