// Package fx converts source-native amounts to EUR using a cached live
// rate with a static fallback table. Conversion never fails for a known
// currency: a stale or fallback rate always beats having no estimate.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retrocellar/price-enricher/cache"
	"github.com/retrocellar/price-enricher/config"
	"github.com/retrocellar/price-enricher/retry"
)

// Free EUR-base endpoints tried in order; both return {"rates": {...}}.
var defaultEndpoints = []string{
	"https://api.exchangerate.host/latest?base=EUR",
	"https://open.er-api.com/v6/latest/EUR",
}

// Converter resolves rates once per run through the cache store and
// rounds converted amounts to 2 decimal places, half-up.
type Converter struct {
	store     cache.Store
	client    *http.Client
	ttl       time.Duration
	policy    retry.Policy
	endpoints []string

	mu       sync.Mutex
	rates    map[string]decimal.Decimal // currency -> EUR per unit
	fallback bool
	loaded   bool
}

// NewConverter builds a converter over the given cache store.
func NewConverter(store cache.Store, cfg *config.Config) *Converter {
	return &Converter{
		store:  store,
		client: &http.Client{Timeout: cfg.Timeout},
		ttl:    cfg.TTLFX,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			Backoff:     cfg.RetryBackoff,
			BackoffMax:  cfg.RetryBackoffMax,
			Jitter:      true,
		},
		endpoints: defaultEndpoints,
	}
}

// WithClient swaps the HTTP client; tests install a mock transport here.
func (c *Converter) WithClient(client *http.Client) *Converter {
	c.client = client
	return c
}

// WithEndpoints overrides the rate endpoints.
func (c *Converter) WithEndpoints(endpoints []string) *Converter {
	c.endpoints = endpoints
	return c
}

// ToEUR converts an amount to EUR, returning the rate used and whether
// it came from the fallback table. The only error is an unknown
// currency; rate-fetch failures are absorbed by the fallback.
func (c *Converter) ToEUR(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, decimal.Decimal, bool, error) {
	code := NormalizeCurrency(currency)
	if code == "EUR" {
		return amount.Round(2), decimal.NewFromInt(1), false, nil
	}

	rates, usedFallback := c.ensureRates(ctx)
	rate, ok := rates[code]
	if !ok {
		// A currency the live feed does not carry may still have a
		// fallback rate.
		rate, ok = fallbackRates[code]
		usedFallback = true
	}
	if !ok {
		return decimal.Zero, decimal.Zero, usedFallback, fmt.Errorf("fx: unknown currency %q", currency)
	}

	return amount.Mul(rate).Round(2), rate, usedFallback, nil
}

// ensureRates loads the rate table once: cache store first, then a live
// fetch, then the static fallback. Never returns an error.
func (c *Converter) ensureRates(ctx context.Context) (map[string]decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.rates, c.fallback
	}

	payload, err := c.store.GetOrCompute(ctx, config.NamespaceFX, []string{"type=rates", "base=EUR"}, c.ttl, c.fetchRates)
	if err == nil {
		var raw map[string]string
		if err = json.Unmarshal(payload, &raw); err == nil {
			rates := make(map[string]decimal.Decimal, len(raw))
			for code, value := range raw {
				if rate, derr := decimal.NewFromString(value); derr == nil {
					rates[code] = rate
				}
			}
			if len(rates) > 0 {
				c.rates, c.fallback, c.loaded = rates, false, true
				return c.rates, c.fallback
			}
			err = fmt.Errorf("fx: empty rate table")
		}
	}

	slog.Warn("fx rate fetch failed, using fallback table", slog.Any("error", err))
	c.rates, c.fallback, c.loaded = fallbackRates, true, true
	return c.rates, c.fallback
}

// fetchRates tries each endpoint through the retry wrapper and returns
// the inverted (currency -> EUR) table serialized for the cache.
func (c *Converter) fetchRates(ctx context.Context) ([]byte, error) {
	var lastErr error
	for _, endpoint := range c.endpoints {
		var body []byte
		err := c.policy.Do(ctx, "fx fetch", func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Permanent(err)
			}
			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("fetch rates: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch rates: status %d", resp.StatusCode)
			}
			body, err = io.ReadAll(resp.Body)
			return err
		})
		if err != nil {
			lastErr = err
			continue
		}

		rates, err := parseRates(body)
		if err != nil {
			lastErr = err
			continue
		}
		return json.Marshal(rates)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("fx: no endpoints configured")
	}
	return nil, lastErr
}

// parseRates inverts an EUR-base response (1 EUR = X units) into
// currency -> EUR rates, serialized as strings to keep precision.
func parseRates(body []byte) (map[string]string, error) {
	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("fx: decode rates: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("fx: response carried no rates")
	}

	rates := map[string]string{"EUR": "1"}
	for code, perEUR := range payload.Rates {
		if perEUR <= 0 {
			continue
		}
		inverted := decimal.NewFromInt(1).Div(decimal.NewFromFloat(perEUR))
		rates[code] = inverted.String()
	}
	return rates, nil
}
