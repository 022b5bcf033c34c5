// Package config holds run configuration for the price enricher.
package config

import (
	"fmt"
	"time"

	"github.com/retrocellar/price-enricher/models"
)

// Source selection values for Config.OnlySource.
const (
	SourceAuction = "auction"
	SourceScrape  = "scrape"
	SourceBoth    = "both"
)

// Cache namespaces. Each namespace carries its own TTL policy: auction
// prices move fastest, catalog-scrape prices are stable for a week, FX
// rates are good for a day.
const (
	NamespaceAuction = "auction"
	NamespaceScrape  = "scrape"
	NamespaceFX      = "fx"
)

// Config holds one batch run's configuration.
type Config struct {
	// Region policy. DefaultRegion fills items whose catalog row has no
	// region, but only when RegionRelaxed is true; otherwise such items
	// fail with a region-required outcome.
	DefaultRegion models.Region
	RegionRelaxed bool

	// Source selection and combination weights. The weights need not
	// sum to 1; the combiner divides by the sum of the weights of the
	// sources that actually produced data.
	OnlySource    string
	WeightAuction float64
	WeightScrape  float64

	// Language preference. StrictLanguage excludes other-language
	// listings at the strict ladder step.
	PreferredLanguage models.Language
	StrictLanguage    bool

	// Listing filters.
	IncludeShipping bool
	AllowLots       bool
	AllowBoxOnly    bool
	IncludeNonGame  bool

	// MinResults is the kept-observation threshold below which the
	// relaxation ladder advances to the next step.
	MinResults int

	// AuctionAppID is the auction source credential. When empty and
	// OnlySource is "both", the run degrades to scrape-only.
	AuctionAppID string

	// Politeness delays between consecutive network-bound queries,
	// applied by the batch driver per source.
	AuctionDelay time.Duration
	ScrapeDelay  time.Duration

	// Retry policy shared by both sources and the FX fetch.
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	// Network.
	Timeout   time.Duration
	UserAgent string

	// CacheDSN selects the Postgres-backed store; empty keeps the cache
	// in memory for the run.
	CacheDSN   string
	TTLAuction time.Duration
	TTLScrape  time.Duration
	TTLFX      time.Duration

	// Input/output.
	InputFile    string
	OutputFile   string
	OutputFormat string // csv, json, or dual
	Limit        int

	Verbose bool
}

// DefaultConfig returns the policy defaults of the original tool.
func DefaultConfig() *Config {
	return &Config{
		DefaultRegion:     models.RegionPAL,
		RegionRelaxed:     true,
		OnlySource:        SourceBoth,
		WeightAuction:     0.7,
		WeightScrape:      0.3,
		PreferredLanguage: models.LanguageAny,
		MinResults:        5,
		AuctionDelay:      1500 * time.Millisecond,
		ScrapeDelay:       12 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      2 * time.Second,
		RetryBackoffMax:   10 * time.Second,
		Timeout:           30 * time.Second,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		TTLAuction:        72 * time.Hour,
		TTLScrape:         168 * time.Hour,
		TTLFX:             24 * time.Hour,
		OutputFile:        "output/estimates.csv",
		OutputFormat:      "csv",
	}
}

// TTLFor returns the configured TTL for a cache namespace.
func (c *Config) TTLFor(namespace string) time.Duration {
	switch namespace {
	case NamespaceAuction:
		return c.TTLAuction
	case NamespaceScrape:
		return c.TTLScrape
	case NamespaceFX:
		return c.TTLFX
	default:
		return c.TTLScrape
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	switch c.DefaultRegion {
	case models.RegionPAL, models.RegionNTSCU, models.RegionNTSCJ:
	case "":
		if c.RegionRelaxed {
			return fmt.Errorf("region-relaxed requires a usable default region")
		}
	default:
		return fmt.Errorf("unknown default region %q", c.DefaultRegion)
	}

	if c.OnlySource != SourceAuction && c.OnlySource != SourceScrape && c.OnlySource != SourceBoth {
		return fmt.Errorf("source must be %s, %s, or %s", SourceAuction, SourceScrape, SourceBoth)
	}
	if c.WeightAuction < 0 || c.WeightScrape < 0 {
		return fmt.Errorf("source weights cannot be negative")
	}
	if c.WeightAuction+c.WeightScrape == 0 {
		return fmt.Errorf("at least one source weight must be positive")
	}
	if c.MinResults <= 0 {
		return fmt.Errorf("min results must be positive")
	}
	if c.AuctionDelay < 0 || c.ScrapeDelay < 0 {
		return fmt.Errorf("source delays cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.TTLAuction <= 0 || c.TTLScrape <= 0 || c.TTLFX <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	return nil
}

// EnabledSources resolves OnlySource against the available credentials:
// "both" degrades to scrape-only when no auction app ID is configured.
// The second return reports whether that degradation happened.
func (c *Config) EnabledSources() ([]string, bool) {
	switch c.OnlySource {
	case SourceAuction:
		return []string{NamespaceAuction}, false
	case SourceScrape:
		return []string{NamespaceScrape}, false
	default:
		if c.AuctionAppID == "" {
			return []string{NamespaceScrape}, true
		}
		return []string{NamespaceAuction, NamespaceScrape}, false
	}
}
