package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/retrocellar/price-enricher/cache"
	"github.com/retrocellar/price-enricher/catalog"
	"github.com/retrocellar/price-enricher/config"
	"github.com/retrocellar/price-enricher/fx"
	"github.com/retrocellar/price-enricher/models"
	"github.com/retrocellar/price-enricher/pricing"
	"github.com/retrocellar/price-enricher/report"
)

func main() {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "enricher",
		Usage: "estimate resale prices for a game catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
			&cli.StringFlag{Name: "cache-dsn", Usage: "Postgres DSN for the persistent cache", EnvVars: []string{"ENRICHER_CACHE_DSN"}},
		},
		Commands: []*cli.Command{
			enrichCommand(),
			cacheCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func enrichCommand() *cli.Command {
	defaults := config.DefaultConfig()
	return &cli.Command{
		Name:  "enrich",
		Usage: "price every item in a catalog CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "catalog CSV path"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: defaults.OutputFile, Usage: "output file path"},
			&cli.StringFlag{Name: "format", Value: defaults.OutputFormat, Usage: "output format: csv, json, or dual"},
			&cli.StringFlag{Name: "source", Value: defaults.OnlySource, Usage: "price source: auction, scrape, or both"},
			&cli.StringFlag{Name: "region", Value: string(defaults.DefaultRegion), Usage: "default region for rows without one (PAL, NTSC-U, NTSC-J)"},
			&cli.BoolFlag{Name: "region-strict", Usage: "fail rows without a region instead of applying the default"},
			&cli.StringFlag{Name: "language", Value: string(defaults.PreferredLanguage), Usage: "preferred listing language"},
			&cli.BoolFlag{Name: "strict-language", Usage: "exclude other-language listings at the strict step"},
			&cli.Float64Flag{Name: "weight-auction", Value: defaults.WeightAuction, Usage: "auction source weight"},
			&cli.Float64Flag{Name: "weight-scrape", Value: defaults.WeightScrape, Usage: "scrape source weight"},
			&cli.BoolFlag{Name: "include-shipping", Usage: "add shipping cost to observed prices"},
			&cli.BoolFlag{Name: "allow-lots", Usage: "keep multi-item lot listings"},
			&cli.BoolFlag{Name: "allow-box-only", Usage: "keep box-only and manual-only listings"},
			&cli.BoolFlag{Name: "include-non-game", Usage: "price rows without a game component as loose"},
			&cli.IntFlag{Name: "min-results", Value: defaults.MinResults, Usage: "kept-listing threshold before relaxing filters"},
			&cli.IntFlag{Name: "limit", Usage: "stop after N catalog rows (0 = all)"},
			&cli.BoolFlag{Name: "trace", Usage: "print the calculation trace per item"},
			&cli.StringFlag{Name: "ebay-app-id", Usage: "auction source credential", EnvVars: []string{"ENRICHER_EBAY_APP_ID"}},
		},
		Action: runEnrich,
	}
}

func runEnrich(c *cli.Context) error {
	logger := newLogger(c.Bool("verbose"))
	slog.SetDefault(logger)

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	items, err := catalog.ReadFile(cfg.InputFile)
	if err != nil {
		return err
	}
	if cfg.Limit > 0 && len(items) > cfg.Limit {
		items = items[:cfg.Limit]
	}
	if len(items) == 0 {
		return fmt.Errorf("catalog %q has no rows", cfg.InputFile)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	writer, err := report.New(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return err
	}

	metrics := pricing.NewMetrics()
	engine, err := pricing.NewEngine(cfg, store, fx.NewConverter(store, cfg), logger, pricing.WithMetrics(metrics))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	result, runErr := engine.EnrichBatch(ctx, items)

	if err := writer.Write(result.Estimates); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	if c.Bool("trace") {
		for _, est := range result.Estimates {
			fmt.Println(est.Trace)
		}
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile)
	return runErr
}

func buildConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()

	cfg.InputFile = c.String("input")
	cfg.OutputFile = c.String("output")
	cfg.OutputFormat = strings.ToLower(c.String("format"))
	cfg.OnlySource = strings.ToLower(c.String("source"))
	cfg.RegionRelaxed = !c.Bool("region-strict")
	cfg.StrictLanguage = c.Bool("strict-language")
	cfg.WeightAuction = c.Float64("weight-auction")
	cfg.WeightScrape = c.Float64("weight-scrape")
	cfg.IncludeShipping = c.Bool("include-shipping")
	cfg.AllowLots = c.Bool("allow-lots")
	cfg.AllowBoxOnly = c.Bool("allow-box-only")
	cfg.IncludeNonGame = c.Bool("include-non-game")
	cfg.MinResults = c.Int("min-results")
	cfg.Limit = c.Int("limit")
	cfg.Verbose = c.Bool("verbose")
	cfg.AuctionAppID = c.String("ebay-app-id")
	cfg.CacheDSN = c.String("cache-dsn")

	if value := c.String("region"); value != "" {
		region, ok := models.ParseRegion(value)
		if !ok {
			return nil, fmt.Errorf("unknown region %q", value)
		}
		cfg.DefaultRegion = region
	}
	cfg.PreferredLanguage = models.ParseLanguage(c.String("language"))

	// Tuning knobs without flags read from the environment.
	if value, ok := config.EnvString("ENRICHER_USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok, err := config.EnvInt("ENRICHER_AUCTION_DELAY_MS"); err != nil {
		return nil, err
	} else if ok {
		cfg.AuctionDelay = time.Duration(value) * time.Millisecond
	}
	if value, ok, err := config.EnvInt("ENRICHER_SCRAPE_DELAY_MS"); err != nil {
		return nil, err
	} else if ok {
		cfg.ScrapeDelay = time.Duration(value) * time.Millisecond
	}
	if value, ok, err := config.EnvInt("ENRICHER_MAX_RETRIES"); err != nil {
		return nil, err
	} else if ok {
		cfg.MaxRetries = value
	}
	if value, ok, err := config.EnvBool("ENRICHER_INCLUDE_SHIPPING"); err != nil {
		return nil, err
	} else if ok {
		cfg.IncludeShipping = value
	}

	return cfg, nil
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "inspect and clear the price cache",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "remove cached entries, optionally per namespace",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "namespace", Usage: "clear one namespace (auction, scrape, fx)"},
				},
				Action: runCacheClear,
			},
			{
				Name:   "stats",
				Usage:  "print entry counts per namespace",
				Action: runCacheStats,
			},
		},
	}
}

func runCacheClear(c *cli.Context) error {
	store, err := openAdminStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	var removed int
	if namespace := c.String("namespace"); namespace != "" {
		removed, err = store.ClearNamespace(c.Context, namespace)
	} else {
		removed, err = store.Clear(c.Context)
	}
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Printf("removed %d entries\n", removed)
	return nil
}

func runCacheStats(c *cli.Context) error {
	store, err := openAdminStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(c.Context)
	if err != nil {
		return fmt.Errorf("reading cache stats: %w", err)
	}
	if len(stats) == 0 {
		fmt.Println("cache is empty")
		return nil
	}

	namespaces := make([]string, 0, len(stats))
	for namespace := range stats {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)
	for _, namespace := range namespaces {
		s := stats[namespace]
		fmt.Printf("%-10s entries=%-6d oldest=%s newest=%s\n",
			namespace, s.Entries,
			s.Oldest.Format(time.RFC3339), s.Newest.Format(time.RFC3339))
	}
	return nil
}

// openAdminStore requires the persistent store; the in-memory cache
// has nothing to administer across runs.
func openAdminStore(c *cli.Context) (cache.Store, error) {
	dsn := c.String("cache-dsn")
	if dsn == "" {
		return nil, fmt.Errorf("cache administration needs --cache-dsn or ENRICHER_CACHE_DSN")
	}
	return cache.NewSQLStore(dsn)
}

func openStore(cfg *config.Config, logger *slog.Logger) (cache.Store, error) {
	if cfg.CacheDSN == "" {
		logger.Warn("no cache DSN configured, caching in memory for this run only")
		return cache.NewMemoryStore(), nil
	}
	store, err := cache.NewSQLStore(cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	return store, nil
}

func printSummary(result pricing.BatchResult, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Enrichment complete")
	fmt.Printf("  Run ID:       %s\n", result.RunID)
	fmt.Printf("  Items:        %d\n", len(result.Estimates))
	fmt.Printf("  Estimated:    %d\n", result.Estimated)
	fmt.Printf("  Skipped:      %d\n", result.Skipped)
	fmt.Printf("  Duration:     %v\n", duration)
	fmt.Printf("  Output file:  %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
