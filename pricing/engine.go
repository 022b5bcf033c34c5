// Package pricing holds the orchestrator: it turns one catalog item
// into a final EUR estimate by fanning a structured query out to the
// enabled price sources through the cache, filtering the raw
// observations, converting to EUR and combining the per-source means
// with configured weights.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retrocellar/price-enricher/cache"
	"github.com/retrocellar/price-enricher/config"
	"github.com/retrocellar/price-enricher/filter"
	"github.com/retrocellar/price-enricher/fx"
	"github.com/retrocellar/price-enricher/models"
	"github.com/retrocellar/price-enricher/retry"
	"github.com/retrocellar/price-enricher/source"
)

// Engine coordinates sources, cache, filter and converter for a run.
// It is not safe for concurrent use; the batch driver is sequential on
// purpose to keep the per-source politeness delays meaningful.
type Engine struct {
	cfg       *config.Config
	store     cache.Store
	converter *fx.Converter
	logger    *slog.Logger
	metrics   *Metrics

	sources map[string]source.QueryFunc
	order   []string

	// degraded records that "both" fell back to scrape-only because the
	// auction credential is missing. Noted in every trace.
	degraded bool

	// disabled holds sources turned off mid-run after an auth failure,
	// keyed by namespace with the reason.
	disabled map[string]string

	lastQuery map[string]time.Time
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option adjusts an Engine at construction time.
type Option func(*Engine)

// WithSources replaces the default source set. Keys are cache
// namespaces; values are already-wrapped query functions.
func WithSources(sources map[string]source.QueryFunc, order []string) Option {
	return func(e *Engine) {
		e.sources = sources
		e.order = order
	}
}

// WithMetrics attaches a metrics bundle.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source and sleeper.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.now = now
		e.sleep = sleep
	}
}

// NewEngine builds an engine from the config. Without WithSources the
// enabled sources are constructed from the config; a "both" run without
// an auction credential degrades to scrape-only.
func NewEngine(cfg *config.Config, store cache.Store, converter *fx.Converter, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:       cfg,
		store:     store,
		converter: converter,
		logger:    logger,
		disabled:  make(map[string]string),
		lastQuery: make(map[string]time.Time),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sources == nil {
		if err := e.buildSources(); err != nil {
			return nil, err
		}
	}
	if len(e.sources) == 0 {
		return nil, errors.New("no price sources enabled")
	}
	return e, nil
}

func (e *Engine) buildSources() error {
	enabled, degraded := e.cfg.EnabledSources()
	e.degraded = degraded
	if degraded {
		e.logger.Warn("auction credential missing, degrading to scrape only")
	}

	policy := retry.Policy{
		MaxAttempts: e.cfg.MaxRetries,
		Backoff:     e.cfg.RetryBackoff,
		BackoffMax:  e.cfg.RetryBackoffMax,
		Jitter:      true,
	}

	e.sources = make(map[string]source.QueryFunc, len(enabled))
	for _, namespace := range enabled {
		switch namespace {
		case config.NamespaceAuction:
			src, err := source.NewAuctionSource(e.cfg)
			if err != nil {
				return fmt.Errorf("building auction source: %w", err)
			}
			e.sources[namespace] = source.Wrap(src, policy)
		case config.NamespaceScrape:
			e.sources[namespace] = source.Wrap(source.NewScrapeSource(e.cfg), policy)
		default:
			return fmt.Errorf("unknown source %q", namespace)
		}
		e.order = append(e.order, namespace)
	}
	return nil
}

// EnrichItem prices one catalog item. It never returns an error: every
// failure mode becomes a FinalEstimate with a skip reason and a trace
// explaining what happened.
func (e *Engine) EnrichItem(ctx context.Context, item models.CatalogItem) models.FinalEstimate {
	started := e.now()
	estimate := e.enrich(ctx, item)
	e.metrics.ObserveItemDuration(e.now().Sub(started))

	outcome := "estimated"
	if !estimate.HasAmount {
		outcome = string(estimate.Reason)
	}
	e.metrics.IncItem(outcome)
	return estimate
}

func (e *Engine) enrich(ctx context.Context, item models.CatalogItem) models.FinalEstimate {
	region, ok := e.resolveRegion(item)
	packaging := models.ClassifyPackaging(item.HasGame, item.HasBox, item.HasManual, e.cfg.IncludeNonGame)

	trace := newTrace(item, region, packaging)
	if e.degraded {
		trace.note("auction credential missing; scrape source only")
	}

	if !ok {
		trace.note("no region on the catalog row and region relaxation is off")
		trace.note("skipped: %s", reasonText(models.SkipRegionRequired))
		return models.FinalEstimate{Item: item, Reason: models.SkipRegionRequired, Trace: trace.String()}
	}
	if packaging == models.PackagingSkip {
		trace.note("skipped: %s", reasonText(models.SkipNoGame))
		return models.FinalEstimate{Item: item, Reason: models.SkipNoGame, Trace: trace.String()}
	}

	language := item.PreferredLanguage
	if language == "" || language == models.LanguageAny {
		language = e.cfg.PreferredLanguage
	}
	query := models.PriceQuery{
		Platform:     models.NormalizePlatform(item.Platform),
		Title:        item.Title,
		Region:       region,
		Language:     language,
		Packaging:    packaging,
		AllowLots:    e.cfg.AllowLots,
		AllowBoxOnly: e.cfg.AllowBoxOnly,
	}

	estimates := e.querySources(ctx, query, trace)
	return e.combine(item, estimates, trace)
}

// resolveRegion returns the effective region for the item. The default
// region substitutes a missing one only when relaxation is enabled.
func (e *Engine) resolveRegion(item models.CatalogItem) (models.Region, bool) {
	if item.Region != "" {
		return item.Region, true
	}
	if e.cfg.RegionRelaxed && e.cfg.DefaultRegion != "" {
		return e.cfg.DefaultRegion, true
	}
	return "", false
}

func (e *Engine) querySources(ctx context.Context, query models.PriceQuery, trace *traceBuilder) []models.SourceEstimate {
	var estimates []models.SourceEstimate
	for _, namespace := range e.order {
		trace.sourceHeader(namespace)
		if reason, off := e.disabled[namespace]; off {
			trace.note("source disabled for this run: %s", reason)
			continue
		}

		observations, err := e.fetchObservations(ctx, namespace, query)
		if err != nil {
			e.metrics.IncSourceQuery(namespace, source.ErrorLabel(err))
			trace.note("query failed: %v", err)
			var authErr source.ErrAuth
			if errors.As(err, &authErr) {
				e.disabled[namespace] = err.Error()
				e.logger.Warn("disabling source after auth failure", "source", namespace, "error", err)
			} else {
				e.logger.Warn("source query failed", "source", namespace, "error", err)
			}
			continue
		}
		e.metrics.IncSourceQuery(namespace, "ok")
		trace.note("fetched %d observations", len(observations))

		kept, strategy := filter.Apply(observations, query, filter.Options{
			MinResults:     e.minResults(namespace),
			StrictLanguage: e.cfg.StrictLanguage,
			AllowLots:      e.cfg.AllowLots,
			AllowBoxOnly:   e.cfg.AllowBoxOnly,
		})
		if len(kept) == 0 {
			trace.note("no observations survived filtering")
			continue
		}
		trace.note("kept %d after filtering (strategy %s)", len(kept), strategy)

		est, ok := e.aggregate(ctx, namespace, strategy, kept, trace)
		if !ok {
			continue
		}
		trace.sourceSummary(est, e.cfg.IncludeShipping)
		trace.observations(kept)
		estimates = append(estimates, est)
	}
	return estimates
}

// minResults returns the kept-count threshold for one source. The
// catalog scrape answers with a single packaging-matched quote, so the
// sample-size threshold only applies to auction listings; without this
// the ladder would always exhaust past the strict rung on scrape data.
func (e *Engine) minResults(namespace string) int {
	if namespace == config.NamespaceScrape {
		return 1
	}
	return e.cfg.MinResults
}

// fetchObservations answers the query through the read-through cache.
// The compute path enforces the per-source politeness delay before
// touching the network.
func (e *Engine) fetchObservations(ctx context.Context, namespace string, query models.PriceQuery) ([]models.PriceObservation, error) {
	computed := false
	payload, err := e.store.GetOrCompute(ctx, namespace, query.KeyParts(), e.cfg.TTLFor(namespace), func(ctx context.Context) ([]byte, error) {
		computed = true
		if err := e.politeWait(ctx, namespace); err != nil {
			return nil, err
		}
		observations, err := e.sources[namespace](ctx, query)
		if err != nil {
			return nil, err
		}
		return json.Marshal(observations)
	})
	if err != nil {
		if computed {
			e.metrics.IncCacheRequest(namespace, "miss")
		}
		return nil, err
	}

	result := "hit"
	if computed {
		result = "miss"
	}
	e.metrics.IncCacheRequest(namespace, result)

	var observations []models.PriceObservation
	if err := json.Unmarshal(payload, &observations); err != nil {
		return nil, fmt.Errorf("decoding cached observations: %w", err)
	}
	return observations, nil
}

func (e *Engine) politeWait(ctx context.Context, namespace string) error {
	delay := e.cfg.ScrapeDelay
	if namespace == config.NamespaceAuction {
		delay = e.cfg.AuctionDelay
	}
	if last, ok := e.lastQuery[namespace]; ok {
		if wait := delay - e.now().Sub(last); wait > 0 {
			if err := e.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	e.lastQuery[namespace] = e.now()
	return nil
}

// aggregate averages the kept observations in EUR. Observations whose
// currency is unknown are dropped with a trace note rather than
// poisoning the mean.
func (e *Engine) aggregate(ctx context.Context, namespace string, strategy models.Strategy, kept []models.PriceObservation, trace *traceBuilder) (models.SourceEstimate, bool) {
	sum := decimal.Zero
	count := 0
	usedFallback := false
	for _, obs := range kept {
		amount := obs.Amount
		if e.cfg.IncludeShipping {
			amount = amount.Add(obs.Shipping)
		}
		eur, _, fallback, err := e.converter.ToEUR(ctx, amount, obs.Currency)
		if err != nil {
			trace.note("dropped observation with unknown currency %q", obs.Currency)
			continue
		}
		if fallback {
			usedFallback = true
			e.metrics.IncFallbackRate()
		}
		sum = sum.Add(eur)
		count++
	}
	if count == 0 {
		trace.note("no observations with a convertible currency")
		return models.SourceEstimate{}, false
	}
	mean := sum.Div(decimal.NewFromInt(int64(count))).Round(2)
	return models.SourceEstimate{
		Source:           namespace,
		AmountEUR:        mean,
		SampleCount:      count,
		Strategy:         strategy,
		UsedFallbackRate: usedFallback,
	}, true
}

// combine folds the per-source estimates into the final figure using
// the configured weights, normalized over the sources that actually
// produced data.
func (e *Engine) combine(item models.CatalogItem, estimates []models.SourceEstimate, trace *traceBuilder) models.FinalEstimate {
	if len(estimates) == 0 {
		final := models.FinalEstimate{Item: item, Reason: models.SkipInsufficientData}
		trace.final(final)
		final.Trace = trace.String()
		return final
	}

	weightedSum := decimal.Zero
	weightSum := decimal.Zero
	sources := make([]models.WeightedSource, 0, len(estimates))
	for _, est := range estimates {
		weight := e.weightFor(est.Source)
		wd := decimal.NewFromFloat(weight)
		weightedSum = weightedSum.Add(est.AmountEUR.Mul(wd))
		weightSum = weightSum.Add(wd)
		sources = append(sources, models.WeightedSource{Estimate: est, Weight: weight})
	}
	if weightSum.IsZero() {
		// Only zero-weight sources produced data. Fall back to an
		// unweighted mean rather than dividing by zero.
		for i := range sources {
			sources[i].Weight = 1
			weightedSum = weightedSum.Add(sources[i].Estimate.AmountEUR)
			weightSum = weightSum.Add(decimal.NewFromInt(1))
		}
	}

	final := models.FinalEstimate{
		Item:      item,
		AmountEUR: weightedSum.Div(weightSum).Round(2),
		HasAmount: true,
		Sources:   sources,
	}
	trace.final(final)
	final.Trace = trace.String()
	return final
}

func (e *Engine) weightFor(namespace string) float64 {
	if namespace == config.NamespaceAuction {
		return e.cfg.WeightAuction
	}
	return e.cfg.WeightScrape
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
