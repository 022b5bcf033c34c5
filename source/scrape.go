package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/shopspring/decimal"

	"github.com/retrocellar/price-enricher/config"
	"github.com/retrocellar/price-enricher/models"
)

// ScrapeSource scrapes a PriceCharting-style catalog site. It needs no
// credentials and performs no native region filtering: its observations
// carry the region markers found on the matched game page and pass
// through the same filter ladder as any other source.
type ScrapeSource struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
}

// NewScrapeSource builds the scrape client.
func NewScrapeSource(cfg *config.Config) *ScrapeSource {
	return &ScrapeSource{
		baseURL:   "https://www.pricecharting.com",
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
	}
}

// WithBaseURL overrides the catalog host.
func (s *ScrapeSource) WithBaseURL(base string) *ScrapeSource {
	s.baseURL = base
	return s
}

// WithTransport installs a transport; tests pass an httpmock transport.
func (s *ScrapeSource) WithTransport(rt http.RoundTripper) *ScrapeSource {
	s.transport = rt
	return s
}

// Namespace implements PriceSource.
func (s *ScrapeSource) Namespace() string { return config.NamespaceScrape }

// candidate is one row of the search-results table.
type candidate struct {
	url        string
	title      string
	console    string
	titleScore float64
	score      float64
}

// priceGrid holds the per-packaging prices parsed off a game page, in
// the site's native USD.
type priceGrid struct {
	loose      decimal.Decimal
	cib        decimal.Decimal
	itemBox    decimal.Decimal
	itemManual decimal.Decimal
	boxOnly    decimal.Decimal
	manualOnly decimal.Decimal

	hasLoose, hasCIB, hasItemBox, hasItemManual, hasBoxOnly, hasManualOnly bool
}

// Query implements PriceSource: search, rank candidates, fetch the best
// game page, and turn its price grid into observations.
func (s *ScrapeSource) Query(ctx context.Context, query models.PriceQuery) ([]models.PriceObservation, error) {
	if query.Region == "" {
		return nil, ErrBadQuery{Err: fmt.Errorf("query without region")}
	}

	crawl := &scrapeCrawl{source: s, query: query}
	c, err := s.newCollector(ctx, crawl)
	if err != nil {
		return nil, err
	}

	if err := c.Visit(s.searchURL(query)); err != nil {
		return nil, s.classify(err, crawl.lastStatus)
	}
	c.Wait()
	if crawl.err != nil {
		return nil, crawl.err
	}

	// A search that redirected straight to a game page (exact match)
	// already produced the grid; otherwise follow the best candidate.
	if !crawl.parsed {
		best, ok := crawl.bestCandidate(query)
		if !ok {
			return nil, nil
		}
		crawl.matchedTitle = best.title
		crawl.matchedConsole = best.console
		if err := c.Visit(best.url); err != nil {
			return nil, s.classify(err, crawl.lastStatus)
		}
		c.Wait()
		if crawl.err != nil {
			return nil, crawl.err
		}
		if !crawl.parsed {
			return nil, nil
		}
	}

	return crawl.observations(), nil
}

func (s *ScrapeSource) newCollector(ctx context.Context, crawl *scrapeCrawl) (*colly.Collector, error) {
	parsed, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, ErrBadQuery{Err: fmt.Errorf("parse base url: %w", err)}
	}

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowedDomains(parsed.Host),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(s.timeout)
	if s.transport != nil {
		c.WithTransport(s.transport)
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		crawl.lastStatus = status
		crawl.err = s.classify(err, status)
	})

	// Search results: one row per product in the games table.
	c.OnHTML("table#games_table tr", func(e *colly.HTMLElement) {
		link := e.ChildAttr("td.title a", "href")
		if link == "" || !strings.Contains(link, "/game/") {
			return
		}
		crawl.candidates = append(crawl.candidates, candidate{
			url:     e.Request.AbsoluteURL(link),
			title:   strings.TrimSpace(e.ChildText("td.title a")),
			console: consoleSlugFromURL(link),
		})
	})

	// Game detail page: grab the displayed title and the full text for
	// the price grid. The grid renders as "Loose$18.61Complete$442.29…".
	c.OnHTML("h1#product_name", func(e *colly.HTMLElement) {
		if title := strings.TrimSpace(strings.Split(e.Text, "\n")[0]); title != "" {
			crawl.matchedTitle = title
		}
	})
	c.OnHTML("body", func(e *colly.HTMLElement) {
		if !strings.Contains(e.Request.URL.Path, "/game/") {
			return
		}
		crawl.grid = parsePriceGrid(e.Text)
		crawl.pageURL = e.Request.URL.String()
		if crawl.matchedConsole == "" {
			crawl.matchedConsole = consoleSlugFromURL(e.Request.URL.Path)
		}
		crawl.parsed = true
	})

	return c, nil
}

func (s *ScrapeSource) searchURL(query models.PriceQuery) string {
	terms := CleanTitle(query.Title) + " " + models.NormalizePlatform(query.Platform)
	if marker := regionSearchTerm(query.Region); marker != "" {
		terms += " " + marker
	}
	return s.baseURL + "/search-products?type=prices&q=" + url.QueryEscape(strings.TrimSpace(terms))
}

func (s *ScrapeSource) classify(err error, status int) error {
	if err == nil {
		return nil
	}
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return ErrRateLimited{Err: err}
	case http.StatusForbidden:
		return ErrUnavailable{Source: s.Namespace(), Err: err}
	}
	if IsTransient(err) {
		return ErrTimeout{Err: err}
	}
	return ErrUnavailable{Source: s.Namespace(), Err: err}
}

// regionSearchTerm maps the region onto the site's catalog wording.
// NTSC-U is the site's unmarked default.
func regionSearchTerm(region models.Region) string {
	switch region {
	case models.RegionPAL:
		return "PAL"
	case models.RegionNTSCJ:
		return "JP"
	default:
		return ""
	}
}

// consoleSlugFromURL pulls the console segment out of a /game/ URL,
// e.g. /game/pal-super-nintendo/super-mario-world -> pal-super-nintendo.
func consoleSlugFromURL(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if part == "game" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// regionFromConsoleSlug recovers the catalog's region from the console
// slug prefix.
func regionFromConsoleSlug(slug string) models.Region {
	switch {
	case strings.HasPrefix(slug, "pal-"):
		return models.RegionPAL
	case strings.HasPrefix(slug, "jp-"):
		return models.RegionNTSCJ
	default:
		return models.RegionNTSCU
	}
}

// scrapeCrawl accumulates state across the search and detail fetches of
// one query.
type scrapeCrawl struct {
	source *ScrapeSource
	query  models.PriceQuery

	candidates []candidate

	parsed         bool
	grid           priceGrid
	pageURL        string
	matchedTitle   string
	matchedConsole string

	lastStatus int
	err        error
}

// bestCandidate ranks search rows by title similarity (50%), region
// match (30%), and platform match (20%), mirroring how a human scans
// the results table.
func (cr *scrapeCrawl) bestCandidate(query models.PriceQuery) (candidate, bool) {
	canonical := models.NormalizePlatform(query.Platform)
	platformSlugs := make([]string, 0, 4)
	for _, alias := range append([]string{canonical}, models.PlatformSearchKeywords(canonical)...) {
		platformSlugs = append(platformSlugs, strings.ReplaceAll(strings.ToLower(alias), " ", "-"))
	}

	scored := make([]candidate, 0, len(cr.candidates))
	for _, cand := range cr.candidates {
		cand.titleScore = titleSimilarity(query.Title, cand.title)

		regionScore := 0.0
		switch candRegion := regionFromConsoleSlug(cand.console); {
		case candRegion == query.Region:
			regionScore = 1.0
		case query.Region == models.RegionPAL && candRegion == models.RegionNTSCU:
			// Unmarked NTSC-U listing is an acceptable last resort for
			// a PAL search.
			regionScore = 0.3
		}

		platformScore := 0.0
		slug := strings.TrimPrefix(strings.TrimPrefix(cand.console, "pal-"), "jp-")
		for _, alias := range platformSlugs {
			if slug == alias || strings.Contains(slug, alias) || strings.Contains(alias, slug) {
				platformScore = 1.0
				break
			}
		}

		cand.score = cand.titleScore*0.5 + regionScore*0.3 + platformScore*0.2
		scored = append(scored, cand)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].titleScore > scored[j].titleScore
	})

	if len(scored) == 0 || scored[0].titleScore < 0.3 {
		return candidate{}, false
	}
	return scored[0], true
}

// observations turns the parsed grid into the single observation that
// prices the query's packaging, titled so the shared region and
// packaging filters can judge it like any listing. The grid quotes
// every packaging tier of the same game, so averaging across tiers
// would mix loose and boxed values; selection keeps the one that
// matches.
func (cr *scrapeCrawl) observations() []models.PriceObservation {
	amount, label, ok := cr.grid.priceFor(cr.query.Packaging)
	if !ok {
		return nil
	}

	region := regionFromConsoleSlug(cr.matchedConsole)
	title := cr.matchedTitle
	if title == "" {
		title = cr.query.Title
	}

	return []models.PriceObservation{{
		Amount:          amount,
		Currency:        "USD",
		Timestamp:       time.Now().UTC(),
		ListedTitle:     fmt.Sprintf("%s [%s, %s] %s", title, consoleDisplay(cr.matchedConsole), regionMarker(region), label),
		ListedCondition: label,
		URL:             cr.pageURL,
		Source:          cr.source.Namespace(),
		HasAmount:       true,
	}}
}

// priceFor selects the grid row for a packaging state. A CIB item
// without a direct CIB quote is priced from its components the way a
// buyer would assemble it; a loose item without a loose quote has no
// usable price.
func (g priceGrid) priceFor(packaging models.PackagingState) (decimal.Decimal, string, bool) {
	switch packaging {
	case models.PackagingCIB:
		switch {
		case g.hasCIB:
			return g.cib, "Complete CIB", true
		case g.hasLoose && g.hasBoxOnly && g.hasManualOnly:
			return g.loose.Add(g.boxOnly).Add(g.manualOnly), "Complete CIB calculated", true
		case g.hasItemBox && g.hasManualOnly:
			return g.itemBox.Add(g.manualOnly), "Complete CIB calculated", true
		}
	case models.PackagingLoose:
		if g.hasLoose {
			return g.loose, "Loose", true
		}
	}
	return decimal.Decimal{}, "", false
}

func consoleDisplay(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}

func regionMarker(region models.Region) string {
	switch region {
	case models.RegionPAL:
		return "PAL European"
	case models.RegionNTSCJ:
		return "NTSC-J Japan"
	default:
		return "NTSC USA"
	}
}

// The grid renders labels glued to dollar amounts and to the preceding
// cell's digits, so the patterns anchor on the bare label text; word
// boundaries would miss "18.61Complete$44.29". "Graded Complete" must
// not match the CIB pattern.
var gridPatterns = []struct {
	re    *regexp.Regexp
	apply func(*priceGrid, decimal.Decimal)
}{
	{regexp.MustCompile(`Loose\$([\d,]+\.?\d*)`), func(g *priceGrid, d decimal.Decimal) { g.loose, g.hasLoose = d, true }},
	{regexp.MustCompile(`Complete\$([\d,]+\.?\d*)`), func(g *priceGrid, d decimal.Decimal) { g.cib, g.hasCIB = d, true }},
	{regexp.MustCompile(`Item & Box\$([\d,]+\.?\d*)`), func(g *priceGrid, d decimal.Decimal) { g.itemBox, g.hasItemBox = d, true }},
	{regexp.MustCompile(`Item & Manual\$([\d,]+\.?\d*)`), func(g *priceGrid, d decimal.Decimal) { g.itemManual, g.hasItemManual = d, true }},
	{regexp.MustCompile(`Box Only\$([\d,]+\.?\d*)`), func(g *priceGrid, d decimal.Decimal) { g.boxOnly, g.hasBoxOnly = d, true }},
	{regexp.MustCompile(`Manual Only\$([\d,]+\.?\d*)`), func(g *priceGrid, d decimal.Decimal) { g.manualOnly, g.hasManualOnly = d, true }},
}

// maxSanePrice guards against parsing artifacts; nothing in a
// collection batch is worth this much.
var maxSanePrice = decimal.NewFromInt(50000)

func parsePriceGrid(text string) priceGrid {
	var grid priceGrid
	for i, pattern := range gridPatterns {
		for _, loc := range pattern.re.FindAllStringSubmatchIndex(text, -1) {
			// Skip "Graded Complete" quotes: those price sealed
			// collector copies, not playable games.
			if i == 1 && strings.HasSuffix(text[:loc[0]], "Graded ") {
				continue
			}
			raw := strings.ReplaceAll(text[loc[2]:loc[3]], ",", "")
			amount, err := decimal.NewFromString(raw)
			if err != nil || amount.GreaterThan(maxSanePrice) {
				continue
			}
			pattern.apply(&grid, amount)
			break
		}
	}
	return grid
}
