package source

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/retrocellar/price-enricher/config"
	"github.com/retrocellar/price-enricher/models"
)

const searchResultsPage = `<html><body>
<table id="games_table">
  <tr><th>Title</th><th>Price</th></tr>
  <tr>
    <td class="title"><a href="/game/pal-super-nintendo/super-mario-world">Super Mario World</a></td>
    <td>$40</td>
  </tr>
  <tr>
    <td class="title"><a href="/game/super-nintendo/super-mario-world">Super Mario World</a></td>
    <td>$35</td>
  </tr>
  <tr>
    <td class="title"><a href="/game/pal-super-nintendo/super-mario-kart">Super Mario Kart</a></td>
    <td>$30</td>
  </tr>
</table>
</body></html>`

const gamePage = `<html><body>
<h1 id="product_name">Super Mario World
<a href="/console/pal-super-nintendo">PAL Super Nintendo</a></h1>
<table id="price_data">
<tr><td>Loose$18.61</td><td>Complete$44.29</td><td>Graded Complete$1,200.00</td></tr>
<tr><td>Box Only$12.00</td><td>Manual Only$8.50</td></tr>
</table>
</body></html>`

func mockedScrapeSource(t *testing.T) *ScrapeSource {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, `=~^https://www\.pricecharting\.com/search-products`,
		httpmock.NewStringResponder(200, searchResultsPage).HeaderSet(http.Header{"Content-Type": []string{"text/html"}}))
	transport.RegisterResponder(http.MethodGet, "https://www.pricecharting.com/game/pal-super-nintendo/super-mario-world",
		httpmock.NewStringResponder(200, gamePage).HeaderSet(http.Header{"Content-Type": []string{"text/html"}}))
	return NewScrapeSource(config.DefaultConfig()).WithTransport(transport)
}

func TestScrapeQueryFollowsBestCandidate(t *testing.T) {
	src := mockedScrapeSource(t)

	observations, err := src.Query(context.Background(), palQuery())
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("Query() returned %d observations, want the single CIB quote", len(observations))
	}

	obs := observations[0]
	if obs.Currency != "USD" {
		t.Fatalf("currency = %q, want USD", obs.Currency)
	}
	if obs.Source != config.NamespaceScrape {
		t.Fatalf("source = %q", obs.Source)
	}
	if !strings.Contains(obs.ListedTitle, "PAL European") {
		t.Fatalf("listed title %q missing region marker", obs.ListedTitle)
	}
	if obs.ListedCondition != "Complete CIB" {
		t.Fatalf("condition = %q, want Complete CIB", obs.ListedCondition)
	}
	if got := obs.Amount.String(); got != "44.29" {
		t.Fatalf("cib = %s, want 44.29 (graded quote must not win)", got)
	}
}

func TestScrapeQuerySelectsLoosePrice(t *testing.T) {
	src := mockedScrapeSource(t)
	query := palQuery()
	query.Packaging = models.PackagingLoose

	observations, err := src.Query(context.Background(), query)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("Query() returned %d observations, want the single loose quote", len(observations))
	}
	if got := observations[0].Amount.String(); got != "18.61" {
		t.Fatalf("loose = %s, want 18.61", got)
	}
	if observations[0].ListedCondition != "Loose" {
		t.Fatalf("condition = %q, want Loose", observations[0].ListedCondition)
	}
}

func TestScrapeQueryRequiresRegion(t *testing.T) {
	src := mockedScrapeSource(t)
	query := palQuery()
	query.Region = ""
	if _, err := src.Query(context.Background(), query); err == nil {
		t.Fatalf("Query() without region should fail")
	}
}

func TestBestCandidatePrefersRegionAndPlatform(t *testing.T) {
	crawl := &scrapeCrawl{candidates: []candidate{
		{url: "u1", title: "Super Mario World", console: "super-nintendo"},
		{url: "u2", title: "Super Mario World", console: "pal-super-nintendo"},
		{url: "u3", title: "Super Mario Kart", console: "pal-super-nintendo"},
	}}

	best, ok := crawl.bestCandidate(models.PriceQuery{
		Platform: "SNES",
		Title:    "Super Mario World",
		Region:   models.RegionPAL,
	})
	if !ok {
		t.Fatalf("bestCandidate() found nothing")
	}
	if best.console != "pal-super-nintendo" || best.title != "Super Mario World" {
		t.Fatalf("bestCandidate() = %+v, want the PAL exact title", best)
	}
}

func TestBestCandidateRejectsWeakTitleMatch(t *testing.T) {
	crawl := &scrapeCrawl{candidates: []candidate{
		{url: "u1", title: "Completely Different Game", console: "pal-super-nintendo"},
	}}

	if _, ok := crawl.bestCandidate(models.PriceQuery{
		Platform: "SNES",
		Title:    "Super Mario World",
		Region:   models.RegionPAL,
	}); ok {
		t.Fatalf("bestCandidate() accepted an unrelated title")
	}
}

func TestParsePriceGrid(t *testing.T) {
	grid := parsePriceGrid("Loose$18.61Complete$442.29Graded Complete$1,200.00Box Only$12.00Manual Only$8.50")
	if !grid.hasLoose || grid.loose.String() != "18.61" {
		t.Fatalf("loose = %v %s", grid.hasLoose, grid.loose)
	}
	if !grid.hasCIB || grid.cib.String() != "442.29" {
		t.Fatalf("cib = %v %s, graded quote must be skipped", grid.hasCIB, grid.cib)
	}
	if !grid.hasBoxOnly || grid.boxOnly.String() != "12" {
		t.Fatalf("box only = %v %s", grid.hasBoxOnly, grid.boxOnly)
	}
	if !grid.hasManualOnly || grid.manualOnly.String() != "8.5" {
		t.Fatalf("manual only = %v %s", grid.hasManualOnly, grid.manualOnly)
	}
	if grid.hasItemBox || grid.hasItemManual {
		t.Fatalf("unexpected item-box or item-manual prices")
	}
}

func TestParsePriceGridThousandsAndSanity(t *testing.T) {
	grid := parsePriceGrid("Loose$1,234.56Complete$999,999.00")
	if !grid.hasLoose || grid.loose.String() != "1234.56" {
		t.Fatalf("loose = %v %s, want 1234.56", grid.hasLoose, grid.loose)
	}
	if grid.hasCIB {
		t.Fatalf("cib over the sanity cap should be dropped")
	}
}

func TestParsePriceGridGradedOnly(t *testing.T) {
	grid := parsePriceGrid("Graded Complete$500.00")
	if grid.hasCIB {
		t.Fatalf("graded-only page should yield no CIB price")
	}
}

func TestObservationsComponentSumFallback(t *testing.T) {
	crawl := &scrapeCrawl{
		source:         NewScrapeSource(config.DefaultConfig()),
		query:          palQuery(),
		matchedTitle:   "Super Mario World",
		matchedConsole: "pal-super-nintendo",
	}
	crawl.grid = parsePriceGrid("Loose$10.00Box Only$5.00Manual Only$2.50")

	observations := crawl.observations()
	if len(observations) != 1 {
		t.Fatalf("observations() = %+v, want the single calculated CIB quote", observations)
	}
	if observations[0].ListedCondition != "Complete CIB calculated" {
		t.Fatalf("condition = %q", observations[0].ListedCondition)
	}
	if observations[0].Amount.String() != "17.5" {
		t.Fatalf("calculated CIB = %s, want 17.5", observations[0].Amount)
	}
}

func TestPriceGridPriceFor(t *testing.T) {
	fullGrid := parsePriceGrid("Loose$20.00Complete$45.00Item & Box$30.00Item & Manual$25.00")

	tests := []struct {
		name      string
		grid      priceGrid
		packaging models.PackagingState
		amount    string
		label     string
		ok        bool
	}{
		{
			name:      "cib picks the cib quote over other tiers",
			grid:      fullGrid,
			packaging: models.PackagingCIB,
			amount:    "45",
			label:     "Complete CIB",
			ok:        true,
		},
		{
			name:      "loose picks the loose quote",
			grid:      fullGrid,
			packaging: models.PackagingLoose,
			amount:    "20",
			label:     "Loose",
			ok:        true,
		},
		{
			name:      "cib sums components without a cib quote",
			grid:      parsePriceGrid("Loose$10.00Box Only$5.00Manual Only$2.50"),
			packaging: models.PackagingCIB,
			amount:    "17.5",
			label:     "Complete CIB calculated",
			ok:        true,
		},
		{
			name:      "cib falls back to item-box plus manual",
			grid:      parsePriceGrid("Item & Box$30.00Manual Only$2.50"),
			packaging: models.PackagingCIB,
			amount:    "32.5",
			label:     "Complete CIB calculated",
			ok:        true,
		},
		{
			name:      "loose without a loose quote has no price",
			grid:      parsePriceGrid("Complete$45.00"),
			packaging: models.PackagingLoose,
			ok:        false,
		},
		{
			name:      "cib without quote or components has no price",
			grid:      parsePriceGrid("Loose$20.00Box Only$5.00"),
			packaging: models.PackagingCIB,
			ok:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, label, ok := tt.grid.priceFor(tt.packaging)
			if ok != tt.ok {
				t.Fatalf("priceFor() ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if amount.String() != tt.amount {
				t.Fatalf("priceFor() = %s, want %s", amount, tt.amount)
			}
			if label != tt.label {
				t.Fatalf("priceFor() label = %q, want %q", label, tt.label)
			}
		})
	}
}

func TestConsoleSlugAndRegion(t *testing.T) {
	if got := consoleSlugFromURL("/game/pal-super-nintendo/super-mario-world"); got != "pal-super-nintendo" {
		t.Fatalf("consoleSlugFromURL = %q", got)
	}
	if got := regionFromConsoleSlug("pal-super-nintendo"); got != models.RegionPAL {
		t.Fatalf("regionFromConsoleSlug(pal-) = %s", got)
	}
	if got := regionFromConsoleSlug("jp-super-famicom"); got != models.RegionNTSCJ {
		t.Fatalf("regionFromConsoleSlug(jp-) = %s", got)
	}
	if got := regionFromConsoleSlug("super-nintendo"); got != models.RegionNTSCU {
		t.Fatalf("regionFromConsoleSlug(unmarked) = %s", got)
	}
}
