package pricing

import (
	"fmt"
	"strings"

	"github.com/retrocellar/price-enricher/models"
)

// traceSampleLimit caps how many individual listings a source section
// echoes into the trace.
const traceSampleLimit = 5

// traceBuilder accumulates the human-readable audit text for one item.
type traceBuilder struct {
	b strings.Builder
}

func newTrace(item models.CatalogItem, region models.Region, packaging models.PackagingState) *traceBuilder {
	t := &traceBuilder{}
	fmt.Fprintf(&t.b, "### %s (%s) ###\n", item.Title, item.Platform)
	fmt.Fprintf(&t.b, "Packaging: %s\n", packaging)
	fmt.Fprintf(&t.b, "Region: %s\n", region)
	return t
}

func (t *traceBuilder) note(format string, args ...any) {
	fmt.Fprintf(&t.b, format+"\n", args...)
}

func (t *traceBuilder) sourceHeader(source string) {
	fmt.Fprintf(&t.b, "\n--- %s ---\n", source)
}

func (t *traceBuilder) sourceSummary(est models.SourceEstimate, shippingIncluded bool) {
	shipping := "excluded"
	if shippingIncluded {
		shipping = "included"
	}
	fmt.Fprintf(&t.b, "avg=%s EUR, n=%d, shipping=%s, strategy=%s\n",
		est.AmountEUR.StringFixed(2), est.SampleCount, shipping, est.Strategy)
	if est.UsedFallbackRate {
		t.note("currency converted with static fallback rates")
	}
}

func (t *traceBuilder) observations(observations []models.PriceObservation) {
	limit := len(observations)
	if limit > traceSampleLimit {
		limit = traceSampleLimit
	}
	for _, obs := range observations[:limit] {
		when := "-"
		if !obs.Timestamp.IsZero() {
			when = obs.Timestamp.Format("2006-01-02")
		}
		line := fmt.Sprintf("[%s] %s %s %q", when, obs.Amount.StringFixed(2), obs.Currency, obs.ListedTitle)
		if obs.ListedCondition != "" {
			line += fmt.Sprintf(" (%s)", obs.ListedCondition)
		}
		if obs.URL != "" {
			line += " " + obs.URL
		}
		t.note("%s", line)
	}
	if len(observations) > limit {
		t.note("... and %d more", len(observations)-limit)
	}
}

func (t *traceBuilder) final(estimate models.FinalEstimate) {
	t.b.WriteString("\n--- Final ---\n")
	if !estimate.HasAmount {
		t.note("no estimate: %s", reasonText(estimate.Reason))
		return
	}
	if len(estimate.Sources) > 1 {
		parts := make([]string, 0, len(estimate.Sources))
		for _, ws := range estimate.Sources {
			parts = append(parts, fmt.Sprintf("%s %s EUR x %.2f", ws.Estimate.Source, ws.Estimate.AmountEUR.StringFixed(2), ws.Weight))
		}
		t.note("weighted average: %s", strings.Join(parts, " | "))
	}
	t.note("estimate: %s EUR", estimate.AmountEUR.StringFixed(2))
}

func (t *traceBuilder) String() string {
	return t.b.String()
}

func reasonText(reason models.SkipReason) string {
	switch reason {
	case models.SkipNoGame:
		return "item has no game component"
	case models.SkipRegionRequired:
		return "region is required but missing"
	case models.SkipInsufficientData:
		return "no usable price data from any source"
	default:
		return string(reason)
	}
}
