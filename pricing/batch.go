package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/retrocellar/price-enricher/models"
)

// BatchResult is the outcome of one sequential run over a catalog.
type BatchResult struct {
	RunID     string
	Estimates []models.FinalEstimate
	Estimated int
	Skipped   int
}

// EnrichBatch prices the items one at a time in order. Delays between
// network-bound queries are enforced per source inside the engine, so
// cache hits cost nothing. The run stops between items when the context
// is cancelled; estimates produced so far are returned alongside the
// context error.
func (e *Engine) EnrichBatch(ctx context.Context, items []models.CatalogItem) (BatchResult, error) {
	result := BatchResult{
		RunID:     uuid.NewString(),
		Estimates: make([]models.FinalEstimate, 0, len(items)),
	}
	logger := e.logger.With("run_id", result.RunID)
	logger.Info("starting batch", "items", len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			logger.Warn("batch interrupted", "processed", i, "remaining", len(items)-i)
			return result, fmt.Errorf("batch interrupted after %d items: %w", i, err)
		}

		estimate := e.EnrichItem(ctx, item)
		result.Estimates = append(result.Estimates, estimate)
		if estimate.HasAmount {
			result.Estimated++
			logger.Info("item priced",
				"index", i+1,
				"total", len(items),
				"title", item.Title,
				"platform", item.Platform,
				"estimate_eur", estimate.AmountEUR.StringFixed(2),
			)
		} else {
			result.Skipped++
			logger.Info("item skipped",
				"index", i+1,
				"total", len(items),
				"title", item.Title,
				"platform", item.Platform,
				"reason", string(estimate.Reason),
			)
		}
	}

	logger.Info("batch complete", "estimated", result.Estimated, "skipped", result.Skipped)
	return result, nil
}
