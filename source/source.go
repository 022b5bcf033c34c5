// Package source defines the price source contract shared by the
// auction and catalog-scrape variants, plus the retry wrapper that
// makes either resilient to transient failures.
package source

import (
	"context"

	"github.com/retrocellar/price-enricher/models"
	"github.com/retrocellar/price-enricher/retry"
)

// PriceSource is the single capability both source variants implement.
// The orchestrator treats them uniformly through it: a structured query
// in, zero or more raw observations out. Implementations do not filter
// by region themselves beyond what their backend natively enforces; the
// shared filter ladder runs downstream.
type PriceSource interface {
	// Namespace identifies the source's cache partition.
	Namespace() string

	// Query returns raw price observations for the query, or a typed
	// unavailability error. Region must be set; its absence is a caller
	// error.
	Query(ctx context.Context, query models.PriceQuery) ([]models.PriceObservation, error)
}

// Wrap decorates a query function with the retry policy. Transient
// failures (timeouts, rate limits, connection errors) are retried with
// doubling capped backoff; auth and malformed-query errors fail
// immediately.
func Wrap(src PriceSource, policy retry.Policy) QueryFunc {
	return func(ctx context.Context, query models.PriceQuery) ([]models.PriceObservation, error) {
		var observations []models.PriceObservation
		err := policy.Do(ctx, src.Namespace()+" query", func(ctx context.Context) error {
			var qerr error
			observations, qerr = src.Query(ctx, query)
			if qerr != nil && !IsTransient(qerr) {
				return retry.Permanent(qerr)
			}
			return qerr
		})
		if err != nil {
			return nil, err
		}
		return observations, nil
	}
}

// QueryFunc is a PriceSource query with the wrapper applied.
type QueryFunc func(ctx context.Context, query models.PriceQuery) ([]models.PriceObservation, error)
