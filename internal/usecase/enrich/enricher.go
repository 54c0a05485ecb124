package enrich

import (
	"context"
	"log"
	"sync"

	"emitenwatch/internal/domain"
)

// Enricher merges locally-owned flags into watchlist items and fans out
// per-symbol detail lookups when fresh upstream items are materialized.
type Enricher struct {
	Flags    domain.FlagRepository
	Upstream domain.UpstreamClient
}

// NewEnricher creates a new Enricher instance.
func NewEnricher(flags domain.FlagRepository, upstream domain.UpstreamClient) *Enricher {
	return &Enricher{
		Flags:    flags,
		Upstream: upstream,
	}
}

// Enrich materializes fresh upstream items: per-item detail fan-out
// followed by the flag merge. It never fails; degraded items keep their
// baseline fields.
func (e *Enricher) Enrich(ctx context.Context, items []domain.WatchlistItem) []domain.WatchlistItem {
	return e.MergeFlags(ctx, e.fetchDetails(ctx, items))
}

// fetchDetails looks up sector and canonical price for every item
// independently. Results are reassembled positionally; a single symbol's
// failure degrades that item only.
func (e *Enricher) fetchDetails(ctx context.Context, items []domain.WatchlistItem) []domain.WatchlistItem {
	out := make([]domain.WatchlistItem, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int, item domain.WatchlistItem) {
			defer wg.Done()
			out[i] = e.withDetail(ctx, item)
		}(i, items[i])
	}
	wg.Wait()
	return out
}

func (e *Enricher) withDetail(ctx context.Context, item domain.WatchlistItem) domain.WatchlistItem {
	detail, err := e.Upstream.FetchDetail(ctx, item.CanonicalSymbol())
	if err != nil {
		log.Printf("[WARN] detail lookup for %s: %v", item.CanonicalSymbol(), err)
		return item
	}
	if detail.Sector != "" {
		item.Sector = detail.Sector
	}
	if item.LastPrice.IsZero() && !detail.Price.IsZero() {
		item.LastPrice = detail.Price
	}
	return item
}

// MergeFlags attaches flags to items by uppercased symbol. A flag lookup
// failure is non-fatal: every item degrades to no flag and the caller
// still receives the full batch.
func (e *Enricher) MergeFlags(ctx context.Context, items []domain.WatchlistItem) []domain.WatchlistItem {
	if len(items) == 0 {
		return items
	}

	symbols := make([]string, len(items))
	for i := range items {
		symbols[i] = items[i].CanonicalSymbol()
	}

	flags, err := e.Flags.GetBySymbols(ctx, symbols)
	if err != nil {
		log.Printf("[WARN] flag lookup: %v", err)
		flags = nil
	}

	out := make([]domain.WatchlistItem, len(items))
	for i, item := range items {
		item.Flag = flags[item.CanonicalSymbol()]
		out[i] = item
	}
	return out
}
