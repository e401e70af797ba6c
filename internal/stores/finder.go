package stores

import (
	"context"
	"fmt"
	"strings"

	"dialcart_backend/internal/research"
	"dialcart_backend/platform/logger"
)

// Searcher is the maps surface the finder needs. Satisfied by PlacesClient.
type Searcher interface {
	TextSearch(ctx context.Context, query string) ([]textSearchResult, error)
	Details(ctx context.Context, placeID string) (Candidate, bool, error)
}

// Finder runs multiple search strategies and merges the results.
type Finder struct {
	maps Searcher
	log  *logger.Logger
}

// NewFinder creates a Finder.
func NewFinder(maps Searcher, log *logger.Logger) *Finder {
	return &Finder{maps: maps, log: log}
}

// Find discovers up to maxStores callable stores for the product near the
// location. Strategies, in priority order: analyzer-proposed queries,
// researcher search terms, and a "<store query> near <location>" fallback.
// Results are deduplicated by place id across strategies; the first strategy
// that surfaces a place wins its slot, so analyzer hits keep lower (better)
// call priority. When the analyzer pinned a specific store, a direct name
// search runs first.
func (f *Finder) Find(ctx context.Context, product *research.Product, analysis *research.QueryAnalysis, location string, maxStores int) ([]Candidate, error) {
	queries := f.buildQueries(product, analysis, location)

	seen := make(map[string]bool)
	ordered := make([]string, 0, maxStores*2)

	for _, q := range queries {
		results, err := f.maps.TextSearch(ctx, q)
		if err != nil {
			// One strategy failing is not fatal; another may still find stores.
			f.log.Warn("store search strategy failed", "query", q, "error", err)
			continue
		}

		for _, r := range results {
			if r.PlaceID == "" || seen[r.PlaceID] {
				continue
			}
			seen[r.PlaceID] = true
			ordered = append(ordered, r.PlaceID)
		}
	}

	candidates := make([]Candidate, 0, maxStores)
	for _, placeID := range ordered {
		if len(candidates) >= maxStores {
			break
		}

		cand, ok, err := f.maps.Details(ctx, placeID)
		if err != nil {
			f.log.Warn("place details failed", "place_id", placeID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		candidates = append(candidates, cand)
	}

	return candidates, nil
}

func (f *Finder) buildQueries(product *research.Product, analysis *research.QueryAnalysis, location string) []string {
	var queries []string

	if analysis != nil && analysis.IsSpecificStore && analysis.SpecificStoreName != "" {
		queries = append(queries, fmt.Sprintf("%s near %s", analysis.SpecificStoreName, location))
	}

	if analysis != nil {
		queries = append(queries, analysis.SearchQueries...)
	}

	for _, term := range product.SearchTerms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		queries = append(queries, fmt.Sprintf("%s near %s", term, location))
	}

	queries = append(queries, fmt.Sprintf("%s near %s", product.StoreSearchQuery, location))

	// Dedupe query strings while preserving order.
	seen := make(map[string]bool, len(queries))
	out := queries[:0]
	for _, q := range queries {
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}

	return out
}
