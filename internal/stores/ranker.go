package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"dialcart_backend/internal/research"
	"dialcart_backend/platform/logger"
)

// JSONGenerator is the slice of the LLM client the ranker needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, stage, prompt string, out any) error
}

// Ranker reorders discovered stores by relevance before calls are placed.
type Ranker struct {
	llm JSONGenerator
	log *logger.Logger
}

// NewRanker creates a Ranker.
func NewRanker(llm JSONGenerator, log *logger.Logger) *Ranker {
	return &Ranker{llm: llm, log: log}
}

type rankResponse struct {
	RankedIndices []int  `json:"ranked_indices"`
	Reasoning     string `json:"reasoning"`
}

// Rank returns the candidates reordered by relevance to the query. Exact name
// matches to a requested specific store rank first, then category relevance
// and rating. On any failure or a malformed index list, the original order is
// returned so ranking never blocks the pipeline.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []Candidate, analysis *research.QueryAnalysis) []Candidate {
	if len(candidates) <= 1 {
		return candidates
	}

	summary := make([]map[string]any, len(candidates))
	for i, c := range candidates {
		summary[i] = map[string]any{
			"idx":           i,
			"name":          c.Name,
			"address":       c.Address,
			"rating":        c.Rating,
			"total_ratings": c.TotalRatings,
		}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return candidates
	}

	specificStore := ""
	category := ""
	if analysis != nil {
		specificStore = analysis.SpecificStoreName
		category = analysis.ProductCategory
	}

	prompt := fmt.Sprintf(`User query: %q
Specific store requested: %q
Product category: %q

Stores found:
%s

Re-rank by relevance. Highest priority: exact or close name match to the
requested store. Then: category relevance, rating.

Respond with JSON only: {"ranked_indices": [0, 2, 1], "reasoning": "brief"}`,
		query, specificStore, category, summaryJSON)

	var resp rankResponse
	if err := r.llm.GenerateJSON(ctx, "store_ranker", prompt, &resp); err != nil {
		r.log.ProviderError("gemini", "store_ranker", err)
		return candidates
	}

	ranked := applyRanking(candidates, resp.RankedIndices)
	if ranked == nil {
		r.log.Warn("store ranker returned unusable indices", "indices", resp.RankedIndices)
		return candidates
	}

	return ranked
}

// applyRanking reorders candidates by the index list. Returns nil when the
// list references indices out of range or repeats; missing indices are
// appended in original order so no candidate is lost.
func applyRanking(candidates []Candidate, indices []int) []Candidate {
	if len(indices) == 0 {
		return nil
	}

	used := make(map[int]bool, len(indices))
	out := make([]Candidate, 0, len(candidates))

	for _, idx := range indices {
		if idx < 0 || idx >= len(candidates) || used[idx] {
			return nil
		}
		used[idx] = true
		out = append(out, candidates[idx])
	}

	for i, c := range candidates {
		if !used[i] {
			out = append(out, c)
		}
	}

	return out
}
