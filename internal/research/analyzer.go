// Package research turns a raw purchase request into a product specification
// and store search strategies. Two leaves live here: the query analyzer, which
// detects specific-store requests and proposes maps search queries, and the
// product researcher, which expands the request into a canonical product spec.
package research

import (
	"context"
	"fmt"

	"dialcart_backend/platform/logger"
)

// JSONGenerator is the slice of the LLM client this package needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, stage, prompt string, out any) error
}

// QueryAnalysis describes how to search for the requested product.
type QueryAnalysis struct {
	QueryType         string   `json:"query_type"`
	IsSpecificStore   bool     `json:"is_specific_store"`
	SpecificStoreName string   `json:"specific_store_name"`
	ProductCategory   string   `json:"product_category"`
	SearchQueries     []string `json:"search_queries"`
}

// Analyzer is the query analysis leaf.
type Analyzer struct {
	llm JSONGenerator
	log *logger.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(llm JSONGenerator, log *logger.Logger) *Analyzer {
	return &Analyzer{llm: llm, log: log}
}

const analyzePrompt = `Analyze this purchase request and plan store discovery.

Request: %q
Location: %q

Decide whether the user names a specific store or restaurant (e.g. "order from
Ratnadeep") versus a generic product class, and propose 2-4 Google Maps text
search queries that would find stores stocking the product near the location.

Respond with JSON only:
{"query_type": "specific_store"|"generic_product", "is_specific_store": bool,
 "specific_store_name": "", "product_category": "",
 "search_queries": ["...", "..."]}`

// Analyze runs the query analyzer. The caller treats failure as non-fatal;
// the returned analysis always has at least one usable search query.
func (a *Analyzer) Analyze(ctx context.Context, query, location string) (*QueryAnalysis, error) {
	var result QueryAnalysis
	if err := a.llm.GenerateJSON(ctx, "query_analyzer", fmt.Sprintf(analyzePrompt, query, location), &result); err != nil {
		return nil, err
	}

	if len(result.SearchQueries) == 0 {
		result.SearchQueries = []string{fmt.Sprintf("%s near %s", query, location)}
	}

	return &result, nil
}
