package research

import (
	"context"
	"fmt"
	"strings"

	"dialcart_backend/platform/logger"
)

// maxAlternatives caps how many substitute products the researcher may propose.
const maxAlternatives = 3

// Alternative is a substitute product to ask stores about when the primary
// product is unavailable.
type Alternative struct {
	Name     string  `json:"name"`
	AvgPrice float64 `json:"avg_price"`
	Reason   string  `json:"reason"`
}

// Product is the canonical product specification extracted from the request.
type Product struct {
	Name             string            `json:"product_name"`
	Category         string            `json:"product_category"`
	Specs            map[string]string `json:"specs"`
	Alternatives     []Alternative     `json:"alternatives"`
	SearchTerms      []string          `json:"search_terms"`
	StoreSearchQuery string            `json:"store_search_query"`
	AvgPriceOnline   float64           `json:"avg_price_online"`
}

// Researcher is the product research leaf.
type Researcher struct {
	llm JSONGenerator
	log *logger.Logger
}

// NewResearcher creates a Researcher.
func NewResearcher(llm JSONGenerator, log *logger.Logger) *Researcher {
	return &Researcher{llm: llm, log: log}
}

const researchPrompt = `Identify the product in this purchase request.

Request: %q
%s
Extract the canonical product name, its category, the specs the customer cares
about, up to three reasonable alternatives a store might stock instead, search
terms for finding stores that sell it, one short store-type search query
(e.g. "mobile accessories shop"), and a typical online price in INR.

Respond with JSON only:
{"product_name": "", "product_category": "", "specs": {"key": "value"},
 "alternatives": [{"name": "", "avg_price": 0, "reason": ""}],
 "search_terms": ["..."], "store_search_query": "", "avg_price_online": 0}`

// Research expands the request into a product specification. The optional
// analysis narrows the prompt when a specific store was detected.
func (r *Researcher) Research(ctx context.Context, query string, analysis *QueryAnalysis) (*Product, error) {
	contextLine := ""
	if analysis != nil {
		if analysis.IsSpecificStore && analysis.SpecificStoreName != "" {
			contextLine = fmt.Sprintf("The user wants to order from a specific store: %q.\n", analysis.SpecificStoreName)
		} else if analysis.ProductCategory != "" {
			contextLine = fmt.Sprintf("Likely product category: %q.\n", analysis.ProductCategory)
		}
	}

	var result Product
	if err := r.llm.GenerateJSON(ctx, "product_research", fmt.Sprintf(researchPrompt, query, contextLine), &result); err != nil {
		return nil, err
	}

	if len(result.Alternatives) > maxAlternatives {
		result.Alternatives = result.Alternatives[:maxAlternatives]
	}

	if strings.TrimSpace(result.Name) == "" {
		result.Name = query
	}
	if strings.TrimSpace(result.StoreSearchQuery) == "" {
		result.StoreSearchQuery = result.Name
	}

	return &result, nil
}
