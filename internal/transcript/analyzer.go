// Package transcript converts a completed call's transcript into structured
// availability and price data.
package transcript

import (
	"context"
	"fmt"
	"strings"

	"dialcart_backend/internal/research"
	"dialcart_backend/platform/logger"
)

// Analysis is the structured outcome of one store call.
type Analysis struct {
	CallConnected     bool    `json:"call_connected"`
	Available         bool    `json:"product_available"`
	MatchedProduct    string  `json:"matched_product"`
	Price             float64 `json:"price"`
	MatchType         string  `json:"product_match_type"`
	DeliveryAvailable bool    `json:"delivery_available"`
	DeliveryETA       string  `json:"delivery_eta"`
	DeliveryCharge    float64 `json:"delivery_charge"`
	Summary           string  `json:"call_summary"`
	Notes             string  `json:"notes"`
}

// JSONGenerator is the slice of the LLM client the analyzer needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, stage, prompt string, out any) error
}

// Analyzer extracts structured data from call transcripts.
type Analyzer struct {
	llm JSONGenerator
	log *logger.Logger
}

// New creates an Analyzer.
func New(llm JSONGenerator, log *logger.Logger) *Analyzer {
	return &Analyzer{llm: llm, log: log}
}

const analyzePrompt = `Analyze this phone call between an AI assistant and a store.

TRANSCRIPT:
%s
%s
Extract what the store said. product_match_type is "exact" when the store has
the requested product, "alternative" when it only has a substitute, "none"
otherwise. Price and delivery_charge are INR numbers, 0 when not mentioned.

Respond with JSON only:
{"call_connected": bool, "product_available": bool, "matched_product": "",
 "price": 0, "product_match_type": "exact"|"alternative"|"none",
 "delivery_available": bool, "delivery_eta": "", "delivery_charge": 0,
 "call_summary": "one sentence", "notes": ""}`

// Analyze runs the extraction. ok=false means the transcript was missing,
// empty, or the model output was unusable; the call is then marked
// unanalyzable and excluded from ranking rather than failing the ticket.
func (a *Analyzer) Analyze(ctx context.Context, product *research.Product, transcriptText string) (Analysis, bool) {
	if strings.TrimSpace(transcriptText) == "" {
		return Analysis{}, false
	}

	var result Analysis
	err := a.llm.GenerateJSON(ctx, "transcript_analyzer",
		fmt.Sprintf(analyzePrompt, transcriptText, productContext(product)), &result)
	if err != nil {
		a.log.ProviderError("gemini", "transcript_analyzer", err)
		return Analysis{}, false
	}

	switch result.MatchType {
	case "exact", "alternative", "none":
	case "":
		result.MatchType = "none"
	default:
		result.MatchType = "none"
	}

	return result, true
}

func productContext(product *research.Product) string {
	if product == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nThe customer wants: %s", product.Name)
	if product.Category != "" {
		fmt.Fprintf(&b, " (%s)", product.Category)
	}
	b.WriteString("\n")

	if len(product.Specs) > 0 {
		b.WriteString("Required specs:\n")
		for k, v := range product.Specs {
			fmt.Fprintf(&b, "  - %s: %s\n", k, v)
		}
	}

	if len(product.Alternatives) > 0 {
		b.WriteString("Acceptable alternatives:\n")
		for _, alt := range product.Alternatives {
			fmt.Fprintf(&b, "  - %s\n", alt.Name)
		}
	}

	return b.String()
}
