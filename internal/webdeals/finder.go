// Package webdeals searches online marketplaces for the requested product
// while store calls are in flight. It fires several grounded searches, each
// from a different angle, then synthesizes the raw findings into structured
// deals with one follow-up model call.
package webdeals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dialcart_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// Deal is one online offer for the product.
type Deal struct {
	Platform         string  `json:"platform"`
	Title            string  `json:"title"`
	Price            float64 `json:"price"`
	OriginalPrice    float64 `json:"original_price"`
	DiscountPercent  float64 `json:"discount_percent"`
	URL              string  `json:"url"`
	Confidence       string  `json:"confidence"`
	DeliveryEstimate string  `json:"delivery_estimate"`
}

// Result is the synthesized web-deal set for a ticket.
type Result struct {
	Status        string `json:"status"`
	SearchSummary string `json:"search_summary"`
	Deals         []Deal `json:"deals"`
	BestDeal      *Deal  `json:"best_deal"`
}

// Generator is the slice of the LLM client this package needs.
type Generator interface {
	GenerateJSON(ctx context.Context, stage, prompt string, out any) error
	GenerateGrounded(ctx context.Context, stage, prompt string) (string, error)
}

// searchAngle targets one kind of information during grounded search.
type searchAngle struct {
	id     string
	prompt string
}

var searchAngles = []searchAngle{
	{
		id: "price_compare",
		prompt: `Search the web now. Find the current price for %q on major Indian
e-commerce platforms: Amazon.in, Flipkart, JioMart, Croma, Reliance Digital,
Tata CLiQ. For each platform report the listing title, current price in INR,
original price if discounted, product URL, and stock status.`,
	},
	{
		id: "deals_offers",
		prompt: `Search the web now. Find active deals, discounts, coupon codes, bank
card offers, cashback, and exchange offers for %q in India, including any
ongoing sale events.`,
	},
	{
		id: "quick_commerce",
		prompt: `Search the web now. Check whether %q is available on Indian quick
commerce and same-day delivery services: Blinkit, Zepto, Swiggy Instamart,
BigBasket, Amazon Fresh. Report price and delivery time where listed.`,
	},
	{
		id: "niche_sources",
		prompt: `Search the web now. Find %q on less obvious Indian sources: brand
official stores, refurbished marketplaces, and regional retailers with online
ordering. Report price and any warranty or condition caveats.`,
	},
}

// Finder runs the parallel web-deal search.
type Finder struct {
	llm     Generator
	log     *logger.Logger
	timeout time.Duration
}

// New creates a Finder. The timeout bounds the whole branch; the pipeline
// never waits on it past that.
func New(llm Generator, timeout time.Duration, log *logger.Logger) *Finder {
	return &Finder{llm: llm, log: log, timeout: timeout}
}

// Search runs all angles concurrently and synthesizes the findings. Angles
// that fail are skipped; only zero usable angle output fails the search.
func (f *Finder) Search(ctx context.Context, productName string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	rawTexts := make([]string, len(searchAngles))

	g, gctx := errgroup.WithContext(ctx)
	for i, angle := range searchAngles {
		g.Go(func() error {
			text, err := f.llm.GenerateGrounded(gctx, "webdeals_"+angle.id, fmt.Sprintf(angle.prompt, productName))
			if err != nil {
				// One angle failing is fine; the rest still feed synthesis.
				f.log.Warn("web deal search angle failed", "angle", angle.id, "error", err)
				return nil
			}
			rawTexts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var sections []string
	for i, angle := range searchAngles {
		if strings.TrimSpace(rawTexts[i]) == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", strings.ToUpper(angle.id), rawTexts[i]))
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("all web deal searches failed")
	}

	return f.synthesize(ctx, productName, strings.Join(sections, "\n\n"))
}

const synthesizePrompt = `Below are raw web search findings about %q from several
search angles (price comparison, deals, quick commerce, niche sources).
Synthesize them into a deduplicated deal list. Only include offers with a
concrete price. confidence is "high" when price and platform are explicit in
the findings, otherwise "medium" or "low".

FINDINGS:
%s

Respond with JSON only:
{"status": "found"|"nothing_found", "search_summary": "2-3 sentences",
 "deals": [{"platform": "", "title": "", "price": 0, "original_price": 0,
   "discount_percent": 0, "url": "", "confidence": "", "delivery_estimate": ""}],
 "best_deal": {...same shape as one deal, the best value...}}`

func (f *Finder) synthesize(ctx context.Context, productName, merged string) (*Result, error) {
	var result Result
	if err := f.llm.GenerateJSON(ctx, "webdeals_synthesis", fmt.Sprintf(synthesizePrompt, productName, merged), &result); err != nil {
		return nil, err
	}

	if result.BestDeal == nil && len(result.Deals) > 0 {
		best := result.Deals[0]
		for _, d := range result.Deals[1:] {
			if d.Price > 0 && (best.Price == 0 || d.Price < best.Price) {
				best = d
			}
		}
		result.BestDeal = &best
	}

	if result.Status == "" {
		if len(result.Deals) > 0 {
			result.Status = "found"
		} else {
			result.Status = "nothing_found"
		}
	}

	return &result, nil
}
