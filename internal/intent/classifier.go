// Package intent classifies free-text purchase requests before any pipeline
// work is scheduled.
package intent

import (
	"context"
	"fmt"
	"time"

	"dialcart_backend/platform/logger"
)

// Intent is the classified category of a user query.
type Intent string

const (
	IntentOrderProduct Intent = "order_product"
	IntentWakeUpCall   Intent = "wake_up_call"
	IntentOther        Intent = "other"
)

// Classification is the structured classifier output.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// JSONGenerator is the slice of the LLM client the classifier needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, stage, prompt string, out any) error
}

// Classifier maps free text to an intent.
type Classifier struct {
	llm     JSONGenerator
	log     *logger.Logger
	timeout time.Duration
}

// New creates a Classifier. The timeout bounds the synchronous classification
// step inside the create request.
func New(llm JSONGenerator, log *logger.Logger) *Classifier {
	return &Classifier{
		llm:     llm,
		log:     log,
		timeout: 10 * time.Second,
	}
}

const classifyPrompt = `Classify this user request into exactly one category.

Categories:
- order_product: the user wants to buy, find, or price a physical product
- wake_up_call: the user wants a wake-up call, alarm, or reminder call
- other: anything else

Request: %q

Respond with JSON only: {"intent": "...", "confidence": 0.0-1.0, "reasoning": "one sentence"}`

// Classify runs the classifier with a bounded deadline. A provider failure
// defaults to order_product so an LLM outage never blocks ordering, which is
// the overwhelmingly common intent.
func (c *Classifier) Classify(ctx context.Context, query string) Classification {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result Classification
	err := c.llm.GenerateJSON(ctx, "intent_classifier", fmt.Sprintf(classifyPrompt, query), &result)
	if err != nil {
		c.log.ProviderError("gemini", "intent_classifier", err)
		return Classification{
			Intent:     IntentOrderProduct,
			Confidence: 0,
			Reasoning:  "classifier unavailable, defaulted",
		}
	}

	switch result.Intent {
	case IntentOrderProduct, IntentWakeUpCall, IntentOther:
	default:
		result.Intent = IntentOrderProduct
	}

	return result
}

// RejectionMessage explains to the requester why a non-order intent is not
// processed.
func RejectionMessage(intent Intent) string {
	switch intent {
	case IntentWakeUpCall:
		return "Wake-up calls are not supported here. This service handles product orders only."
	default:
		return "This service handles product orders only. Please describe something you want to buy."
	}
}
