// Package gemini wraps the Google GenAI SDK behind the two call shapes the
// application needs: structured JSON generation and search-grounded text
// generation. This is part of the platform layer and contains no business logic.
package gemini

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"dialcart_backend/platform/apperr"
	"dialcart_backend/platform/config"
	"dialcart_backend/platform/logger"

	"google.golang.org/genai"
)

// CallRecord captures a single model invocation for auditing.
type CallRecord struct {
	Stage         string
	Model         string
	Grounded      bool
	PromptChars   int
	ResponseChars int
	LatencyMs     int64
	Error         string
}

// Recorder persists call records. Recording failures must not fail the call,
// so implementations log and swallow their own errors.
type Recorder interface {
	RecordLLMCall(ctx context.Context, rec CallRecord)
}

// Client is a thin wrapper around the GenAI SDK.
type Client struct {
	genai *genai.Client
	model string
	log   *logger.Logger
	rec   Recorder
}

// NewClient creates a Gemini client using the API-key backend.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *logger.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to initialize gemini client", err)
	}

	return &Client{
		genai: gc,
		model: cfg.GetGeminiModel(),
		log:   log,
	}, nil
}

// SetRecorder attaches an audit recorder. Safe to leave unset.
func (c *Client) SetRecorder(rec Recorder) {
	c.rec = rec
}

// GenerateJSON sends the prompt with a JSON response MIME type and unmarshals
// the result into out. The stage label identifies the pipeline step in audit
// records.
func (c *Client) GenerateJSON(ctx context.Context, stage, prompt string, out any) error {
	start := time.Now()

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	c.record(ctx, stage, false, len(prompt), len(text), start, err)

	if err != nil {
		c.log.ProviderError("gemini", stage, err)
		return apperr.Wrap(apperr.KindUpstream, "language model request failed", err)
	}

	if err := json.Unmarshal([]byte(StripJSONFences(text)), out); err != nil {
		return apperr.Wrap(apperr.KindUpstream, "language model returned malformed JSON", err)
	}

	return nil
}

// GenerateGrounded sends the prompt with the Google Search tool enabled and
// returns the raw response text. Grounded calls cannot force a JSON MIME type,
// so callers that need structure pass the text through a follow-up
// GenerateJSON synthesis step.
func (c *Client) GenerateGrounded(ctx context.Context, stage, prompt string) (string, error) {
	start := time.Now()

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	})

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	c.record(ctx, stage, true, len(prompt), len(text), start, err)

	if err != nil {
		c.log.ProviderError("gemini", stage, err)
		return "", apperr.Wrap(apperr.KindUpstream, "grounded search request failed", err)
	}

	return text, nil
}

func (c *Client) record(ctx context.Context, stage string, grounded bool, promptChars, responseChars int, start time.Time, err error) {
	if c.rec == nil {
		return
	}

	rec := CallRecord{
		Stage:         stage,
		Model:         c.model,
		Grounded:      grounded,
		PromptChars:   promptChars,
		ResponseChars: responseChars,
		LatencyMs:     time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	}

	c.rec.RecordLLMCall(context.WithoutCancel(ctx), rec)
}

// StripJSONFences removes a surrounding markdown code fence if present.
// Models occasionally fence JSON output even when asked not to.
func StripJSONFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}
