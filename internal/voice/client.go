// Package voice integrates the telephony provider: placing outbound store
// inquiry calls and consuming the provider's lifecycle webhooks.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dialcart_backend/internal/research"
	"dialcart_backend/platform/config"
	"dialcart_backend/platform/logger"
)

const callPhoneURL = "https://api.vapi.ai/call/phone"

// Client places outbound calls through the voice provider.
type Client struct {
	client        *http.Client
	apiKey        string
	phoneNumberID string
	webhookURL    string
	log           *logger.Logger
}

// NewClient creates a voice provider client. The webhook URL is derived from
// the server base URL so the provider can push call events back.
func NewClient(cfg config.VoiceConfig, log *logger.Logger) *Client {
	webhookURL := ""
	if base := strings.TrimRight(cfg.GetServerBaseURL(), "/"); base != "" {
		webhookURL = base + "/webhooks/voice"
	}

	return &Client{
		client:        &http.Client{Timeout: 15 * time.Second},
		apiKey:        cfg.GetVoiceAPIKey(),
		phoneNumberID: cfg.GetVoicePhoneNumberID(),
		webhookURL:    webhookURL,
		log:           log,
	}
}

// StoreCallRequest describes one outbound inquiry call.
type StoreCallRequest struct {
	StorePhone string
	StoreName  string
	Location   string
	Product    *research.Product
}

type placeCallResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PlaceStoreCall initiates the call and returns the provider's call id.
func (c *Client) PlaceStoreCall(ctx context.Context, req StoreCallRequest) (string, error) {
	payload := map[string]any{
		"assistant":     c.buildAssistant(req),
		"phoneNumberId": c.phoneNumberID,
		"customer":      map[string]string{"number": req.StorePhone},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, callPhoneURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.ProviderError("voice", "place_call", err)
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var result placeCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("place call failed: %s", msg)
	}

	if result.ID == "" {
		return "", fmt.Errorf("place call succeeded but no call id returned")
	}

	return result.ID, nil
}

func (c *Client) buildAssistant(req StoreCallRequest) map[string]any {
	assistant := map[string]any{
		"firstMessage": "Hello, I'm calling to check if you have a product in stock. Do you have a moment?",
		"model": map[string]any{
			"provider": "openai",
			"model":    "gpt-4o-mini",
			"messages": []map[string]string{
				{"role": "system", "content": buildInquiryPrompt(req)},
			},
		},
	}
	if c.webhookURL != "" {
		assistant["serverUrl"] = c.webhookURL
	}
	return assistant
}

func buildInquiryPrompt(req StoreCallRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are calling %s on behalf of a customer in %s.\n", req.StoreName, req.Location)
	fmt.Fprintf(&b, "Ask whether they stock: %s.\n", req.Product.Name)

	if len(req.Product.Specs) > 0 {
		b.WriteString("Required specs:\n")
		for k, v := range req.Product.Specs {
			fmt.Fprintf(&b, "  - %s: %s\n", k, v)
		}
	}

	if len(req.Product.Alternatives) > 0 {
		b.WriteString("If unavailable, ask about these alternatives:\n")
		for i, alt := range req.Product.Alternatives {
			fmt.Fprintf(&b, "  %d. %s", i+1, alt.Name)
			if alt.AvgPrice > 0 {
				fmt.Fprintf(&b, " (around ₹%.0f)", alt.AvgPrice)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("Get the exact price, and whether they deliver to the customer's area ")
	b.WriteString("(ask for ETA and delivery charge). Be brief and polite.")

	return b.String()
}
