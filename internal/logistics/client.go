package logistics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dialcart_backend/platform/config"
	"dialcart_backend/platform/logger"
)

// Quote is one courier's offer for the route.
type Quote struct {
	CourierID   string  `json:"lsp_id"`
	CourierName string  `json:"logistics_seller"`
	Price       float64 `json:"price_forward"`
	PickupETA   int     `json:"pickup_eta"`
}

// QuotesResponse is the provider's answer to a quote request.
type QuotesResponse struct {
	Status  int     `json:"status"`
	Message string  `json:"message"`
	QuoteID string  `json:"quote_id"`
	Quotes  []Quote `json:"quotes"`
}

// QuoteRequest describes the route to quote.
type QuoteRequest struct {
	PickupLat     float64
	PickupLng     float64
	PickupPincode string
	DropLat       float64
	DropLng       float64
	DropPincode   string
	City          string
	OrderAmount   float64
	OrderWeight   float64
}

// Party is one endpoint (pickup or drop) of a delivery order.
type Party struct {
	Lat     float64
	Lng     float64
	Name    string
	Line1   string
	City    string
	State   string
	Pincode string
	Phone   string
}

// OrderItem is one line item in the delivery order.
type OrderItem struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// CreateOrderRequest places a delivery order with a selected courier.
type CreateOrderRequest struct {
	ClientOrderID string
	Pickup        Party
	Drop          Party
	OrderAmount   float64
	OrderWeight   float64
	Items         []OrderItem
	CourierID     string
	QuoteID       string
}

// CreateOrderResponse is the provider's answer to order creation.
type CreateOrderResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Order   struct {
		ID          string `json:"id"`
		State       string `json:"state"`
		TrackingURL string `json:"tracking_url"`
	} `json:"order"`
}

// Client talks to the delivery provider's partner API.
type Client struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	callbackURL string
	log         *logger.Logger
}

// NewClient creates a delivery provider client. Callbacks are routed to
// /webhooks/logistics on the server base URL.
func NewClient(cfg config.LogisticsConfig, log *logger.Logger) *Client {
	callbackURL := ""
	if base := strings.TrimRight(cfg.GetServerBaseURL(), "/"); base != "" {
		callbackURL = base + "/webhooks/logistics"
	}

	return &Client{
		client:      &http.Client{Timeout: 20 * time.Second},
		baseURL:     strings.TrimRight(cfg.GetLogisticsBaseURL(), "/"),
		apiKey:      cfg.GetLogisticsAPIKey(),
		callbackURL: callbackURL,
		log:         log,
	}
}

// GetQuotes fetches courier quotes for the route.
func (c *Client) GetQuotes(ctx context.Context, req QuoteRequest) (*QuotesResponse, error) {
	payload := map[string]any{
		"pickup": map[string]any{
			"lat":     req.PickupLat,
			"lng":     req.PickupLng,
			"pincode": req.PickupPincode,
		},
		"drop": map[string]any{
			"lat":     req.DropLat,
			"lng":     req.DropLng,
			"pincode": req.DropPincode,
		},
		"city":            req.City,
		"order_category":  "F&B",
		"search_category": "Immediate Delivery",
		"order_amount":    req.OrderAmount,
		"cod_amount":      0,
		"order_weight":    req.OrderWeight,
	}

	var resp QuotesResponse
	if err := c.post(ctx, "/partner/quotes", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateOrder places the delivery order with the selected courier.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	selectCriteria := map[string]any{
		"mode":   "selected_lsp",
		"lsp_id": req.CourierID,
	}
	if req.QuoteID != "" {
		selectCriteria["quote_id"] = req.QuoteID
	}

	payload := map[string]any{
		"client_order_id":         req.ClientOrderID,
		"retail_order_id":         req.ClientOrderID,
		"pickup":                  partyPayload(req.Pickup),
		"drop":                    partyPayload(req.Drop),
		"customer_promised_time":  time.Now().Add(time.Hour).Format("2006-01-02 15:04:05"),
		"callback_url":            c.callbackURL,
		"order_category":          "F&B",
		"search_category":         "Immediate Delivery",
		"order_amount":            req.OrderAmount,
		"cod_amount":              0,
		"order_weight":            req.OrderWeight,
		"order_items":             req.Items,
		"order_ready":             true,
		"select_criteria":         selectCriteria,
	}

	var resp CreateOrderResponse
	if err := c.post(ctx, "/partner/order/createasync", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func partyPayload(p Party) map[string]any {
	return map[string]any{
		"lat": p.Lat,
		"lng": p.Lng,
		"address": map[string]string{
			"name":  p.Name,
			"line1": p.Line1,
			"line2": "",
			"city":  p.City,
			"state": p.State,
		},
		"pincode": p.Pincode,
		"phone":   strings.ReplaceAll(strings.TrimPrefix(p.Phone, "+"), " ", ""),
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.ProviderError("logistics", path, err)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("logistics upstream error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// FindCheapest picks the lowest-price quote, skipping excluded couriers.
// Returns nil when nothing remains.
func FindCheapest(quotes []Quote, excluded map[string]bool) *Quote {
	var best *Quote
	for i := range quotes {
		q := &quotes[i]
		if excluded[q.CourierID] {
			continue
		}
		if best == nil || q.Price < best.Price {
			best = q
		}
	}
	return best
}
