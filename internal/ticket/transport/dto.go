// Package transport defines the request and response DTOs for the ticket API.
package transport

import (
	"time"

	"dialcart_backend/internal/webdeals"
)

// CreateTicketRequest is the body of POST /api/ticket.
type CreateTicketRequest struct {
	Query     string `json:"query" binding:"required"`
	Location  string `json:"location" binding:"required"`
	UserPhone string `json:"user_phone" binding:"required"`
	UserName  string `json:"user_name"`
	MaxStores int    `json:"max_stores"`
}

// CreateTicketResponse acknowledges a create. A rejected intent returns
// status "rejected" with a message and no ticket id.
type CreateTicketResponse struct {
	TicketID string `json:"ticket_id,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// ProductView is the researched product summary in status responses.
type ProductView struct {
	Name           string  `json:"name"`
	Category       string  `json:"category,omitempty"`
	AvgPriceOnline float64 `json:"avg_price_online,omitempty"`
}

// CallProgress summarizes discovery and call activity for a ticket in flight.
// Counters are recomputed from rows on every read, never cached. A call counts
// as completed once the conversation ended (completed, analyzed, or
// unanalyzable); failed calls are reported separately.
type CallProgress struct {
	StoresFound     int `json:"stores_found"`
	CallsTotal      int `json:"calls_total"`
	CallsCompleted  int `json:"calls_completed"`
	CallsInProgress int `json:"calls_in_progress"`
	CallsFailed     int `json:"calls_failed"`
}

// TicketStatusResponse is the body of GET /api/ticket/:id.
type TicketStatusResponse struct {
	TicketID     string        `json:"ticket_id"`
	Status       string        `json:"status"`
	Query        string        `json:"query"`
	Location     string        `json:"location"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Product      *ProductView  `json:"product,omitempty"`
	Progress     *CallProgress `json:"progress,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Option is one confirmable store result.
type Option struct {
	StoreCallID       string  `json:"store_call_id"`
	StoreName         string  `json:"store_name"`
	StoreAddress      string  `json:"store_address"`
	StorePhone        string  `json:"store_phone"`
	Rating            float64 `json:"rating,omitempty"`
	MatchedProduct    string  `json:"matched_product,omitempty"`
	MatchType         string  `json:"match_type"`
	Price             float64 `json:"price,omitempty"`
	DeliveryAvailable bool    `json:"delivery_available"`
	DeliveryETA       string  `json:"delivery_eta,omitempty"`
	DeliveryCharge    float64 `json:"delivery_charge,omitempty"`
	Summary           string  `json:"summary,omitempty"`
}

// OptionsResponse is the body of GET /api/ticket/:id/options.
type OptionsResponse struct {
	TicketID string           `json:"ticket_id"`
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Options  []Option         `json:"options"`
	WebDeals *webdeals.Result `json:"web_deals,omitempty"`
}

// ConfirmRequest is the body of POST /api/ticket/:id/confirm.
type ConfirmRequest struct {
	StoreCallID  string `json:"store_call_id" binding:"required,uuid"`
	CustomerName string `json:"customer_name"`
}

// ConfirmResponse acknowledges a confirmed option and the booked delivery.
type ConfirmResponse struct {
	TicketID    string  `json:"ticket_id"`
	OrderID     string  `json:"order_id"`
	State       string  `json:"state"`
	CourierName string  `json:"courier_name,omitempty"`
	QuotedPrice float64 `json:"quoted_price,omitempty"`
	TrackingURL string  `json:"tracking_url,omitempty"`
}

// DeliveryResponse is the body of GET /api/ticket/:id/delivery.
type DeliveryResponse struct {
	TicketID      string    `json:"ticket_id"`
	OrderID       string    `json:"order_id"`
	State         string    `json:"state"`
	CourierName   string    `json:"courier_name,omitempty"`
	RiderName     string    `json:"rider_name,omitempty"`
	RiderPhone    string    `json:"rider_phone,omitempty"`
	TrackingURL   string    `json:"tracking_url,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Attempt       int       `json:"attempt"`
	UpdatedAt     time.Time `json:"updated_at"`
}
