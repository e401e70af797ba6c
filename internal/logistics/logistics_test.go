package logistics

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"dialcart_backend/internal/ticket/domain"
)

func TestFindCheapest(t *testing.T) {
	quotes := []Quote{
		{CourierID: "lsp-a", Price: 80},
		{CourierID: "lsp-b", Price: 45},
		{CourierID: "lsp-c", Price: 60},
	}

	best := FindCheapest(quotes, nil)
	if best == nil || best.CourierID != "lsp-b" {
		t.Errorf("best = %+v, want lsp-b", best)
	}

	best = FindCheapest(quotes, map[string]bool{"lsp-b": true})
	if best == nil || best.CourierID != "lsp-c" {
		t.Errorf("best with lsp-b excluded = %+v, want lsp-c", best)
	}

	if FindCheapest(nil, nil) != nil {
		t.Error("no quotes must yield nil")
	}
	if FindCheapest(quotes, map[string]bool{"lsp-a": true, "lsp-b": true, "lsp-c": true}) != nil {
		t.Error("all excluded must yield nil")
	}
}

func TestExtractPincode(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"12 MG Road, Indiranagar, Bengaluru, Karnataka 560038, India", "560038"},
		{"Shop 4, Linking Road, Mumbai 400050", "400050"},
		{"no pincode here", ""},
		{"serial 0123456 is not a pincode", ""},
		{"phone 9876543210 is too long", ""},
	}
	for _, tt := range tests {
		if got := ExtractPincode(tt.address); got != tt.want {
			t.Errorf("ExtractPincode(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestCityFromAddress(t *testing.T) {
	got := cityFromAddress("12 MG Road, Indiranagar, Bengaluru, Karnataka 560038, India")
	if got != "Bengaluru" {
		t.Errorf("city = %q, want Bengaluru", got)
	}
	if cityFromAddress("too short") != "" {
		t.Error("short address must yield empty city")
	}
}

func TestClientOrderIDShape(t *testing.T) {
	ticketID := uuid.New()
	id := clientOrderID(ticketID)

	parts := strings.Split(id, "_")
	if len(parts) != 2 || parts[0] != ticketID.String() || len(parts[1]) != 8 {
		t.Errorf("client order id = %q, want <ticket>_<8 chars>", id)
	}
	if clientOrderID(ticketID) == id {
		t.Error("client order ids must be unique per attempt")
	}
}

func TestProviderStateMapping(t *testing.T) {
	tests := []struct {
		provider string
		want     domain.DeliveryState
	}{
		{"Agent-assigned", domain.DeliveryAgentAssigned},
		{"Out-for-delivery", domain.DeliveryOutForDelivery},
		{"Order-delivered", domain.DeliveryDelivered},
		{"Cancelled", domain.DeliveryFailed},
		{"RTO-Initiated", domain.DeliveryFailed},
	}
	for _, tt := range tests {
		got, ok := providerStates[tt.provider]
		if !ok || got != tt.want {
			t.Errorf("providerStates[%q] = %v (%v), want %v", tt.provider, got, ok, tt.want)
		}
	}

	if _, ok := providerStates["Unknown-State"]; ok {
		t.Error("unknown provider states must not map")
	}
}

func TestOnlyCancellationRebooks(t *testing.T) {
	if !rebookableStates["Cancelled"] {
		t.Error("courier cancellation must trigger a rebook")
	}
	// Once the parcel left the store a different courier cannot pick it up.
	if rebookableStates["RTO-Initiated"] || rebookableStates["RTO-Delivered"] {
		t.Error("RTO states must not trigger a rebook")
	}
}

func TestCallbackEventID(t *testing.T) {
	p := callbackPayload{OrderID: "ord-1", State: "Agent-assigned", EventTime: "2026-08-27T10:00:00Z"}
	q := callbackPayload{OrderID: "ord-1", State: "Agent-assigned", EventTime: "2026-08-27T10:00:00Z"}
	if p.eventID() != q.eventID() {
		t.Error("event id must be stable across redeliveries")
	}

	withoutTime := callbackPayload{OrderID: "ord-1", State: "Agent-assigned"}
	if p.eventID() == withoutTime.eventID() {
		t.Error("event time must distinguish deliveries when present")
	}
}
