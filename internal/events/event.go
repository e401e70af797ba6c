// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"dialcart_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Voice Call Events
// =============================================================================

// CallStarted is published when the voice provider reports a call ringing or
// answered. Status carries the mapped store-call status (dialing/in_progress).
type CallStarted struct {
	BaseEvent
	ProviderCallID string `json:"providerCallId"`
	Status         string `json:"status"`
}

func (e CallStarted) EventName() string { return "voice.call.started" }

// CallEnded is published when the voice provider reports the call finished.
type CallEnded struct {
	BaseEvent
	ProviderCallID string `json:"providerCallId"`
	Succeeded      bool   `json:"succeeded"`
	Reason         string `json:"reason,omitempty"`
}

func (e CallEnded) EventName() string { return "voice.call.ended" }

// CallTranscriptReady is published when the provider delivers the transcript
// of a finished call.
type CallTranscriptReady struct {
	BaseEvent
	ProviderCallID string `json:"providerCallId"`
	Transcript     string `json:"transcript"`
}

func (e CallTranscriptReady) EventName() string { return "voice.call.transcript_ready" }

// =============================================================================
// Ticket Events
// =============================================================================

// TicketCompleted is published when a ticket's pipeline reaches a terminal
// result with at least one option or web deal.
type TicketCompleted struct {
	BaseEvent
	TicketID     uuid.UUID `json:"ticketId"`
	OptionCount  int       `json:"optionCount"`
	WebDealCount int       `json:"webDealCount"`
}

func (e TicketCompleted) EventName() string { return "ticket.completed" }

// TicketFailed is published when a ticket's pipeline fails terminally.
type TicketFailed struct {
	BaseEvent
	TicketID uuid.UUID `json:"ticketId"`
	Reason   string    `json:"reason"`
}

func (e TicketFailed) EventName() string { return "ticket.failed" }

// =============================================================================
// Delivery Events
// =============================================================================

// DeliveryStateChanged is published when a logistics callback advances an
// order's state.
type DeliveryStateChanged struct {
	BaseEvent
	TicketID uuid.UUID `json:"ticketId"`
	OrderID  uuid.UUID `json:"orderId"`
	State    string    `json:"state"`
}

func (e DeliveryStateChanged) EventName() string { return "logistics.delivery.state_changed" }
