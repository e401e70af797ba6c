// Package domain defines the ticket state machines and derived types shared by
// the repository, service, and handler layers. Transition rules live here so
// both the service code and the SQL guards agree on what is allowed.
package domain

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusReceived      TicketStatus = "received"
	StatusClassifying   TicketStatus = "classifying"
	StatusAnalyzing     TicketStatus = "analyzing"
	StatusResearching   TicketStatus = "researching"
	StatusFindingStores TicketStatus = "finding_stores"
	StatusCallingStores TicketStatus = "calling_stores"
	StatusCompleted     TicketStatus = "completed"
	StatusFailed        TicketStatus = "failed"
)

// ticketOrder assigns each pipeline state its position. failed sits outside
// the order and is reachable from any non-terminal state.
var ticketOrder = map[TicketStatus]int{
	StatusReceived:      0,
	StatusClassifying:   1,
	StatusAnalyzing:     2,
	StatusResearching:   3,
	StatusFindingStores: 4,
	StatusCallingStores: 5,
	StatusCompleted:     6,
}

// IsTerminal reports whether the status accepts no further pipeline transitions.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal,
// forward-only transition.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}

	from, okFrom := ticketOrder[s]
	to, okTo := ticketOrder[next]
	if !okFrom || !okTo {
		return false
	}

	return to > from
}

// ActiveStatuses lists every non-terminal ticket status, for SQL guards.
func ActiveStatuses() []string {
	return []string{
		string(StatusReceived),
		string(StatusClassifying),
		string(StatusAnalyzing),
		string(StatusResearching),
		string(StatusFindingStores),
		string(StatusCallingStores),
	}
}

// MaxStoresDefault is used when the create request omits max_stores.
const MaxStoresDefault = 4

// MaxStoresLimit is the hard cap on stores called per ticket.
const MaxStoresLimit = 10
