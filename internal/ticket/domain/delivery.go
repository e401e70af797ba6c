package domain

// DeliveryState is the lifecycle state of a logistics order.
type DeliveryState string

const (
	DeliveryAwaitingConfirm DeliveryState = "awaiting_confirm"
	DeliveryPlacingOrder    DeliveryState = "placing_order"
	DeliveryOrderPlaced     DeliveryState = "order_placed"
	DeliveryAgentAssigned   DeliveryState = "agent_assigned"
	DeliveryOutForDelivery  DeliveryState = "out_for_delivery"
	DeliveryDelivered       DeliveryState = "delivered"
	DeliveryFailed          DeliveryState = "delivery_failed"
)

var deliveryOrder = map[DeliveryState]int{
	DeliveryAwaitingConfirm: 0,
	DeliveryPlacingOrder:    1,
	DeliveryOrderPlaced:     2,
	DeliveryAgentAssigned:   3,
	DeliveryOutForDelivery:  4,
	DeliveryDelivered:       5,
}

// IsTerminal reports whether the delivery state accepts no further transitions.
func (s DeliveryState) IsTerminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailed
}

// CanTransitionTo reports whether moving from s to next is a legal,
// forward-only transition. Equal or earlier states are rejected, which makes
// duplicate and out-of-order callbacks no-ops.
func (s DeliveryState) CanTransitionTo(next DeliveryState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == DeliveryFailed {
		return true
	}

	from, okFrom := deliveryOrder[s]
	to, okTo := deliveryOrder[next]
	if !okFrom || !okTo {
		return false
	}

	return to > from
}

// PriorStates returns the states from which a transition to s is applied,
// for use as a SQL conditional-update guard.
func (s DeliveryState) PriorStates() []string {
	if s == DeliveryFailed {
		out := make([]string, 0, len(deliveryOrder))
		for st := range deliveryOrder {
			out = append(out, string(st))
		}
		return out
	}

	target, ok := deliveryOrder[s]
	if !ok {
		return nil
	}

	out := make([]string, 0, target)
	for st, pos := range deliveryOrder {
		if pos < target {
			out = append(out, string(st))
		}
	}
	return out
}
