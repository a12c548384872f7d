package orders

import "github.com/angelmondragon/aquaflow-backend/pkg/enums"

// transitions is the complete order state machine. Terminal states have no entry.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from status in one step.
func AllowedTransitions(status enums.OrderStatus) []enums.OrderStatus {
	next := transitions[status]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}
