package delivery

import "github.com/angelmondragon/aquaflow-backend/pkg/enums"

var transitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusPending:        {enums.DeliveryStatusAssigned},
	enums.DeliveryStatusAssigned:       {enums.DeliveryStatusOutForDelivery, enums.DeliveryStatusCancelled},
	enums.DeliveryStatusOutForDelivery: {enums.DeliveryStatusDelivered, enums.DeliveryStatusFailed},
}

// orderStatusFor maps each dispatcher state onto the order state it mirrors.
var orderStatusFor = map[enums.DeliveryStatus]enums.OrderStatus{
	enums.DeliveryStatusAssigned:       enums.OrderStatusConfirmed,
	enums.DeliveryStatusOutForDelivery: enums.OrderStatusOutForDelivery,
	enums.DeliveryStatusDelivered:      enums.OrderStatusDelivered,
	enums.DeliveryStatusFailed:         enums.OrderStatusCancelled,
	enums.DeliveryStatusCancelled:      enums.OrderStatusCancelled,
}

// closeTargets is where an open assignment lands when its order is cancelled
// outside the dispatcher.
var closeTargets = []struct{ from, to enums.DeliveryStatus }{
	{enums.DeliveryStatusAssigned, enums.DeliveryStatusCancelled},
	{enums.DeliveryStatusOutForDelivery, enums.DeliveryStatusFailed},
}

// CanTransition reports whether the assignment may move from -> to.
func CanTransition(from, to enums.DeliveryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderStatusFor returns the order status a dispatcher state mirrors onto.
// Pending has no counterpart.
func OrderStatusFor(status enums.DeliveryStatus) (enums.OrderStatus, bool) {
	mapped, ok := orderStatusFor[status]
	return mapped, ok
}
