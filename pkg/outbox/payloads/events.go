package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order, from any source.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	CustomerID     uuid.UUID         `json:"customer_id"`
	Source         enums.OrderSource `json:"source"`
	TotalCents     int64             `json:"total_cents"`
	SubscriptionID *uuid.UUID        `json:"subscription_id,omitempty"`
}

// OrderStatusChangedEvent is emitted for every applied order transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	Status     enums.OrderStatus `json:"status"`
	Previous   enums.OrderStatus `json:"previous_status"`
	Reason     string            `json:"reason,omitempty"`
}

// LowStockSignalEvent fires when a decrement leaves an active product at or below its threshold.
type LowStockSignalEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Threshold int       `json:"threshold"`
}

// PointsAccruedEvent reports points credited for a delivered order.
type PointsAccruedEvent struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	OrderID      uuid.UUID `json:"order_id"`
	Points       int       `json:"points"`
	BalanceAfter int       `json:"balance_after"`
}

// SubscriptionOrderSkippedEvent reports a due subscription that could not be materialized.
type SubscriptionOrderSkippedEvent struct {
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	DueDate        time.Time       `json:"due_date"`
	Reason         string          `json:"reason"`
	Shortfalls     []StockShortage `json:"shortfalls,omitempty"`
}

// StockShortage is one line that could not be covered.
type StockShortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}
