package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,lte=1000"`
}

// CreateOrderCommand is everything create needs, validated before the
// transaction opens.
type CreateOrderCommand struct {
	CustomerID    uuid.UUID           `json:"customer_id" validate:"required"`
	Items         []ItemInput         `json:"items" validate:"required,min=1,max=50,dive"`
	Address       string              `json:"address" validate:"max=500"`
	ZoneID        *uuid.UUID          `json:"zone_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required"`
	RedeemPoints  int                 `json:"redeem_points" validate:"gte=0"`
	Source        enums.OrderSource   `json:"source"`
	Actor         ledger.Actor        `json:"-"`

	// Set only when the scheduler materializes a subscription.
	SubscriptionID      *uuid.UUID `json:"-"`
	SubscriptionDueDate *time.Time `json:"-"`
}

// TransitionOrderCommand moves an order to Status.
type TransitionOrderCommand struct {
	OrderID uuid.UUID         `json:"order_id" validate:"required"`
	Status  enums.OrderStatus `json:"status" validate:"required"`
	Reason  string            `json:"reason" validate:"max=500"`
	Actor   ledger.Actor      `json:"-"`
}

// TransitionResult reports the order after a transition. Changed is false for
// the same-status no-op.
type TransitionResult struct {
	Order    *models.Order     `json:"order"`
	Previous enums.OrderStatus `json:"previous_status"`
	Changed  bool              `json:"changed"`
}

// ListFilter narrows a customer's order history.
type ListFilter struct {
	Status *enums.OrderStatus
}
