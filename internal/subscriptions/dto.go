package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// ItemInput is one template line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,lte=1000"`
}

// CreateSubscriptionInput starts a recurring delivery. A nil StartDate means
// the first delivery is due today.
type CreateSubscriptionInput struct {
	CustomerID    uuid.UUID           `json:"customer_id" validate:"required"`
	Items         []ItemInput         `json:"items" validate:"required,min=1,max=20,dive"`
	FrequencyDays int                 `json:"frequency_days" validate:"gte=1,lte=365"`
	StartDate     *time.Time          `json:"start_date"`
	ZoneID        *uuid.UUID          `json:"zone_id"`
	Address       string              `json:"address" validate:"max=500"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required"`
	Actor         ledger.Actor        `json:"-"`
}

// BatchReport summarizes one scheduler run.
type BatchReport struct {
	Date                time.Time `json:"date"`
	Due                 int       `json:"due"`
	Created             int       `json:"created"`
	AlreadyMaterialized int       `json:"already_materialized"`
	Skipped             int       `json:"skipped"`
	Failed              int       `json:"failed"`
	// Errors combines per-subscription failures. They never fail the batch.
	Errors error `json:"-"`
}
