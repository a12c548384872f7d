package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// Subscription is a recurring delivery template. NextDeliveryDate is a UTC calendar date.
type Subscription struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID       uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	Status           enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'active'"`
	FrequencyDays    int                      `gorm:"column:frequency_days;not null;check:chk_subscriptions_frequency_positive,frequency_days > 0"`
	NextDeliveryDate time.Time                `gorm:"column:next_delivery_date;type:date;not null;index"`
	ZoneID           *uuid.UUID               `gorm:"column:zone_id;type:uuid"`
	Address          string                   `gorm:"column:address;not null;default:''"`
	PaymentMethod    enums.PaymentMethod      `gorm:"column:payment_method;type:text;not null;default:'cash'"`
	LastOrderID      *uuid.UUID               `gorm:"column:last_order_id;type:uuid"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
	Items            []SubscriptionItem       `gorm:"foreignKey:SubscriptionID"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// IsActive reports whether the scheduler should materialize this subscription.
func (s Subscription) IsActive() bool {
	return s.Status == enums.SubscriptionStatusActive
}

// SubscriptionItem is one template line of a subscription.
type SubscriptionItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int       `gorm:"column:quantity;not null;check:chk_subscription_items_quantity_positive,quantity > 0"`
}

func (i *SubscriptionItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
