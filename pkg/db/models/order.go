package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// Order is the durable record of a purchase. Only the order engine writes Status.
type Order struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID          uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Source              enums.OrderSource   `gorm:"column:source;type:text;not null;default:'online'"`
	Status              enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	ZoneID              *uuid.UUID          `gorm:"column:zone_id;type:uuid"`
	Address             string              `gorm:"column:address;not null;default:''"`
	SubtotalCents       int64               `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents    int64               `gorm:"column:delivery_fee_cents;not null;default:0"`
	DiscountCents       int64               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents          int64               `gorm:"column:total_cents;not null"`
	PointsEarned        int                 `gorm:"column:points_earned;not null;default:0"`
	PointsRedeemed      int                 `gorm:"column:points_redeemed;not null;default:0"`
	StockDeducted       bool                `gorm:"column:stock_deducted;not null;default:false"`
	CancellationReason  *string             `gorm:"column:cancellation_reason"`
	SubscriptionID      *uuid.UUID          `gorm:"column:subscription_id;type:uuid;uniqueIndex:ux_orders_subscription_due"`
	SubscriptionDueDate *time.Time          `gorm:"column:subscription_due_date;type:date;uniqueIndex:ux_orders_subscription_due"`
	DeliveredAt         *time.Time          `gorm:"column:delivered_at"`
	CancelledAt         *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	Items               []OrderItem         `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
