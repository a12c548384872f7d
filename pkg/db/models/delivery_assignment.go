package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// DeliveryAssignment is the dispatcher's 1:1 companion to an order.
type DeliveryAssignment struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DeliveryStaffID    *uuid.UUID           `gorm:"column:delivery_staff_id;type:uuid;index"`
	Status             enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CancellationReason *string              `gorm:"column:cancellation_reason"`
	AssignedAt         *time.Time           `gorm:"column:assigned_at"`
	PickedUpAt         *time.Time           `gorm:"column:picked_up_at"`
	DeliveredAt        *time.Time           `gorm:"column:delivered_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *DeliveryAssignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
