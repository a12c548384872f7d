package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// InventoryLog is an append-only stock ledger row. NewQuantity - PreviousQuantity == ChangeQuantity.
type InventoryLog struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	ChangeQuantity   int                       `gorm:"column:change_quantity;not null"`
	PreviousQuantity int                       `gorm:"column:previous_quantity;not null"`
	NewQuantity      int                       `gorm:"column:new_quantity;not null"`
	ChangeType       enums.InventoryChangeType `gorm:"column:change_type;type:text;not null"`
	Reason           string                    `gorm:"column:reason;not null;default:''"`
	ReferenceType    *string                   `gorm:"column:reference_type"`
	ReferenceID      *uuid.UUID                `gorm:"column:reference_id;type:uuid;index"`
	ActorID          *uuid.UUID                `gorm:"column:actor_id;type:uuid"`
	ActorRole        *enums.ActorRole          `gorm:"column:actor_role;type:text"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (l *InventoryLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
