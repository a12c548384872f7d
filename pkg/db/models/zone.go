package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Zone is delivery-area reference data. A nil fee falls back to the configured default.
type Zone struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name             string    `gorm:"column:name;not null"`
	DeliveryFeeCents *int64    `gorm:"column:delivery_fee_cents"`
	IsActive         bool      `gorm:"column:is_active;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (z *Zone) BeforeCreate(*gorm.DB) error {
	ensureID(&z.ID)
	return nil
}
