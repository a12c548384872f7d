package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer owns a loyalty balance. PointsBalance is written only by the loyalty manager.
type Customer struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	Phone         *string   `gorm:"column:phone"`
	Email         *string   `gorm:"column:email"`
	PointsBalance int       `gorm:"column:points_balance;not null;default:0;check:chk_customers_points_non_negative,points_balance >= 0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
