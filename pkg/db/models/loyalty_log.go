package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// LoyaltyLog is an append-only points ledger row. BalanceAfter is the customer's balance once applied.
type LoyaltyLog struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID    uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	PointsChange  int                    `gorm:"column:points_change;not null"`
	BalanceAfter  int                    `gorm:"column:balance_after;not null"`
	EntryType     enums.LoyaltyEntryType `gorm:"column:entry_type;type:text;not null"`
	Reason        string                 `gorm:"column:reason;not null;default:''"`
	ReferenceType *string                `gorm:"column:reference_type"`
	ReferenceID   *uuid.UUID             `gorm:"column:reference_id;type:uuid;index"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (l *LoyaltyLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
