package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// Product is a sellable item. StockQuantity is written only by the inventory manager.
type Product struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name              string                `gorm:"column:name;not null"`
	Category          enums.ProductCategory `gorm:"column:category;type:text;not null"`
	PriceCents        int64                 `gorm:"column:price_cents;not null"`
	StockQuantity     int                   `gorm:"column:stock_quantity;not null;default:0;check:chk_products_stock_non_negative,stock_quantity >= 0"`
	LowStockThreshold int                   `gorm:"column:low_stock_threshold;not null;default:0"`
	IsActive          bool                  `gorm:"column:is_active;not null"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
