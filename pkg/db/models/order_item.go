package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// OrderItem snapshots the product price, name and category at order time.
type OrderItem struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string                `gorm:"column:product_name;not null"`
	Category       enums.ProductCategory `gorm:"column:category;type:text;not null"`
	Quantity       int                   `gorm:"column:quantity;not null;check:chk_order_items_quantity_positive,quantity > 0"`
	UnitPriceCents int64                 `gorm:"column:unit_price_cents;not null"`
	SubtotalCents  int64                 `gorm:"column:subtotal_cents;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
