package catalog

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// CreateProductInput describes a new sellable product. InitialStock is booked
// through the inventory ledger as a restock.
type CreateProductInput struct {
	Name              string                `json:"name" validate:"required,max=120"`
	Category          enums.ProductCategory `json:"category" validate:"required"`
	PriceCents        int64                 `json:"price_cents" validate:"gte=0"`
	InitialStock      int                   `json:"initial_stock" validate:"gte=0"`
	LowStockThreshold int                   `json:"low_stock_threshold" validate:"gte=0"`
	IsActive          bool                  `json:"is_active"`
	Actor             ledger.Actor          `json:"-"`
}

// UpdateProductInput changes pricing and availability. Stock is not editable here.
type UpdateProductInput struct {
	Name              *string `json:"name" validate:"omitempty,max=120"`
	PriceCents        *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	LowStockThreshold *int    `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	IsActive          *bool   `json:"is_active"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category     *enums.ProductCategory
	ActiveOnly   bool
	LowStockOnly bool
}

// CreateZoneInput describes a delivery zone. A nil fee uses the default delivery fee.
type CreateZoneInput struct {
	Name             string `json:"name" validate:"required,max=120"`
	DeliveryFeeCents *int64 `json:"delivery_fee_cents" validate:"omitempty,gte=0"`
	IsActive         bool   `json:"is_active"`
}

// UpdateZoneInput changes a zone's fee or availability.
type UpdateZoneInput struct {
	DeliveryFeeCents *int64 `json:"delivery_fee_cents" validate:"omitempty,gte=0"`
	ClearFee         bool   `json:"clear_fee"`
	IsActive         *bool  `json:"is_active"`
}

// CreateCustomerInput registers a loyalty customer.
type CreateCustomerInput struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// PricedProduct is the pricing input for one product id.
type PricedProduct struct {
	ID                uuid.UUID
	Name              string
	Category          enums.ProductCategory
	PriceCents        int64
	StockQuantity     int
	LowStockThreshold int
	IsActive          bool
}

// ZoneQuote is the pricing input for a delivery zone.
type ZoneQuote struct {
	ID               uuid.UUID
	DeliveryFeeCents *int64
	IsActive         bool
}
