package loyalty

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
)

// AccrueCommand credits earned points.
type AccrueCommand struct {
	CustomerID uuid.UUID `validate:"required"`
	Points     int       `validate:"gte=0"`
	Reason     string
	Reference  *ledger.Reference
}

// RedeemCommand debits up to RequestedPoints, clamped to the balance and,
// when MaxDiscountCents is set, to the points that amount covers.
type RedeemCommand struct {
	CustomerID       uuid.UUID `validate:"required"`
	RequestedPoints  int       `validate:"gte=0"`
	PesoPerPoint     decimal.Decimal
	MaxDiscountCents *int64
	Reason           string
	Reference        *ledger.Reference
}

// Redemption is what a redeem actually applied.
type Redemption struct {
	AppliedPoints int   `json:"applied_points"`
	DiscountCents int64 `json:"discount_cents"`
	BalanceAfter  int   `json:"balance_after"`
}

// RefundCommand returns previously redeemed points.
type RefundCommand struct {
	CustomerID uuid.UUID `validate:"required"`
	Points     int       `validate:"gt=0"`
	Reason     string
	Reference  *ledger.Reference
}
