package inventory

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// Line is one product quantity to take or restore.
type Line struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// ReserveCommand takes stock for every line or for none of them.
type ReserveCommand struct {
	Lines     []Line
	Reference *ledger.Reference
	Actor     ledger.Actor
	Reason    string
}

// ReleaseCommand restores stock previously taken for the same reference.
type ReleaseCommand struct {
	Lines     []Line
	Reference *ledger.Reference
	Actor     ledger.Actor
	Reason    string
}

// AdjustCommand is a manual stock movement by an operator.
type AdjustCommand struct {
	ProductID uuid.UUID                 `json:"product_id" validate:"required"`
	Delta     int                       `json:"delta" validate:"ne=0"`
	Type      enums.InventoryChangeType `json:"type"`
	Reason    string                    `json:"reason" validate:"required,max=255"`
	Actor     ledger.Actor              `json:"-"`
}

// ReservationReceipt lists the ledger rows written by a reservation and the
// products it left at or below their low-stock threshold.
type ReservationReceipt struct {
	Entries  []models.InventoryLog
	LowStock []uuid.UUID
}

// Shortfall describes a line that stock could not cover.
type Shortfall struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}
