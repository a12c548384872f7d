package delivery

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

// AssignCommand hands an order to a delivery staff member.
type AssignCommand struct {
	OrderID uuid.UUID    `json:"order_id" validate:"required"`
	StaffID uuid.UUID    `json:"staff_id" validate:"required"`
	Actor   ledger.Actor `json:"-"`
}

// AcceptCommand is a delivery staff member claiming an order for themselves.
type AcceptCommand struct {
	OrderID uuid.UUID    `json:"order_id" validate:"required"`
	Actor   ledger.Actor `json:"-"`
}

// UpdateCommand moves an assignment along the dispatcher state machine.
type UpdateCommand struct {
	OrderID uuid.UUID            `json:"order_id" validate:"required"`
	Status  enums.DeliveryStatus `json:"status" validate:"required"`
	Reason  string               `json:"reason" validate:"max=500"`
	Actor   ledger.Actor         `json:"-"`
}

// Result carries the assignment and the order it mirrors onto.
type Result struct {
	Assignment *models.DeliveryAssignment `json:"assignment"`
	Order      *models.Order              `json:"order"`
	Changed    bool                       `json:"changed"`
}
