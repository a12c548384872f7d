package ledger

import (
	"context"
	"fmt"

	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reference types stamped on ledger rows.
const (
	ReferenceOrder            = "order"
	ReferenceSubscription     = "subscription"
	ReferenceManualAdjustment = "manual_adjustment"
)

// Actor identifies who caused a ledger movement.
type Actor struct {
	ID   uuid.UUID       `json:"id"`
	Role enums.ActorRole `json:"role"`
}

// SystemActor is the actor for scheduler-driven writes.
func SystemActor() Actor {
	return Actor{Role: enums.ActorRoleSystem}
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// Reference links a ledger row to the record that caused it.
type Reference struct {
	Type string
	ID   uuid.UUID
}

// OrderReference points at an order.
func OrderReference(orderID uuid.UUID) *Reference {
	return &Reference{Type: ReferenceOrder, ID: orderID}
}

// InventoryEntry is one stock movement. New - Previous must equal Change.
type InventoryEntry struct {
	ProductID uuid.UUID
	Change    int
	Previous  int
	New       int
	Type      enums.InventoryChangeType
	Reason    string
	Reference *Reference
	Actor     *Actor
}

// LoyaltyEntry is one points movement.
type LoyaltyEntry struct {
	CustomerID   uuid.UUID
	Change       int
	BalanceAfter int
	Type         enums.LoyaltyEntryType
	Reason       string
	Reference    *Reference
}

// Reconciliation compares a denormalized counter against its ledger.
type Reconciliation struct {
	SubjectID  uuid.UUID `json:"subject_id"`
	Current    int64     `json:"current"`
	LedgerSum  int64     `json:"ledger_sum"`
	Drift      int64     `json:"drift"`
	Consistent bool      `json:"consistent"`
}

// Service records and audits ledger movements. Writes require the caller's
// transaction so the row commits together with the counter it explains.
type Service interface {
	RecordInventory(ctx context.Context, tx *gorm.DB, entry InventoryEntry) (*models.InventoryLog, error)
	RecordLoyalty(ctx context.Context, tx *gorm.DB, entry LoyaltyEntry) (*models.LoyaltyLog, error)
	InventoryForReference(ctx context.Context, tx *gorm.DB, ref Reference) ([]models.InventoryLog, error)
	LoyaltyForReference(ctx context.Context, tx *gorm.DB, ref Reference) ([]models.LoyaltyLog, error)
	InventoryHistory(ctx context.Context, productID uuid.UUID, params pagination.Params) (pagination.Page[models.InventoryLog], error)
	LoyaltyHistory(ctx context.Context, customerID uuid.UUID, params pagination.Params) (pagination.Page[models.LoyaltyLog], error)
	ReconcileProduct(ctx context.Context, productID uuid.UUID) (Reconciliation, error)
	ReconcileCustomer(ctx context.Context, customerID uuid.UUID) (Reconciliation, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

var errTxRequired = pkgerrors.New(pkgerrors.CodeInternal, "ledger writes require a transaction")

func (s *service) RecordInventory(ctx context.Context, tx *gorm.DB, entry InventoryEntry) (*models.InventoryLog, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	if entry.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !entry.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid inventory change type %q", entry.Type))
	}
	if entry.Change == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory change must be non-zero")
	}
	if entry.New < 0 || entry.Previous < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger cannot go negative")
	}
	if entry.New-entry.Previous != entry.Change {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger entry does not balance")
	}

	row := &models.InventoryLog{
		ProductID:        entry.ProductID,
		ChangeQuantity:   entry.Change,
		PreviousQuantity: entry.Previous,
		NewQuantity:      entry.New,
		ChangeType:       entry.Type,
		Reason:           entry.Reason,
	}
	if entry.Reference != nil {
		refType, refID := entry.Reference.Type, entry.Reference.ID
		row.ReferenceType = &refType
		row.ReferenceID = &refID
	}
	if entry.Actor != nil {
		role := entry.Actor.Role
		row.ActorRole = &role
		if entry.Actor.ID != uuid.Nil {
			id := entry.Actor.ID
			row.ActorID = &id
		}
	}

	if err := s.repo.WithTx(tx).AppendInventory(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "append inventory log")
	}
	return row, nil
}

func (s *service) RecordLoyalty(ctx context.Context, tx *gorm.DB, entry LoyaltyEntry) (*models.LoyaltyLog, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	if entry.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if !entry.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid loyalty entry type %q", entry.Type))
	}
	if entry.Change == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points change must be non-zero")
	}
	if entry.BalanceAfter < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "points ledger cannot go negative")
	}

	row := &models.LoyaltyLog{
		CustomerID:   entry.CustomerID,
		PointsChange: entry.Change,
		BalanceAfter: entry.BalanceAfter,
		EntryType:    entry.Type,
		Reason:       entry.Reason,
	}
	if entry.Reference != nil {
		refType, refID := entry.Reference.Type, entry.Reference.ID
		row.ReferenceType = &refType
		row.ReferenceID = &refID
	}

	if err := s.repo.WithTx(tx).AppendLoyalty(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "append loyalty log")
	}
	return row, nil
}

func (s *service) InventoryForReference(ctx context.Context, tx *gorm.DB, ref Reference) ([]models.InventoryLog, error) {
	rows, err := s.repo.WithTx(tx).ListInventoryByReference(ctx, ref.Type, ref.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list inventory by reference")
	}
	return rows, nil
}

func (s *service) LoyaltyForReference(ctx context.Context, tx *gorm.DB, ref Reference) ([]models.LoyaltyLog, error) {
	rows, err := s.repo.WithTx(tx).ListLoyaltyByReference(ctx, ref.Type, ref.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list loyalty by reference")
	}
	return rows, nil
}

func (s *service) InventoryHistory(ctx context.Context, productID uuid.UUID, params pagination.Params) (pagination.Page[models.InventoryLog], error) {
	if err := validateCursor(params); err != nil {
		return pagination.Page[models.InventoryLog]{}, err
	}
	rows, err := s.repo.ListInventoryByProduct(ctx, productID, params)
	if err != nil {
		return pagination.Page[models.InventoryLog]{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list inventory history")
	}
	return pagination.Build(rows, params.Limit, func(row models.InventoryLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	}), nil
}

func (s *service) LoyaltyHistory(ctx context.Context, customerID uuid.UUID, params pagination.Params) (pagination.Page[models.LoyaltyLog], error) {
	if err := validateCursor(params); err != nil {
		return pagination.Page[models.LoyaltyLog]{}, err
	}
	rows, err := s.repo.ListLoyaltyByCustomer(ctx, customerID, params)
	if err != nil {
		return pagination.Page[models.LoyaltyLog]{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list loyalty history")
	}
	return pagination.Build(rows, params.Limit, func(row models.LoyaltyLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	}), nil
}

func (s *service) ReconcileProduct(ctx context.Context, productID uuid.UUID) (Reconciliation, error) {
	current, err := s.repo.ProductStock(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return Reconciliation{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load product stock")
	}
	sum, err := s.repo.SumInventory(ctx, productID)
	if err != nil {
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "sum inventory ledger")
	}
	return reconcile(productID, int64(current), sum), nil
}

func (s *service) ReconcileCustomer(ctx context.Context, customerID uuid.UUID) (Reconciliation, error) {
	current, err := s.repo.CustomerBalance(ctx, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return Reconciliation{}, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load points balance")
	}
	sum, err := s.repo.SumLoyalty(ctx, customerID)
	if err != nil {
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "sum loyalty ledger")
	}
	return reconcile(customerID, int64(current), sum), nil
}

func reconcile(id uuid.UUID, current, sum int64) Reconciliation {
	return Reconciliation{
		SubjectID:  id,
		Current:    current,
		LedgerSum:  sum,
		Drift:      current - sum,
		Consistent: current == sum,
	}
}

func validateCursor(params pagination.Params) error {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination cursor")
	}
	return nil
}
