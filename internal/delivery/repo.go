package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
)

// Repository persists delivery assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.DeliveryAssignment) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	LockByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected enums.DeliveryStatus, updates map[string]any) error
	ListByStaff(ctx context.Context, staffID uuid.UUID, statuses []enums.DeliveryStatus) ([]models.DeliveryAssignment, error)
	CloseByOrder(ctx context.Context, orderID uuid.UUID, from, to enums.DeliveryStatus, reason string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, assignment *models.DeliveryAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) LockByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// UpdateStatus is a compare-and-swap on the assignment status.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, expected enums.DeliveryStatus, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "delivery assignment changed concurrently")
	}
	return nil
}

func (r *repository) ListByStaff(ctx context.Context, staffID uuid.UUID, statuses []enums.DeliveryStatus) ([]models.DeliveryAssignment, error) {
	query := r.db.WithContext(ctx).Where("delivery_staff_id = ?", staffID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var out []models.DeliveryAssignment
	if err := query.Order("assigned_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CloseByOrder moves the order's assignment from -> to when it is still in
// from. It reports how many rows changed.
func (r *repository) CloseByOrder(ctx context.Context, orderID uuid.UUID, from, to enums.DeliveryStatus, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":              to,
			"cancellation_reason": reason,
			"updated_at":          time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
