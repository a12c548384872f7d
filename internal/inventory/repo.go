package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
)

// Repository reads and writes product stock counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	CompareAndSetStock(ctx context.Context, productID uuid.UUID, expected, next int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a stock repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockProducts selects rows FOR UPDATE in id order so concurrent reservations
// over overlapping products acquire locks in the same sequence.
func (r *repository) LockProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// CompareAndSetStock writes next only when the row still holds expected.
func (r *repository) CompareAndSetStock(ctx context.Context, productID uuid.UUID, expected, next int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity = ?", productID, expected).
		Updates(map[string]any{
			"stock_quantity": next,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "product stock changed concurrently")
	}
	return nil
}
