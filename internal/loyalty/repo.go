package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
)

// Repository reads and writes customer point balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	CompareAndSetBalance(ctx context.Context, customerID uuid.UUID, expected, next int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a balance repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LockCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", customerID).
		First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) CompareAndSetBalance(ctx context.Context, customerID uuid.UUID, expected, next int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND points_balance = ?", customerID, expected).
		Updates(map[string]any{
			"points_balance": next,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "points balance changed concurrently")
	}
	return nil
}
