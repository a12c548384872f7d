package ledger

import (
	"context"

	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for the stock and points ledgers. Rows are
// only ever appended.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AppendInventory(ctx context.Context, entry *models.InventoryLog) error
	AppendLoyalty(ctx context.Context, entry *models.LoyaltyLog) error
	ListInventoryByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.InventoryLog, error)
	ListInventoryByReference(ctx context.Context, refType string, refID uuid.UUID) ([]models.InventoryLog, error)
	ListLoyaltyByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.LoyaltyLog, error)
	ListLoyaltyByReference(ctx context.Context, refType string, refID uuid.UUID) ([]models.LoyaltyLog, error)
	SumInventory(ctx context.Context, productID uuid.UUID) (int64, error)
	SumLoyalty(ctx context.Context, customerID uuid.UUID) (int64, error)
	ProductStock(ctx context.Context, productID uuid.UUID) (int, error)
	CustomerBalance(ctx context.Context, customerID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) AppendInventory(ctx context.Context, entry *models.InventoryLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) AppendLoyalty(ctx context.Context, entry *models.LoyaltyLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListInventoryByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.InventoryLog, error) {
	scope, err := pagination.Scope(params, "")
	if err != nil {
		return nil, err
	}
	var rows []models.InventoryLog
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Scopes(scope).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListInventoryByReference(ctx context.Context, refType string, refID uuid.UUID) ([]models.InventoryLog, error) {
	var rows []models.InventoryLog
	if err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListLoyaltyByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.LoyaltyLog, error) {
	scope, err := pagination.Scope(params, "")
	if err != nil {
		return nil, err
	}
	var rows []models.LoyaltyLog
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Scopes(scope).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListLoyaltyByReference(ctx context.Context, refType string, refID uuid.UUID) ([]models.LoyaltyLog, error) {
	var rows []models.LoyaltyLog
	if err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SumInventory(ctx context.Context, productID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryLog{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(change_quantity), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) SumLoyalty(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LoyaltyLog{}).
		Where("customer_id = ?", customerID).
		Select("COALESCE(SUM(points_change), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Select("id", "stock_quantity").
		Where("id = ?", productID).
		First(&product).Error; err != nil {
		return 0, err
	}
	return product.StockQuantity, nil
}

func (r *repository) CustomerBalance(ctx context.Context, customerID uuid.UUID) (int, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Select("id", "points_balance").
		Where("id = ?", customerID).
		First(&customer).Error; err != nil {
		return 0, err
	}
	return customer.PointsBalance, nil
}
