package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
)

// Repository persists products, zones and customers. Stock and point
// balances are never written here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, productID uuid.UUID, updates map[string]any) error
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	CreateZone(ctx context.Context, zone *models.Zone) error
	UpdateZone(ctx context.Context, zoneID uuid.UUID, updates map[string]any) error
	FindZone(ctx context.Context, zoneID uuid.UUID) (*models.Zone, error)
	ListZones(ctx context.Context, activeOnly bool) ([]models.Zone, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a catalog repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) UpdateProduct(ctx context.Context, productID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.LowStockOnly {
		query = query.Where("stock_quantity <= low_stock_threshold")
	}
	var products []models.Product
	if err := query.Order("name ASC").Order("id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) CreateZone(ctx context.Context, zone *models.Zone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

func (r *repository) UpdateZone(ctx context.Context, zoneID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", zoneID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindZone(ctx context.Context, zoneID uuid.UUID) (*models.Zone, error) {
	var zone models.Zone
	if err := r.db.WithContext(ctx).Where("id = ?", zoneID).First(&zone).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *repository) ListZones(ctx context.Context, activeOnly bool) ([]models.Zone, error) {
	query := r.db.WithContext(ctx).Model(&models.Zone{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var zones []models.Zone
	if err := query.Order("name ASC").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

func (r *repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
