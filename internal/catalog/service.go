package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/inventory"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdjuster interface {
	AdjustWithTx(ctx context.Context, tx *gorm.DB, cmd inventory.AdjustCommand) (int, error)
}

// Service manages products, zones and customers and answers pricing lookups.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	CreateZone(ctx context.Context, input CreateZoneInput) (*models.Zone, error)
	UpdateZone(ctx context.Context, zoneID uuid.UUID, input UpdateZoneInput) (*models.Zone, error)
	ListZones(ctx context.Context, activeOnly bool) ([]models.Zone, error)
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error)
	GetCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)

	ProductsForPricing(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]PricedProduct, error)
	ZoneForPricing(ctx context.Context, tx *gorm.DB, zoneID uuid.UUID) (*ZoneQuote, error)
	CustomerExists(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error
}

type service struct {
	repo      Repository
	inventory stockAdjuster
	tx        txRunner
	logg      *logger.Logger
}

// NewService wires the catalog with the inventory manager used for opening stock.
func NewService(repo Repository, inv stockAdjuster, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, inventory: inv, tx: tx, logg: logg}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product category").
			WithDetails(map[string]string{"category": "is invalid"})
	}

	product := &models.Product{
		Name:              input.Name,
		Category:          input.Category,
		PriceCents:        input.PriceCents,
		LowStockThreshold: input.LowStockThreshold,
		IsActive:          input.IsActive,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		product.ID = uuid.Nil
		product.StockQuantity = 0
		if err := s.repo.WithTx(tx).CreateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create product")
		}
		if input.InitialStock == 0 {
			return nil
		}
		qty, err := s.inventory.AdjustWithTx(ctx, tx, inventory.AdjustCommand{
			ProductID: product.ID,
			Delta:     input.InitialStock,
			Type:      enums.InventoryChangeRestock,
			Reason:    "opening stock",
			Actor:     input.Actor,
		})
		if err != nil {
			return err
		}
		product.StockQuantity = qty
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"stock":      product.StockQuantity,
		})
		s.logg.Info(logCtx, "product created")
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be blank")
		}
		updates["name"] = name
	}
	if input.PriceCents != nil {
		updates["price_cents"] = *input.PriceCents
	}
	if input.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *input.LowStockThreshold
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if err := s.repo.UpdateProduct(ctx, productID, updates); err != nil {
		return nil, notFoundOr(err, "product not found", "update product")
	}
	return s.GetProduct(ctx, productID)
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "load product")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	if filter.Category != nil && !filter.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product category")
	}
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list products")
	}
	return products, nil
}

func (s *service) CreateZone(ctx context.Context, input CreateZoneInput) (*models.Zone, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	zone := &models.Zone{Name: input.Name, DeliveryFeeCents: input.DeliveryFeeCents, IsActive: input.IsActive}
	if err := s.repo.CreateZone(ctx, zone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create zone")
	}
	return zone, nil
}

func (s *service) UpdateZone(ctx context.Context, zoneID uuid.UUID, input UpdateZoneInput) (*models.Zone, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	switch {
	case input.ClearFee:
		updates["delivery_fee_cents"] = gorm.Expr("NULL")
	case input.DeliveryFeeCents != nil:
		updates["delivery_fee_cents"] = *input.DeliveryFeeCents
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if err := s.repo.UpdateZone(ctx, zoneID, updates); err != nil {
		return nil, notFoundOr(err, "zone not found", "update zone")
	}
	zone, err := s.repo.FindZone(ctx, zoneID)
	if err != nil {
		return nil, notFoundOr(err, "zone not found", "load zone")
	}
	return zone, nil
}

func (s *service) ListZones(ctx context.Context, activeOnly bool) ([]models.Zone, error) {
	zones, err := s.repo.ListZones(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list zones")
	}
	return zones, nil
}

func (s *service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*models.Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	customer := &models.Customer{Name: input.Name, Phone: input.Phone, Email: input.Email}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create customer")
	}
	return customer, nil
}

func (s *service) GetCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindCustomer(ctx, customerID)
	if err != nil {
		return nil, notFoundOr(err, "customer not found", "load customer")
	}
	return customer, nil
}

// ProductsForPricing returns every requested product or NOT_FOUND naming the
// first missing id.
func (s *service) ProductsForPricing(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]PricedProduct, error) {
	products, err := s.repo.WithTx(tx).FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load products")
	}
	out := make(map[uuid.UUID]PricedProduct, len(products))
	for _, p := range products {
		out[p.ID] = PricedProduct{
			ID:                p.ID,
			Name:              p.Name,
			Category:          p.Category,
			PriceCents:        p.PriceCents,
			StockQuantity:     p.StockQuantity,
			LowStockThreshold: p.LowStockThreshold,
			IsActive:          p.IsActive,
		}
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
	}
	return out, nil
}

func (s *service) ZoneForPricing(ctx context.Context, tx *gorm.DB, zoneID uuid.UUID) (*ZoneQuote, error) {
	zone, err := s.repo.WithTx(tx).FindZone(ctx, zoneID)
	if err != nil {
		return nil, notFoundOr(err, "zone not found", "load zone")
	}
	return &ZoneQuote{ID: zone.ID, DeliveryFeeCents: zone.DeliveryFeeCents, IsActive: zone.IsActive}, nil
}

func (s *service) CustomerExists(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error {
	if _, err := s.repo.WithTx(tx).FindCustomer(ctx, customerID); err != nil {
		return notFoundOr(err, "customer not found", "load customer")
	}
	return nil
}

func notFoundOr(err error, notFound, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, op)
}
