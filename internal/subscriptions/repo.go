package subscriptions

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

// Repository persists subscriptions and their template items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Find(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Lock(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Subscription, error)
	ListDueIDs(ctx context.Context, today time.Time, limit int) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected enums.SubscriptionStatus, updates map[string]any) error
	Advance(ctx context.Context, id uuid.UUID, expectedNext, next time.Time, lastOrderID uuid.UUID) error
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

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	items := sub.Items
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(sub).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].SubscriptionID = sub.ID
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return err
	}
	sub.Items = items
	return nil
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Lock takes the row lock and then loads the template items.
func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("subscription_id = ?", id).Order("id ASC").Find(&sub.Items).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Subscription, error) {
	var out []models.Subscription
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListDueIDs returns active subscriptions due on or before today, oldest first.
func (r *repository) ListDueIDs(ctx context.Context, today time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND next_delivery_date <= ?", enums.SubscriptionStatusActive, today).
		Order("next_delivery_date ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, expected enums.SubscriptionStatus, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "subscription changed concurrently")
	}
	return nil
}

// Advance moves next_delivery_date forward only if it still equals expectedNext.
func (r *repository) Advance(ctx context.Context, id uuid.UUID, expectedNext, next time.Time, lastOrderID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND next_delivery_date = ?", id, expectedNext).
		Updates(map[string]any{
			"next_delivery_date": next,
			"last_order_id":      lastOrderID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "subscription advanced concurrently")
	}
	return nil
}
