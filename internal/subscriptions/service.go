package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/catalog"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
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

type catalogLookup interface {
	ProductsForPricing(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]catalog.PricedProduct, error)
	ZoneForPricing(ctx context.Context, tx *gorm.DB, zoneID uuid.UUID) (*catalog.ZoneQuote, error)
	CustomerExists(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Create(ctx context.Context, input CreateSubscriptionInput) (*models.Subscription, error)
	Pause(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error)
	Resume(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error)
	Cancel(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error)
	Get(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, actor ledger.Actor) ([]models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo    Repository
	Catalog catalogLookup
	Tx      txRunner
	Logger  *logger.Logger
	Now     func() time.Time

	// Location is the scheduler's timezone; calendar dates are taken in it.
	Location *time.Location
}

type service struct {
	repo    Repository
	catalog catalogLookup
	tx      txRunner
	logg    *logger.Logger
	now     func() time.Time
	loc     *time.Location
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		catalog: params.Catalog,
		tx:      params.Tx,
		logg:    params.Logger,
		now:     now,
		loc:     params.Location,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateSubscriptionInput) (*models.Subscription, error) {
	input.Address = strings.TrimSpace(input.Address)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]string{"payment_method": "is invalid"})
	}
	if !owns(input.Actor, input.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only subscribe for themselves")
	}

	start := s.today()
	if input.StartDate != nil {
		start = DateOf(*input.StartDate)
	}

	sub := &models.Subscription{
		CustomerID:       input.CustomerID,
		Status:           enums.SubscriptionStatusActive,
		FrequencyDays:    input.FrequencyDays,
		NextDeliveryDate: start,
		ZoneID:           input.ZoneID,
		Address:          input.Address,
		PaymentMethod:    input.PaymentMethod,
		Items:            mergeItems(input.Items),
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.catalog.CustomerExists(ctx, tx, input.CustomerID); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(sub.Items))
		for _, item := range sub.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := s.catalog.ProductsForPricing(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if !products[id].IsActive {
				return pkgerrors.New(pkgerrors.CodeProductInactive, "product is not available").
					WithDetails(map[string]any{"product_id": id})
			}
		}
		if input.ZoneID != nil {
			zone, err := s.catalog.ZoneForPricing(ctx, tx, *input.ZoneID)
			if err != nil {
				return err
			}
			if !zone.IsActive {
				return pkgerrors.New(pkgerrors.CodeZoneInactive, "delivery zone is not serviced")
			}
		}
		sub.ID = uuid.Nil
		for i := range sub.Items {
			sub.Items[i].ID = uuid.Nil
		}
		if err := s.repo.WithTx(tx).Create(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create subscription")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"customer_id":        sub.CustomerID.String(),
			"frequency_days":     sub.FrequencyDays,
			"next_delivery_date": sub.NextDeliveryDate.Format(time.DateOnly),
		})
		s.logg.Info(logCtx, "subscription created")
	}
	return sub, nil
}

func (s *service) Pause(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error) {
	return s.changeStatus(ctx, id, actor, enums.SubscriptionStatusPaused)
}

// Resume reactivates a paused subscription. A due date that passed while
// paused moves up to today so the schedule does not replay missed deliveries.
func (s *service) Resume(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error) {
	return s.changeStatus(ctx, id, actor, enums.SubscriptionStatusActive)
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error) {
	return s.changeStatus(ctx, id, actor, enums.SubscriptionStatusCancelled)
}

func (s *service) changeStatus(ctx context.Context, id uuid.UUID, actor ledger.Actor, target enums.SubscriptionStatus) (*models.Subscription, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	var sub *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.Lock(ctx, id)
		if err != nil {
			return notFoundOr(err)
		}
		if !owns(actor, current.CustomerID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if current.Status == target {
			sub = current
			return nil
		}
		if !canChange(current.Status, target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move subscription from %s to %s", current.Status, target)).
				WithDetails(map[string]any{"from": current.Status, "to": target})
		}
		updates := map[string]any{"status": target}
		if target == enums.SubscriptionStatusActive {
			today := s.today()
			if current.NextDeliveryDate.Before(today) {
				updates["next_delivery_date"] = today
				current.NextDeliveryDate = today
			}
		}
		if err := repo.UpdateStatus(ctx, id, current.Status, updates); err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update subscription status")
		}
		current.Status = target
		sub = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"status": sub.Status, "actor_role": actor.Role})
		s.logg.Info(logCtx, "subscription status changed")
	}
	return sub, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor ledger.Actor) (*models.Subscription, error) {
	sub, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if !owns(actor, sub.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, actor ledger.Actor) ([]models.Subscription, error) {
	if !owns(actor, customerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only list their own subscriptions")
	}
	subs, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list subscriptions")
	}
	return subs, nil
}

func (s *service) today() time.Time {
	return Today(s.now(), s.loc)
}

// canChange: cancelled is terminal; active and paused toggle.
func canChange(from, to enums.SubscriptionStatus) bool {
	if from == enums.SubscriptionStatusCancelled {
		return false
	}
	return to.IsValid()
}

func owns(actor ledger.Actor, customerID uuid.UUID) bool {
	if actor.Role.IsOperator() {
		return true
	}
	return actor.Role == enums.ActorRoleCustomer && actor.ID == customerID
}

func mergeItems(items []ItemInput) []models.SubscriptionItem {
	index := make(map[uuid.UUID]int, len(items))
	out := make([]models.SubscriptionItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, models.SubscriptionItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func notFoundOr(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load subscription")
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the scheduler's calendar date for now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}
