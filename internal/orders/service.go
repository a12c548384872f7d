package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/catalog"
	"github.com/angelmondragon/aquaflow-backend/internal/inventory"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/loyalty"
	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/aquaflow-backend/pkg/pagination"
	"github.com/angelmondragon/aquaflow-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pricingLookup interface {
	ProductsForPricing(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]catalog.PricedProduct, error)
	ZoneForPricing(ctx context.Context, tx *gorm.DB, zoneID uuid.UUID) (*catalog.ZoneQuote, error)
	CustomerExists(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error
}

type stockManager interface {
	ReserveWithTx(ctx context.Context, tx *gorm.DB, cmd inventory.ReserveCommand) (*inventory.ReservationReceipt, error)
	CheckAvailabilityWithTx(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	ReleaseWithTx(ctx context.Context, tx *gorm.DB, cmd inventory.ReleaseCommand) error
}

type pointsManager interface {
	RedeemWithTx(ctx context.Context, tx *gorm.DB, cmd loyalty.RedeemCommand) (*loyalty.Redemption, error)
	AccrueWithTx(ctx context.Context, tx *gorm.DB, cmd loyalty.AccrueCommand) (int, error)
	RefundWithTx(ctx context.Context, tx *gorm.DB, cmd loyalty.RefundCommand) (int, error)
}

// deliveryCloser retires an order's open delivery assignment on cancellation.
type deliveryCloser interface {
	CloseForOrderWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
}

// Service is the order engine: the only writer of order status.
type Service interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (*models.Order, error)
	CreateWithTx(ctx context.Context, tx *gorm.DB, cfg settings.Snapshot, cmd CreateOrderCommand) (*models.Order, error)
	Transition(ctx context.Context, cmd TransitionOrderCommand) (*TransitionResult, error)
	TransitionWithTx(ctx context.Context, tx *gorm.DB, cfg settings.Snapshot, cmd TransitionOrderCommand) (*TransitionResult, error)
	Get(ctx context.Context, orderID uuid.UUID, actor ledger.Actor) (*models.Order, error)
	GetWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, actor ledger.Actor, params pagination.Params, filter ListFilter) (pagination.Page[models.Order], error)
	FindBySubscriptionDueWithTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, due time.Time) (*models.Order, error)
}

// ServiceParams wires the order engine.
type ServiceParams struct {
	Repo      Repository
	Catalog   pricingLookup
	Inventory stockManager
	Loyalty   pointsManager
	Settings  settings.Provider
	Outbox    outboxPublisher
	Tx        txRunner
	Metrics   *metrics.CommerceMetrics
	Logger    *logger.Logger

	// Deliveries is optional; without it cancellations leave assignments as is.
	Deliveries deliveryCloser
}

type service struct {
	repo       Repository
	catalog    pricingLookup
	inventory  stockManager
	loyalty    pointsManager
	settings   settings.Provider
	outbox     outboxPublisher
	tx         txRunner
	metrics    *metrics.CommerceMetrics
	logg       *logger.Logger
	deliveries deliveryCloser
}

// NewService validates dependencies and returns the order engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings provider required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:       params.Repo,
		catalog:    params.Catalog,
		inventory:  params.Inventory,
		loyalty:    params.Loyalty,
		settings:   params.Settings,
		outbox:     params.Outbox,
		tx:         params.Tx,
		metrics:    params.Metrics,
		logg:       params.Logger,
		deliveries: params.Deliveries,
	}, nil
}

func (s *service) Create(ctx context.Context, cmd CreateOrderCommand) (*models.Order, error) {
	if err := validateCreate(&cmd); err != nil {
		s.reject(err)
		return nil, err
	}
	if cmd.Actor.Role == enums.ActorRoleCustomer && cmd.Actor.ID != cmd.CustomerID {
		err := pkgerrors.New(pkgerrors.CodeForbidden, "customers may only order for themselves")
		s.reject(err)
		return nil, err
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.CreateWithTx(ctx, tx, cfg, cmd)
		return err
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	s.metrics.IncOrderCreated(string(order.Source))
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithCustomerID(logCtx, order.CustomerID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"source":          order.Source,
			"total_cents":     order.TotalCents,
			"points_redeemed": order.PointsRedeemed,
			"stock_deducted":  order.StockDeducted,
		})
		s.logg.Info(logCtx, "order created")
	}
	return order, nil
}

// CreateWithTx prices, redeems, reserves and persists an order inside tx.
// Any failure leaves tx to be rolled back by the caller.
func (s *service) CreateWithTx(ctx context.Context, tx *gorm.DB, cfg settings.Snapshot, cmd CreateOrderCommand) (*models.Order, error) {
	if err := validateCreate(&cmd); err != nil {
		return nil, err
	}
	if err := s.catalog.CustomerExists(ctx, tx, cmd.CustomerID); err != nil {
		return nil, err
	}

	lines := mergeItems(cmd.Items)
	products, err := s.catalog.ProductsForPricing(ctx, tx, lineProductIDs(lines))
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	var subtotal int64
	for _, line := range lines {
		product := products[line.ProductID]
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeProductInactive, "product is not available").
				WithDetails(map[string]any{"product_id": product.ID, "name": product.Name})
		}
		lineTotal := product.PriceCents * int64(line.Quantity)
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Category:       product.Category,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  lineTotal,
		})
	}

	fee, err := s.deliveryFee(ctx, tx, cfg, cmd.ZoneID)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	ref := ledger.OrderReference(orderID)

	var discount int64
	var redeemed int
	if cmd.RedeemPoints > 0 {
		ceiling := subtotal + fee
		redemption, err := s.loyalty.RedeemWithTx(ctx, tx, loyalty.RedeemCommand{
			CustomerID:       cmd.CustomerID,
			RequestedPoints:  cmd.RedeemPoints,
			PesoPerPoint:     cfg.PesoPerPoint,
			MaxDiscountCents: &ceiling,
			Reason:           "redeemed on order",
			Reference:        ref,
		})
		if err != nil {
			return nil, err
		}
		discount = redemption.DiscountCents
		redeemed = redemption.AppliedPoints
	}

	stockLines := toStockLines(lines)
	stockDeducted := false
	if cfg.ReservesOnCreate() {
		if _, err := s.inventory.ReserveWithTx(ctx, tx, inventory.ReserveCommand{
			Lines:     stockLines,
			Reference: ref,
			Actor:     cmd.Actor,
			Reason:    "order placed",
		}); err != nil {
			return nil, err
		}
		stockDeducted = true
	} else if err := s.inventory.CheckAvailabilityWithTx(ctx, tx, stockLines); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                  orderID,
		CustomerID:          cmd.CustomerID,
		Source:              cmd.Source,
		Status:              enums.OrderStatusPending,
		PaymentMethod:       cmd.PaymentMethod,
		PaymentStatus:       enums.PaymentStatusUnpaid,
		ZoneID:              cmd.ZoneID,
		Address:             cmd.Address,
		SubtotalCents:       subtotal,
		DeliveryFeeCents:    fee,
		DiscountCents:       discount,
		TotalCents:          subtotal + fee - discount,
		PointsRedeemed:      redeemed,
		StockDeducted:       stockDeducted,
		SubscriptionID:      cmd.SubscriptionID,
		SubscriptionDueDate: cmd.SubscriptionDueDate,
		Items:               items,
	}
	if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
		if cmd.SubscriptionID != nil && db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "subscription order already materialized")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create order")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(cmd.Actor),
		Data: payloads.OrderCreatedEvent{
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			Source:         order.Source,
			TotalCents:     order.TotalCents,
			SubscriptionID: order.SubscriptionID,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "queue order created event")
	}
	return order, nil
}

func (s *service) Transition(ctx context.Context, cmd TransitionOrderCommand) (*TransitionResult, error) {
	if err := validateTransition(cmd); err != nil {
		s.reject(err)
		return nil, err
	}
	if err := authorizeTransition(cmd); err != nil {
		s.reject(err)
		return nil, err
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	var result *TransitionResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if cmd.Actor.Role == enums.ActorRoleCustomer {
			if err := s.checkOwnership(ctx, tx, cmd.OrderID, cmd.Actor); err != nil {
				return err
			}
		}
		var err error
		result, err = s.TransitionWithTx(ctx, tx, cfg, cmd)
		return err
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}
	s.logTransition(ctx, result, cmd)
	return result, nil
}

// TransitionWithTx applies one state machine edge with its side effects.
// Repeating the order's current status is a no-op.
func (s *service) TransitionWithTx(ctx context.Context, tx *gorm.DB, cfg settings.Snapshot, cmd TransitionOrderCommand) (*TransitionResult, error) {
	if err := validateTransition(cmd); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	order, err := repo.LockOrder(ctx, cmd.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order does not exist").
				WithDetails(map[string]any{"order_id": cmd.OrderID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock order")
	}

	previous := order.Status
	if previous == cmd.Status {
		return &TransitionResult{Order: order, Previous: previous, Changed: false}, nil
	}
	if !CanTransition(previous, cmd.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", previous, cmd.Status)).
			WithDetails(map[string]any{
				"from":    previous,
				"to":      cmd.Status,
				"allowed": AllowedTransitions(previous),
			})
	}

	now := time.Now().UTC()
	updates := map[string]any{"status": cmd.Status}
	ref := ledger.OrderReference(order.ID)

	switch cmd.Status {
	case enums.OrderStatusCancelled:
		if order.StockDeducted {
			if err := s.inventory.ReleaseWithTx(ctx, tx, inventory.ReleaseCommand{
				Lines:     itemLines(order.Items),
				Reference: ref,
				Actor:     cmd.Actor,
				Reason:    "order cancelled",
			}); err != nil {
				return nil, err
			}
			updates["stock_deducted"] = false
			order.StockDeducted = false
		}
		if order.PointsRedeemed > 0 {
			if _, err := s.loyalty.RefundWithTx(ctx, tx, loyalty.RefundCommand{
				CustomerID: order.CustomerID,
				Points:     order.PointsRedeemed,
				Reason:     "order cancelled",
				Reference:  ref,
			}); err != nil {
				return nil, err
			}
		}
		reason := strings.TrimSpace(cmd.Reason)
		if reason != "" {
			updates["cancellation_reason"] = reason
			order.CancellationReason = &reason
		}
		if s.deliveries != nil {
			closeReason := reason
			if closeReason == "" {
				closeReason = "order cancelled"
			}
			if err := s.deliveries.CloseForOrderWithTx(ctx, tx, order.ID, closeReason); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "close delivery assignment")
			}
		}
		updates["cancelled_at"] = now
		order.CancelledAt = &now

	case enums.OrderStatusDelivered:
		if !order.StockDeducted {
			if _, err := s.inventory.ReserveWithTx(ctx, tx, inventory.ReserveCommand{
				Lines:     itemLines(order.Items),
				Reference: ref,
				Actor:     cmd.Actor,
				Reason:    "order delivered",
			}); err != nil {
				return nil, err
			}
			updates["stock_deducted"] = true
			order.StockDeducted = true
		}
		updates["payment_status"] = enums.PaymentStatusPaid
		updates["delivered_at"] = now
		order.PaymentStatus = enums.PaymentStatusPaid
		order.DeliveredAt = &now

		points := earnedPoints(cfg, order.Items)
		if points > 0 {
			balance, err := s.loyalty.AccrueWithTx(ctx, tx, loyalty.AccrueCommand{
				CustomerID: order.CustomerID,
				Points:     points,
				Reason:     "order delivered",
				Reference:  ref,
			})
			if err != nil {
				return nil, err
			}
			updates["points_earned"] = points
			order.PointsEarned = points
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPointsAccrued,
				AggregateType: enums.AggregateCustomer,
				AggregateID:   order.CustomerID,
				Actor:         actorRef(cmd.Actor),
				Data: payloads.PointsAccruedEvent{
					CustomerID:   order.CustomerID,
					OrderID:      order.ID,
					Points:       points,
					BalanceAfter: balance,
				},
			}); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "queue points accrued event")
			}
		}
	}

	if err := repo.UpdateStatus(ctx, order.ID, previous, updates); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update order status")
	}
	order.Status = cmd.Status

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(cmd.Actor),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Status:     order.Status,
			Previous:   previous,
			Reason:     strings.TrimSpace(cmd.Reason),
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "queue status changed event")
	}
	return &TransitionResult{Order: order, Previous: previous, Changed: true}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor ledger.Actor) (*models.Order, error) {
	order, err := s.GetWithTx(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role == enums.ActorRoleCustomer && order.CustomerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// GetWithTx reads an order through tx without ownership checks.
func (s *service) GetWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	return order, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, actor ledger.Actor, params pagination.Params, filter ListFilter) (pagination.Page[models.Order], error) {
	if actor.Role == enums.ActorRoleCustomer && actor.ID != customerID {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only list their own orders")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination cursor")
	}
	rows, err := s.repo.ListByCustomer(ctx, customerID, params, filter)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list orders")
	}
	return pagination.Build(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (s *service) FindBySubscriptionDueWithTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, due time.Time) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindBySubscriptionDue(ctx, subscriptionID, due)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "find subscription order")
	}
	return order, nil
}

func (s *service) deliveryFee(ctx context.Context, tx *gorm.DB, cfg settings.Snapshot, zoneID *uuid.UUID) (int64, error) {
	if zoneID == nil {
		return cfg.DefaultDeliveryFeeCents, nil
	}
	zone, err := s.catalog.ZoneForPricing(ctx, tx, *zoneID)
	if err != nil {
		return 0, err
	}
	if !zone.IsActive {
		return 0, pkgerrors.New(pkgerrors.CodeZoneInactive, "delivery zone is not serviced").
			WithDetails(map[string]any{"zone_id": zone.ID})
	}
	if zone.DeliveryFeeCents == nil {
		return cfg.DefaultDeliveryFeeCents, nil
	}
	return *zone.DeliveryFeeCents, nil
}

func (s *service) checkOwnership(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor ledger.Actor) error {
	order, err := s.repo.WithTx(tx).FindOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order does not exist")
		}
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	if order.CustomerID != actor.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return nil
}

func (s *service) reject(err error) {
	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.IncRejection(string(typed.Code()))
	}
}

func (s *service) logTransition(ctx context.Context, result *TransitionResult, cmd TransitionOrderCommand) {
	if result.Changed {
		s.metrics.IncTransition(string(result.Order.Status))
	}
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"from":       result.Previous,
		"to":         result.Order.Status,
		"changed":    result.Changed,
		"actor_role": cmd.Actor.Role,
	})
	if result.Changed {
		s.logg.Info(logCtx, "order transitioned")
		return
	}
	s.logg.Debug(logCtx, "order transition was a no-op")
}

func validateCreate(cmd *CreateOrderCommand) error {
	cmd.Address = strings.TrimSpace(cmd.Address)
	if cmd.Source == "" {
		cmd.Source = enums.OrderSourceOnline
	}
	if err := validation.Struct(cmd); err != nil {
		return err
	}
	if !cmd.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]string{"payment_method": "is invalid"})
	}
	if !cmd.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order source").
			WithDetails(map[string]string{"source": "is invalid"})
	}
	if (cmd.SubscriptionID == nil) != (cmd.SubscriptionDueDate == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id and due date go together")
	}
	return nil
}

func validateTransition(cmd TransitionOrderCommand) error {
	if err := validation.Struct(cmd); err != nil {
		return err
	}
	if !cmd.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]string{"status": "is invalid"})
	}
	return nil
}

// authorizeTransition limits customers to cancelling; delivery staff move
// orders through the dispatcher.
func authorizeTransition(cmd TransitionOrderCommand) error {
	switch cmd.Actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleStaff, enums.ActorRoleSystem:
		return nil
	case enums.ActorRoleCustomer:
		if cmd.Status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel orders")
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "role may not transition orders directly")
}

func earnedPoints(cfg settings.Snapshot, items []models.OrderItem) int {
	if cfg.PointsPerUnit <= 0 {
		return 0
	}
	units := 0
	for _, item := range items {
		if cfg.EarnsPoints(item.Category) {
			units += item.Quantity
		}
	}
	return units * cfg.PointsPerUnit
}

// mergeItems sums duplicate product lines, keeping first-seen order.
func mergeItems(items []ItemInput) []ItemInput {
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]ItemInput, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func lineProductIDs(items []ItemInput) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func toStockLines(items []ItemInput) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func itemLines(items []models.OrderItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func actorRef(actor ledger.Actor) *outbox.ActorRef {
	if actor.Role == "" {
		return nil
	}
	return &outbox.ActorRef{ID: actor.ID, Role: string(actor.Role)}
}
