package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/inventory"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/orders"
	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox/payloads"
)

const defaultBatchLimit = 500

type orderCreator interface {
	CreateWithTx(ctx context.Context, tx *gorm.DB, cfg settings.Snapshot, cmd orders.CreateOrderCommand) (*models.Order, error)
	FindBySubscriptionDueWithTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, due time.Time) (*models.Order, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type outcome int

const (
	outcomeNotDue outcome = iota
	outcomeCreated
	outcomeRepaired
	outcomeSkipped
)

// MaterializerParams configures the scheduler's per-subscription worker.
type MaterializerParams struct {
	Repo     Repository
	Orders   orderCreator
	Settings settings.Provider
	Outbox   outboxPublisher
	Tx       txRunner
	Metrics  *metrics.CommerceMetrics
	Logger   *logger.Logger
	Limit    int
}

// Materializer turns due subscriptions into orders, one transaction each.
type Materializer struct {
	repo     Repository
	orders   orderCreator
	settings settings.Provider
	outbox   outboxPublisher
	tx       txRunner
	metrics  *metrics.CommerceMetrics
	logg     *logger.Logger
	limit    int
}

func NewMaterializer(params MaterializerParams) (*Materializer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order engine required")
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
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	return &Materializer{
		repo:     params.Repo,
		orders:   params.Orders,
		settings: params.Settings,
		outbox:   params.Outbox,
		tx:       params.Tx,
		metrics:  params.Metrics,
		logg:     params.Logger,
		limit:    limit,
	}, nil
}

// RunBatch materializes every subscription due on or before today. The
// returned error is set only when the batch could not run at all; individual
// failures are collected in BatchReport.Errors.
func (m *Materializer) RunBatch(ctx context.Context, today time.Time) (*BatchReport, error) {
	today = DateOf(today)
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"event": "subscription.batch",
		"date":  today.Format(time.DateOnly),
	})

	cfg, err := m.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	ids, err := m.repo.ListDueIDs(ctx, today, m.limit)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}

	report := &BatchReport{Date: today, Due: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			report.Errors = multierr.Append(report.Errors, err)
			break
		}
		result, err := m.processOne(logCtx, cfg, id, today)
		switch {
		case err != nil:
			report.Failed++
			report.Errors = multierr.Append(report.Errors, fmt.Errorf("subscription %s: %w", id, err))
			m.metrics.IncMaterialization(metrics.OutcomeFailed)
			m.logg.Error(m.logg.WithSubscriptionID(logCtx, id.String()), "subscription materialization failed", err)
		case result == outcomeCreated:
			report.Created++
			m.metrics.IncMaterialization(metrics.OutcomeCreated)
		case result == outcomeRepaired:
			report.AlreadyMaterialized++
		case result == outcomeSkipped:
			report.Skipped++
			m.metrics.IncMaterialization(metrics.OutcomeSkipped)
		}
	}

	m.logg.Info(m.logg.WithFields(logCtx, map[string]any{
		"due":                  report.Due,
		"created":              report.Created,
		"already_materialized": report.AlreadyMaterialized,
		"skipped":              report.Skipped,
		"failed":               report.Failed,
	}), "subscription batch complete")
	return report, nil
}

func (m *Materializer) processOne(ctx context.Context, cfg settings.Snapshot, id uuid.UUID, today time.Time) (outcome, error) {
	logCtx := m.logg.WithSubscriptionID(ctx, id.String())
	var (
		result outcome
		sub    *models.Subscription
		due    time.Time
	)
	err := m.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		result = outcomeNotDue
		repo := m.repo.WithTx(tx)
		locked, err := repo.Lock(logCtx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock subscription")
		}
		sub = locked
		due = DateOf(sub.NextDeliveryDate)
		if !sub.IsActive() || due.After(today) {
			return nil
		}

		existing, err := m.orders.FindBySubscriptionDueWithTx(logCtx, tx, sub.ID, due)
		if err != nil {
			return err
		}
		orderID := uuid.Nil
		if existing != nil {
			orderID = existing.ID
			result = outcomeRepaired
		} else {
			order, err := m.orders.CreateWithTx(logCtx, tx, cfg, orderCommand(sub, due))
			if err != nil {
				return err
			}
			orderID = order.ID
			result = outcomeCreated
		}

		next := due.AddDate(0, 0, sub.FrequencyDays)
		if err := repo.Advance(logCtx, sub.ID, sub.NextDeliveryDate, next, orderID); err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "advance subscription")
		}
		m.logg.Info(m.logg.WithFields(logCtx, map[string]any{
			"order_id":           orderID.String(),
			"due_date":           due.Format(time.DateOnly),
			"next_delivery_date": next.Format(time.DateOnly),
			"repaired":           result == outcomeRepaired,
		}), "subscription materialized")
		return nil
	})
	if err == nil {
		return result, nil
	}
	if !skippable(err) || sub == nil {
		return 0, err
	}
	if emitErr := m.emitSkipped(logCtx, sub, due, err); emitErr != nil {
		return 0, multierr.Append(err, emitErr)
	}
	m.logg.Warn(m.logg.WithFields(logCtx, map[string]any{
		"due_date": due.Format(time.DateOnly),
		"reason":   string(pkgerrors.As(err).Code()),
	}), "subscription skipped for this run")
	return outcomeSkipped, nil
}

// emitSkipped queues the skip notification in its own transaction since the
// materialization transaction has already rolled back.
func (m *Materializer) emitSkipped(ctx context.Context, sub *models.Subscription, due time.Time, cause error) error {
	event := payloads.SubscriptionOrderSkippedEvent{
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		DueDate:        due,
		Reason:         string(pkgerrors.As(cause).Code()),
	}
	for _, shortfall := range inventory.Shortfalls(cause) {
		event.Shortfalls = append(event.Shortfalls, payloads.StockShortage{
			ProductID: shortfall.ProductID,
			Requested: shortfall.Requested,
			Available: shortfall.Available,
		})
	}
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionSkipped,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{Role: string(enums.ActorRoleSystem)},
			Data:          event,
		})
	})
}

// skippable errors are business-rule failures tied to this subscription's
// template; retrying them within the run cannot succeed.
func skippable(err error) bool {
	for _, code := range []pkgerrors.Code{
		pkgerrors.CodeInsufficientStock,
		pkgerrors.CodeProductInactive,
		pkgerrors.CodeZoneInactive,
		pkgerrors.CodeNotFound,
	} {
		if pkgerrors.IsCode(err, code) {
			return true
		}
	}
	return false
}

func orderCommand(sub *models.Subscription, due time.Time) orders.CreateOrderCommand {
	items := make([]orders.ItemInput, 0, len(sub.Items))
	for _, item := range sub.Items {
		items = append(items, orders.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	subID := sub.ID
	dueDate := due
	return orders.CreateOrderCommand{
		CustomerID:          sub.CustomerID,
		Items:               items,
		Address:             sub.Address,
		ZoneID:              sub.ZoneID,
		PaymentMethod:       sub.PaymentMethod,
		Source:              enums.OrderSourceSubscription,
		Actor:               ledger.SystemActor(),
		SubscriptionID:      &subID,
		SubscriptionDueDate: &dueDate,
	}
}
