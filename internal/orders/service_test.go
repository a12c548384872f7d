package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/aquaflow-backend/internal/catalog"
	"github.com/angelmondragon/aquaflow-backend/internal/inventory"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/loyalty"
	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox"
	"github.com/angelmondragon/aquaflow-backend/pkg/pagination"
)

var admin = ledger.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}

type fixture struct {
	client *db.Client
	svc    Service
	ledger ledger.Service
	outbox *outbox.Repository
}

func defaultSettings() settings.Snapshot {
	return settings.Snapshot{
		PointsPerUnit:           1,
		PesoPerPoint:            decimal.NewFromInt(1),
		DefaultDeliveryFeeCents: 2000,
		StockDeductOn:           settings.DeductOnOrderPlaced,
		PointsCategories:        []enums.ProductCategory{enums.ProductCategoryRefill},
	}
}

func newFixture(t *testing.T, cfg settings.Snapshot) fixture {
	t.Helper()
	client := dbtest.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(client.DB())
	emitter := outbox.NewService(outboxRepo, nil)

	inv, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(client.DB()),
		Ledger: ledgerSvc,
		Outbox: emitter,
		Tx:     client,
	})
	require.NoError(t, err)
	points, err := loyalty.NewService(loyalty.ServiceParams{
		Repo:   loyalty.NewRepository(client.DB()),
		Ledger: ledgerSvc,
		Tx:     client,
	})
	require.NoError(t, err)
	cat, err := catalog.NewService(catalog.NewRepository(client.DB()), inv, client, nil)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(client.DB()),
		Catalog:   cat,
		Inventory: inv,
		Loyalty:   points,
		Settings:  settings.Static(cfg),
		Outbox:    emitter,
		Tx:        client,
	})
	require.NoError(t, err)
	return fixture{client: client, svc: svc, ledger: ledgerSvc, outbox: outboxRepo}
}

func (f fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, f.client.DB().First(&product, "id = ?", id).Error)
	return product.StockQuantity
}

func (f fixture) points(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var customer models.Customer
	require.NoError(t, f.client.DB().First(&customer, "id = ?", id).Error)
	return customer.PointsBalance
}

func (f fixture) transition(t *testing.T, orderID uuid.UUID, status enums.OrderStatus) *TransitionResult {
	t.Helper()
	res, err := f.svc.Transition(context.Background(), TransitionOrderCommand{OrderID: orderID, Status: status, Actor: admin})
	require.NoError(t, err)
	return res
}

func TestCreateOrderEndToEnd(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	product := dbtest.SeedProduct(t, f.client, "5-gal refill", 2500, 10, 2)
	fee := int64(2000)
	zone := dbtest.SeedZone(t, f.client, "Poblacion", &fee)

	order, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 2}},
		ZoneID:        &zone.ID,
		Address:       "  12 Rizal St  ",
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), order.SubtotalCents)
	assert.Equal(t, int64(2000), order.DeliveryFeeCents)
	assert.Zero(t, order.DiscountCents)
	assert.Equal(t, int64(7000), order.TotalCents)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusUnpaid, order.PaymentStatus)
	assert.Equal(t, enums.OrderSourceOnline, order.Source)
	assert.Equal(t, "12 Rizal St", order.Address)
	assert.True(t, order.StockDeducted)
	assert.Equal(t, 8, f.stock(t, product.ID))

	rows, err := f.ledger.InventoryForReference(ctx, nil, *ledger.OrderReference(order.ID))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, -2, rows[0].ChangeQuantity)
	assert.Equal(t, enums.InventoryChangeSale, rows[0].ChangeType)

	stored, err := f.svc.Get(ctx, order.ID, admin)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "5-gal refill", stored.Items[0].ProductName)
	assert.Equal(t, int64(2500), stored.Items[0].UnitPriceCents)

	events, err := f.outbox.ListByAggregate(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)
}

func TestCreateOrderUsesDefaultFee(t *testing.T) {
	f := newFixture(t, defaultSettings())
	customer := dbtest.SeedCustomer(t, f.client, "Ana", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 5, 0)
	zone := dbtest.SeedZone(t, f.client, "Bagong Silang", nil)

	withZone, err := f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ZoneID:        &zone.ID,
		PaymentMethod: enums.PaymentMethodGCash,
		Actor:         admin,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), withZone.DeliveryFeeCents)

	noZone, err := f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodGCash,
		Actor:         admin,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), noZone.DeliveryFeeCents)
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	f := newFixture(t, defaultSettings())
	customer := dbtest.SeedCustomer(t, f.client, "Ben", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)

	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID: customer.ID,
		Items: []ItemInput{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: product.ID, Quantity: 2},
		},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, 7, f.stock(t, product.ID))
}

func TestCreateOrderRedeemsClampedPoints(t *testing.T) {
	cfg := defaultSettings()
	cfg.PesoPerPoint = decimal.RequireFromString("0.5")
	f := newFixture(t, cfg)
	customer := dbtest.SeedCustomer(t, f.client, "Rico", 120)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)

	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 2}},
		PaymentMethod: enums.PaymentMethodCash,
		RedeemPoints:  500,
		Actor:         admin,
	})
	require.NoError(t, err)
	assert.Equal(t, 120, order.PointsRedeemed)
	assert.Equal(t, int64(6000), order.DiscountCents)
	assert.Equal(t, int64(1000), order.TotalCents)
	assert.Zero(t, f.points(t, customer.ID))
}

func TestCreateOrderDiscountNeverExceedsTotal(t *testing.T) {
	f := newFixture(t, defaultSettings())
	customer := dbtest.SeedCustomer(t, f.client, "Joy", 1000)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)

	order, err := f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 2}},
		PaymentMethod: enums.PaymentMethodCash,
		RedeemPoints:  1000,
		Actor:         admin,
	})
	require.NoError(t, err)
	assert.Equal(t, 70, order.PointsRedeemed)
	assert.Zero(t, order.TotalCents)
	assert.Equal(t, 930, f.points(t, customer.ID))
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Lorna", 50)
	plenty := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	scarce := dbtest.SeedProduct(t, f.client, "dispenser", 90000, 1, 0)

	_, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID: customer.ID,
		Items: []ItemInput{
			{ProductID: plenty.ID, Quantity: 3},
			{ProductID: scarce.ID, Quantity: 2},
		},
		PaymentMethod: enums.PaymentMethodCash,
		RedeemPoints:  50,
		Actor:         admin,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	shortfalls := inventory.Shortfalls(err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, scarce.ID, shortfalls[0].ProductID)

	assert.Equal(t, 10, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	assert.Equal(t, 50, f.points(t, customer.ID))

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderRejectsInactiveProductAndZone(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Nene", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	zone := dbtest.SeedZone(t, f.client, "Far", nil)

	require.NoError(t, f.client.DB().Model(&models.Zone{}).Where("id = ?", zone.ID).Update("is_active", false).Error)
	_, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ZoneID:        &zone.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeZoneInactive), "got %v", err)

	require.NoError(t, f.client.DB().Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error)
	_, err = f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductInactive), "got %v", err)
	assert.Equal(t, 10, f.stock(t, product.ID))
}

func TestCreateOrderUnknownReferences(t *testing.T) {
	f := newFixture(t, defaultSettings())
	customer := dbtest.SeedCustomer(t, f.client, "Nene", 0)

	_, err := f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID:    uuid.New(),
		Items:         []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCustomerMayOnlyOrderForThemselves(t *testing.T) {
	f := newFixture(t, defaultSettings())
	customer := dbtest.SeedCustomer(t, f.client, "Nene", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)

	_, err := f.svc.Create(context.Background(), CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         ledger.Actor{ID: uuid.New(), Role: enums.ActorRoleCustomer},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCancelRestoresStockExactly(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 40)
	p1 := dbtest.SeedProduct(t, f.client, "P1", 2500, 10, 0)
	p2 := dbtest.SeedProduct(t, f.client, "P2", 4000, 5, 0)

	order, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID: customer.ID,
		Items: []ItemInput{
			{ProductID: p1.ID, Quantity: 3},
			{ProductID: p2.ID, Quantity: 1},
		},
		PaymentMethod: enums.PaymentMethodCash,
		RedeemPoints:  40,
		Actor:         admin,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, f.stock(t, p1.ID))
	assert.Equal(t, 4, f.stock(t, p2.ID))
	assert.Zero(t, f.points(t, customer.ID))

	res, err := f.svc.Transition(ctx, TransitionOrderCommand{
		OrderID: order.ID,
		Status:  enums.OrderStatusCancelled,
		Reason:  "customer not home",
		Actor:   admin,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, enums.OrderStatusPending, res.Previous)
	assert.False(t, res.Order.StockDeducted)
	require.NotNil(t, res.Order.CancelledAt)

	assert.Equal(t, 10, f.stock(t, p1.ID))
	assert.Equal(t, 5, f.stock(t, p2.ID))
	assert.Equal(t, 40, f.points(t, customer.ID))

	rows, err := f.ledger.InventoryForReference(ctx, nil, *ledger.OrderReference(order.ID))
	require.NoError(t, err)
	net := map[uuid.UUID]int{}
	for _, row := range rows {
		net[row.ProductID] += row.ChangeQuantity
	}
	assert.Len(t, rows, 4)
	assert.Zero(t, net[p1.ID])
	assert.Zero(t, net[p2.ID])

	for _, id := range []uuid.UUID{p1.ID, p2.ID} {
		rec, err := f.ledger.ReconcileProduct(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Consistent)
	}
	rec, err := f.ledger.ReconcileCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)

	stored, err := f.svc.Get(ctx, order.ID, admin)
	require.NoError(t, err)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "customer not home", *stored.CancellationReason)
}

func TestDeliveredAccruesPointsOnce(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	refill := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	gallon := dbtest.SeedProductInCategory(t, f.client, "container", enums.ProductCategoryContainer, 15000, 10, 0)

	order, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID: customer.ID,
		Items: []ItemInput{
			{ProductID: refill.ID, Quantity: 3},
			{ProductID: gallon.ID, Quantity: 1},
		},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)

	f.transition(t, order.ID, enums.OrderStatusConfirmed)
	f.transition(t, order.ID, enums.OrderStatusOutForDelivery)
	res := f.transition(t, order.ID, enums.OrderStatusDelivered)
	assert.True(t, res.Changed)
	assert.Equal(t, enums.PaymentStatusPaid, res.Order.PaymentStatus)
	assert.Equal(t, 3, res.Order.PointsEarned, "only refill units earn")
	assert.Equal(t, 3, f.points(t, customer.ID))

	again := f.transition(t, order.ID, enums.OrderStatusDelivered)
	assert.False(t, again.Changed)
	assert.Equal(t, 3, f.points(t, customer.ID))

	entries, err := f.ledger.LoyaltyForReference(ctx, nil, *ledger.OrderReference(order.ID))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	events, err := f.outbox.ListByAggregate(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPointsAccrued, events[0].EventType)
}

func TestDeliveryPolicyTakesStockAtDelivery(t *testing.T) {
	cfg := defaultSettings()
	cfg.StockDeductOn = settings.DeductOnOrderDelivered
	f := newFixture(t, cfg)
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 4, 0)

	order, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 4}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)
	assert.False(t, order.StockDeducted)
	assert.Equal(t, 4, f.stock(t, product.ID))

	_, err = f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 5}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	f.transition(t, order.ID, enums.OrderStatusConfirmed)
	f.transition(t, order.ID, enums.OrderStatusOutForDelivery)
	res := f.transition(t, order.ID, enums.OrderStatusDelivered)
	assert.True(t, res.Order.StockDeducted)
	assert.Zero(t, f.stock(t, product.ID))

	rec, err := f.ledger.ReconcileProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestCancelWithoutDeductionWritesNoStockRows(t *testing.T) {
	cfg := defaultSettings()
	cfg.StockDeductOn = settings.DeductOnOrderDelivered
	f := newFixture(t, cfg)
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 4, 0)

	order, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 2}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)
	f.transition(t, order.ID, enums.OrderStatusCancelled)

	rows, err := f.ledger.InventoryForReference(ctx, nil, *ledger.OrderReference(order.ID))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 4, f.stock(t, product.ID))
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)

	order, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, TransitionOrderCommand{OrderID: order.ID, Status: enums.OrderStatusDelivered, Actor: admin})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusPending, details["from"])

	f.transition(t, order.ID, enums.OrderStatusCancelled)
	for _, next := range []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusDelivered} {
		_, err := f.svc.Transition(ctx, TransitionOrderCommand{OrderID: order.ID, Status: next, Actor: admin})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition), "cancelled -> %s", next)
	}
	assert.Equal(t, 10, f.stock(t, product.ID), "a rejected transition must not move stock")
}

func TestTransitionUnknownOrder(t *testing.T) {
	f := newFixture(t, defaultSettings())
	_, err := f.svc.Transition(context.Background(), TransitionOrderCommand{
		OrderID: uuid.New(),
		Status:  enums.OrderStatusConfirmed,
		Actor:   admin,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestCustomerTransitionRules(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	order, err := f.svc.Create(ctx, CreateOrderCommand{
		CustomerID:    customer.ID,
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)

	owner := ledger.Actor{ID: customer.ID, Role: enums.ActorRoleCustomer}
	stranger := ledger.Actor{ID: uuid.New(), Role: enums.ActorRoleCustomer}

	_, err = f.svc.Transition(ctx, TransitionOrderCommand{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: owner})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = f.svc.Transition(ctx, TransitionOrderCommand{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: stranger})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = f.svc.Get(ctx, order.ID, stranger)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	res, err := f.svc.Transition(ctx, TransitionOrderCommand{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: owner})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, res.Order.Status)
}

func TestListByCustomerPages(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	for range 3 {
		_, err := f.svc.Create(ctx, CreateOrderCommand{
			CustomerID:    customer.ID,
			Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
			PaymentMethod: enums.PaymentMethodCash,
			Actor:         admin,
		})
		require.NoError(t, err)
	}

	first, err := f.svc.ListByCustomer(ctx, customer.ID, admin, pagination.Params{Limit: 2}, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListByCustomer(ctx, customer.ID, admin, pagination.Params{Limit: 2, Cursor: first.NextCursor}, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	_, err = f.svc.ListByCustomer(ctx, customer.ID, admin, pagination.Params{Cursor: "%%%"}, ListFilter{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSubscriptionPairIsUnique(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	customer := dbtest.SeedCustomer(t, f.client, "Maria", 0)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	subID := uuid.New()
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cmd := CreateOrderCommand{
		CustomerID:          customer.ID,
		Items:               []ItemInput{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod:       enums.PaymentMethodCash,
		Source:              enums.OrderSourceSubscription,
		Actor:               ledger.SystemActor(),
		SubscriptionID:      &subID,
		SubscriptionDueDate: &due,
	}
	cfg := defaultSettings()
	var created *models.Order
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = f.svc.CreateWithTx(ctx, tx, cfg, cmd)
		return err
	}))

	var found *models.Order
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		found, err = f.svc.FindBySubscriptionDueWithTx(ctx, tx, subID, due)
		return err
	}))
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.CreateWithTx(ctx, tx, cfg, cmd)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrency), "got %v", err)
	assert.Equal(t, 9, f.stock(t, product.ID))
}

func TestCreateValidatesBeforeTx(t *testing.T) {
	tx := &countingTx{}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(nil),
		Catalog:   stubCatalog{},
		Inventory: stubStock{},
		Loyalty:   stubPoints{},
		Settings:  settings.Static(defaultSettings()),
		Outbox:    stubOutbox{},
		Tx:        tx,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []CreateOrderCommand{
		{},
		{CustomerID: uuid.New(), PaymentMethod: enums.PaymentMethodCash},
		{CustomerID: uuid.New(), PaymentMethod: enums.PaymentMethodCash, Items: []ItemInput{{ProductID: uuid.New(), Quantity: 0}}},
		{CustomerID: uuid.New(), PaymentMethod: "barter", Items: []ItemInput{{ProductID: uuid.New(), Quantity: 1}}},
		{CustomerID: uuid.New(), PaymentMethod: enums.PaymentMethodCash, RedeemPoints: -1, Items: []ItemInput{{ProductID: uuid.New(), Quantity: 1}}},
	}
	for i, cmd := range cases {
		cmd.Actor = admin
		if _, err := svc.Create(context.Background(), cmd); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if _, err := svc.Transition(context.Background(), TransitionOrderCommand{OrderID: uuid.New(), Status: "lost", Actor: admin}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	if tx.calls != 0 {
		t.Fatalf("transaction opened %d times", tx.calls)
	}
}

type countingTx struct{ calls int }

func (c *countingTx) WithTx(context.Context, func(tx *gorm.DB) error) error {
	c.calls++
	return nil
}

type stubCatalog struct{}

func (stubCatalog) ProductsForPricing(context.Context, *gorm.DB, []uuid.UUID) (map[uuid.UUID]catalog.PricedProduct, error) {
	return nil, nil
}

func (stubCatalog) ZoneForPricing(context.Context, *gorm.DB, uuid.UUID) (*catalog.ZoneQuote, error) {
	return nil, nil
}

func (stubCatalog) CustomerExists(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type stubStock struct{}

func (stubStock) ReserveWithTx(context.Context, *gorm.DB, inventory.ReserveCommand) (*inventory.ReservationReceipt, error) {
	return &inventory.ReservationReceipt{}, nil
}

func (stubStock) CheckAvailabilityWithTx(context.Context, *gorm.DB, []inventory.Line) error {
	return nil
}

func (stubStock) ReleaseWithTx(context.Context, *gorm.DB, inventory.ReleaseCommand) error { return nil }

type stubPoints struct{}

func (stubPoints) RedeemWithTx(context.Context, *gorm.DB, loyalty.RedeemCommand) (*loyalty.Redemption, error) {
	return &loyalty.Redemption{}, nil
}

func (stubPoints) AccrueWithTx(context.Context, *gorm.DB, loyalty.AccrueCommand) (int, error) {
	return 0, nil
}

func (stubPoints) RefundWithTx(context.Context, *gorm.DB, loyalty.RefundCommand) (int, error) {
	return 0, nil
}

type stubOutbox struct{}

func (stubOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error { return nil }
