package subscriptions_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/aquaflow-backend/internal/app"
	"github.com/angelmondragon/aquaflow-backend/internal/app/apptest"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/subscriptions"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox/payloads"
)

var (
	admin   = ledger.Actor{ID: uuid.New(), Role: enums.ActorRoleAdmin}
	newYear = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	client   *db.Client
	app      *app.Container
	customer models.Customer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client, container := apptest.New(t, apptest.Settings())
	return fixture{client: client, app: container, customer: dbtest.SeedCustomer(t, client, "Maria", 0)}
}

func (f fixture) subscribe(t *testing.T, product models.Product, qty, freq int, start time.Time) *models.Subscription {
	t.Helper()
	sub, err := f.app.Subscriptions.Create(context.Background(), subscriptions.CreateSubscriptionInput{
		CustomerID:    f.customer.ID,
		Items:         []subscriptions.ItemInput{{ProductID: product.ID, Quantity: qty}},
		FrequencyDays: freq,
		StartDate:     &start,
		Address:       "12 Rizal St",
		PaymentMethod: enums.PaymentMethodCash,
		Actor:         admin,
	})
	require.NoError(t, err)
	return sub
}

func (f fixture) reload(t *testing.T, id uuid.UUID) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, f.client.DB().First(&sub, "id = ?", id).Error)
	return sub
}

func (f fixture) subscriptionOrders(t *testing.T, id uuid.UUID) []models.Order {
	t.Helper()
	var out []models.Order
	require.NoError(t, f.client.DB().Where("subscription_id = ?", id).Find(&out).Error)
	return out
}

func TestRunBatchTwiceOnSameDayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	sub := f.subscribe(t, product, 2, 7, newYear)

	first, err := f.app.Materializer.RunBatch(ctx, newYear)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Due)
	assert.Equal(t, 1, first.Created)
	assert.NoError(t, first.Errors)

	second, err := f.app.Materializer.RunBatch(ctx, newYear)
	require.NoError(t, err)
	assert.Zero(t, second.Due)
	assert.Zero(t, second.Created)

	placed := f.subscriptionOrders(t, sub.ID)
	require.Len(t, placed, 1)
	assert.Equal(t, enums.OrderSourceSubscription, placed[0].Source)
	assert.Equal(t, enums.OrderStatusPending, placed[0].Status)
	assert.Equal(t, int64(7000), placed[0].TotalCents)

	stored := f.reload(t, sub.ID)
	assert.Equal(t, "2024-01-08", stored.NextDeliveryDate.UTC().Format(time.DateOnly))
	require.NotNil(t, stored.LastOrderID)
	assert.Equal(t, placed[0].ID, *stored.LastOrderID)

	var product2 models.Product
	require.NoError(t, f.client.DB().First(&product2, "id = ?", product.ID).Error)
	assert.Equal(t, 8, product2.StockQuantity)
}

func TestRunBatchAdvancesOneFrequencyWhenLate(t *testing.T) {
	f := newFixture(t)
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	sub := f.subscribe(t, product, 1, 7, newYear)

	report, err := f.app.Materializer.RunBatch(context.Background(), newYear.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	stored := f.reload(t, sub.ID)
	assert.Equal(t, "2024-01-08", stored.NextDeliveryDate.UTC().Format(time.DateOnly))
}

func TestRunBatchSkipsShortfallAndContinues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scarce := dbtest.SeedProduct(t, f.client, "dispenser", 90000, 1, 0)
	plenty := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	short := f.subscribe(t, scarce, 3, 7, newYear)
	fine := f.subscribe(t, plenty, 1, 14, newYear)

	report, err := f.app.Materializer.RunBatch(ctx, newYear)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)

	assert.Empty(t, f.subscriptionOrders(t, short.ID))
	assert.Equal(t, "2024-01-01", f.reload(t, short.ID).NextDeliveryDate.UTC().Format(time.DateOnly))
	assert.Len(t, f.subscriptionOrders(t, fine.ID), 1)
	assert.Equal(t, "2024-01-15", f.reload(t, fine.ID).NextDeliveryDate.UTC().Format(time.DateOnly))

	events, err := f.app.OutboxRepo.ListByAggregate(ctx, short.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventSubscriptionSkipped, events[0].EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.SubscriptionOrderSkippedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), payload.Reason)
	require.Len(t, payload.Shortfalls, 1)
	assert.Equal(t, scarce.ID, payload.Shortfalls[0].ProductID)
	assert.Equal(t, 3, payload.Shortfalls[0].Requested)
	assert.Equal(t, 1, payload.Shortfalls[0].Available)
}

func TestRunBatchIgnoresInactiveAndFutureSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	paused := f.subscribe(t, product, 1, 7, newYear)
	f.subscribe(t, product, 1, 7, newYear.AddDate(0, 0, 1))

	_, err := f.app.Subscriptions.Pause(ctx, paused.ID, admin)
	require.NoError(t, err)

	report, err := f.app.Materializer.RunBatch(ctx, newYear)
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.Empty(t, f.subscriptionOrders(t, paused.ID))
}

func TestRunBatchRepairsDateWhenOrderAlreadyExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, f.client, "refill", 2500, 10, 0)
	sub := f.subscribe(t, product, 1, 7, newYear)

	_, err := f.app.Materializer.RunBatch(ctx, newYear)
	require.NoError(t, err)
	placed := f.subscriptionOrders(t, sub.ID)
	require.Len(t, placed, 1)

	// Simulate a date that never advanced after its order committed.
	require.NoError(t, f.client.DB().Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Update("next_delivery_date", newYear).Error)

	report, err := f.app.Materializer.RunBatch(ctx, newYear)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlreadyMaterialized)
	assert.Zero(t, report.Created)
	assert.Len(t, f.subscriptionOrders(t, sub.ID), 1)
	assert.Equal(t, "2024-01-08", f.reload(t, sub.ID).NextDeliveryDate.UTC().Format(time.DateOnly))
}

func TestToday(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	// 17:30 UTC on Dec 31 is already Jan 1 in Manila.
	now := time.Date(2023, 12, 31, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, newYear, subscriptions.Today(now, manila))
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), subscriptions.Today(now, nil))
}
