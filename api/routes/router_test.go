package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/aquaflow-backend/api/middleware"
	"github.com/angelmondragon/aquaflow-backend/internal/app/apptest"
	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/aquaflow-backend/pkg/db/models"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
)

type memoryStore struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
	pingErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counters: map[string]int64{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return val, nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		s.data[key] = v
	case []byte:
		s.data[key] = string(v)
	default:
		return false, errors.New("unsupported value")
	}
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "af:idempotency:" + scope + ":" + id
}

func (s *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[scope]++
	count := s.counters[scope]
	return count <= limit, count, nil
}

func (s *memoryStore) Ping(context.Context) error {
	return s.pingErr
}

type harness struct {
	handler http.Handler
	client  *db.Client
	store   *memoryStore
}

func newHarness(t *testing.T, orderLimit int) harness {
	t.Helper()
	client, container := apptest.New(t, apptest.Settings())
	store := newMemoryStore()
	cfg := &config.Config{
		App:       config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		Commerce:  config.CommerceConfig{IdempotencyTTL: time.Hour},
		RateLimit: config.RateLimitConfig{OrderWindow: time.Minute, OrderLimit: orderLimit},
	}
	handler := NewRouter(Params{
		Config:   cfg,
		Logger:   apptest.Logger(),
		DB:       client,
		Store:    store,
		Services: container,
	})
	return harness{handler: handler, client: client, store: store}
}

func (h harness) do(t *testing.T, method, path string, actor uuid.UUID, role enums.ActorRole, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if actor != uuid.Nil {
		req.Header.Set(middleware.ActorIDHeader, actor.String())
		req.Header.Set(middleware.ActorRoleHeader, string(role))
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, 10)

	live := h.do(t, http.MethodGet, "/health/live", uuid.Nil, "", "", nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "test", live.Header().Get("X-AquaFlow-Env"))

	ready := h.do(t, http.MethodGet, "/health/ready", uuid.Nil, "", "", nil)
	assert.Equal(t, http.StatusOK, ready.Code)

	h.store.pingErr = errors.New("connection refused")
	down := h.do(t, http.MethodGet, "/health/ready", uuid.Nil, "", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
}

func TestAPIRequiresActorHeaders(t *testing.T) {
	h := newHarness(t, 10)

	rec := h.do(t, http.MethodGet, "/api/v1/ping", uuid.Nil, "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/ping", uuid.New(), enums.ActorRoleCustomer, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/public/ping", uuid.Nil, "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderCreateReplaysIdempotentRequest(t *testing.T) {
	h := newHarness(t, 10)
	product := dbtest.SeedProduct(t, h.client, "5-gal refill", 2500, 10, 0)
	customer := dbtest.SeedCustomer(t, h.client, "Maria", 0)
	body := map[string]any{
		"customer_id":    customer.ID,
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 2}},
		"payment_method": "cash",
	}

	first := h.do(t, http.MethodPost, "/api/v1/orders", customer.ID, enums.ActorRoleCustomer, "order-1", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := h.do(t, http.MethodPost, "/api/v1/orders", customer.ID, enums.ActorRoleCustomer, "order-1", body)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var count int64
	require.NoError(t, h.client.DB().Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored models.Product
	require.NoError(t, h.client.DB().First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 8, stored.StockQuantity)

	missingKey := h.do(t, http.MethodPost, "/api/v1/orders", customer.ID, enums.ActorRoleCustomer, "", body)
	assert.Equal(t, http.StatusBadRequest, missingKey.Code)
}

func TestOrderCreateRejectsShortfall(t *testing.T) {
	h := newHarness(t, 10)
	product := dbtest.SeedProduct(t, h.client, "dispenser", 90000, 1, 0)
	customer := dbtest.SeedCustomer(t, h.client, "Maria", 0)

	rec := h.do(t, http.MethodPost, "/api/v1/orders", customer.ID, enums.ActorRoleCustomer, "short-1", map[string]any{
		"customer_id":    customer.ID,
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 3}},
		"payment_method": "cash",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, rec))
}

func TestOrderCreateIsRateLimitedPerActor(t *testing.T) {
	h := newHarness(t, 1)
	product := dbtest.SeedProduct(t, h.client, "5-gal refill", 2500, 10, 0)
	customer := dbtest.SeedCustomer(t, h.client, "Maria", 0)
	body := map[string]any{
		"customer_id":    customer.ID,
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 1}},
		"payment_method": "cash",
	}

	first := h.do(t, http.MethodPost, "/api/v1/orders", customer.ID, enums.ActorRoleCustomer, "rl-1", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := h.do(t, http.MethodPost, "/api/v1/orders", customer.ID, enums.ActorRoleCustomer, "rl-2", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestInventoryRoutesRequireOperator(t *testing.T) {
	h := newHarness(t, 10)
	product := dbtest.SeedProduct(t, h.client, "5-gal refill", 2500, 10, 0)
	path := "/api/v1/inventory/" + product.ID.String() + "/adjust"
	body := map[string]any{"delta": 5, "reason": "restock"}

	denied := h.do(t, http.MethodPost, path, uuid.New(), enums.ActorRoleCustomer, "adj-1", body)
	assert.Equal(t, http.StatusForbidden, denied.Code)

	staff := uuid.New()
	allowed := h.do(t, http.MethodPost, path, staff, enums.ActorRoleStaff, "adj-2", body)
	require.Equal(t, http.StatusOK, allowed.Code, allowed.Body.String())

	var stored models.Product
	require.NoError(t, h.client.DB().First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 15, stored.StockQuantity)

	reconcile := h.do(t, http.MethodGet, "/api/v1/inventory/"+product.ID.String()+"/reconcile", staff, enums.ActorRoleStaff, "", nil)
	assert.Equal(t, http.StatusOK, reconcile.Code, reconcile.Body.String())
}

func TestCustomerPointsOwnership(t *testing.T) {
	h := newHarness(t, 10)
	customer := dbtest.SeedCustomer(t, h.client, "Maria", 0)
	path := "/api/v1/customers/" + customer.ID.String() + "/points"

	own := h.do(t, http.MethodGet, path, customer.ID, enums.ActorRoleCustomer, "", nil)
	assert.Equal(t, http.StatusOK, own.Code, own.Body.String())

	other := h.do(t, http.MethodGet, path, uuid.New(), enums.ActorRoleCustomer, "", nil)
	assert.Equal(t, http.StatusForbidden, other.Code)
}

func TestSettingsOverridesApplyToNextOrder(t *testing.T) {
	h := newHarness(t, 10)
	admin := uuid.New()
	product := dbtest.SeedProduct(t, h.client, "5-gal refill", 2500, 10, 0)
	customer := dbtest.SeedCustomer(t, h.client, "Maria", 0)

	denied := h.do(t, http.MethodPut, "/api/v1/settings/stock_deduct_on", customer.ID, enums.ActorRoleCustomer, "", map[string]any{"value": "order_delivered"})
	assert.Equal(t, http.StatusForbidden, denied.Code)

	unknown := h.do(t, http.MethodPut, "/api/v1/settings/free_water", admin, enums.ActorRoleAdmin, "", map[string]any{"value": "yes"})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, unknown))

	set := h.do(t, http.MethodPut, "/api/v1/settings/stock_deduct_on", admin, enums.ActorRoleAdmin, "", map[string]any{"value": "order_delivered"})
	require.Equal(t, http.StatusOK, set.Code, set.Body.String())
	var envelope struct {
		Data struct {
			StockDeductOn string `json:"stock_deduct_on"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(set.Body.Bytes(), &envelope))
	assert.Equal(t, "order_delivered", envelope.Data.StockDeductOn)

	order := h.do(t, http.MethodPost, "/api/v1/orders", customer.ID, enums.ActorRoleCustomer, "deferred-1", map[string]any{
		"customer_id":    customer.ID,
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 2}},
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, order.Code, order.Body.String())

	var stored models.Product
	require.NoError(t, h.client.DB().First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 10, stored.StockQuantity, "stock waits for delivery under the override")

	reset := h.do(t, http.MethodDelete, "/api/v1/settings/stock_deduct_on", admin, enums.ActorRoleAdmin, "", nil)
	require.Equal(t, http.StatusOK, reset.Code, reset.Body.String())
	require.NoError(t, json.Unmarshal(reset.Body.Bytes(), &envelope))
	assert.Equal(t, "order_placed", envelope.Data.StockDeductOn)
}
