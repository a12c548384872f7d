// Package app assembles the domain services shared by every binary.
package app

import (
	"fmt"
	"time"

	"github.com/angelmondragon/aquaflow-backend/internal/catalog"
	"github.com/angelmondragon/aquaflow-backend/internal/delivery"
	"github.com/angelmondragon/aquaflow-backend/internal/inventory"
	"github.com/angelmondragon/aquaflow-backend/internal/ledger"
	"github.com/angelmondragon/aquaflow-backend/internal/loyalty"
	"github.com/angelmondragon/aquaflow-backend/internal/orders"
	"github.com/angelmondragon/aquaflow-backend/internal/settings"
	"github.com/angelmondragon/aquaflow-backend/internal/subscriptions"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
	"github.com/angelmondragon/aquaflow-backend/pkg/outbox"
)

// Params carries the infrastructure the services run on.
type Params struct {
	DB         *db.Client
	Settings   settings.Provider
	Metrics    *metrics.CommerceMetrics
	Logger     *logger.Logger
	BatchLimit int

	// Location is the scheduler timezone; nil means UTC.
	Location *time.Location
}

// Container holds one instance of every domain service.
type Container struct {
	Ledger        ledger.Service
	Inventory     inventory.Service
	Loyalty       loyalty.Service
	Catalog       catalog.Service
	Orders        orders.Service
	Delivery      delivery.Service
	Subscriptions subscriptions.Service
	Materializer  *subscriptions.Materializer
	Outbox        *outbox.Service
	OutboxRepo    *outbox.Repository

	// Settings is set when the provider is table-backed and can be edited.
	Settings *settings.Service
}

// New wires the services bottom-up: ledger, managers, engine, then the
// dispatcher and scheduler that drive the engine.
func New(p Params) (*Container, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Settings == nil {
		return nil, fmt.Errorf("settings provider required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	conn := p.DB.DB()

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, p.Logger)

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:    inventory.NewRepository(conn),
		Ledger:  ledgerSvc,
		Outbox:  outboxSvc,
		Tx:      p.DB,
		Metrics: p.Metrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	loyaltySvc, err := loyalty.NewService(loyalty.ServiceParams{
		Repo:    loyalty.NewRepository(conn),
		Ledger:  ledgerSvc,
		Tx:      p.DB,
		Metrics: p.Metrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("loyalty: %w", err)
	}
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), inventorySvc, p.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	deliveryRepo := delivery.NewRepository(conn)
	closer, err := delivery.NewOrderCloser(deliveryRepo)
	if err != nil {
		return nil, fmt.Errorf("delivery closer: %w", err)
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(conn),
		Catalog:    catalogSvc,
		Inventory:  inventorySvc,
		Loyalty:    loyaltySvc,
		Settings:   p.Settings,
		Outbox:     outboxSvc,
		Tx:         p.DB,
		Metrics:    p.Metrics,
		Logger:     p.Logger,
		Deliveries: closer,
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	deliverySvc, err := delivery.NewService(deliveryRepo, ordersSvc, p.Settings, p.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}
	subsRepo := subscriptions.NewRepository(conn)
	subsSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     subsRepo,
		Catalog:  catalogSvc,
		Tx:       p.DB,
		Logger:   p.Logger,
		Location: p.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}
	materializer, err := subscriptions.NewMaterializer(subscriptions.MaterializerParams{
		Repo:     subsRepo,
		Orders:   ordersSvc,
		Settings: p.Settings,
		Outbox:   outboxSvc,
		Tx:       p.DB,
		Metrics:  p.Metrics,
		Logger:   p.Logger,
		Limit:    p.BatchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("subscription materializer: %w", err)
	}

	editable, _ := p.Settings.(*settings.Service)

	return &Container{
		Ledger:        ledgerSvc,
		Inventory:     inventorySvc,
		Loyalty:       loyaltySvc,
		Catalog:       catalogSvc,
		Orders:        ordersSvc,
		Delivery:      deliverySvc,
		Subscriptions: subsSvc,
		Materializer:  materializer,
		Outbox:        outboxSvc,
		OutboxRepo:    outboxRepo,
		Settings:      editable,
	}, nil
}
