package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/aquaflow-backend/api/controllers"
	"github.com/angelmondragon/aquaflow-backend/api/middleware"
	"github.com/angelmondragon/aquaflow-backend/internal/app"
	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	"github.com/angelmondragon/aquaflow-backend/pkg/db"
	"github.com/angelmondragon/aquaflow-backend/pkg/enums"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/aquaflow-backend/pkg/redis"
)

// Store is the redis surface the HTTP layer needs: idempotency replay and
// per-actor rate limiting.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Params wires the router. Store and Gatherer may be nil; the idempotency and
// rate limit middleware then pass requests through and /metrics is not mounted.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Store       Store
	Services    *app.Container
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg, logg, svc := p.Config, p.Logger, p.Services

	var idemStore pkgredis.IdempotencyStore
	var limiter interface {
		FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	}
	readiness := map[string]db.Pinger{"database": p.DB}
	if p.Store != nil {
		idemStore = p.Store
		limiter = p.Store
		readiness["redis"] = p.Store
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	operators := middleware.RequireRole(logg, enums.ActorRoleAdmin, enums.ActorRoleStaff)
	adminOnly := middleware.RequireRole(logg, enums.ActorRoleAdmin)
	orderPolicy := middleware.RateLimitPolicy{
		Name:   "order-create",
		Window: cfg.RateLimit.OrderWindow,
		Limit:  cfg.RateLimit.OrderLimit,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(idemStore, cfg.Commerce.IdempotencyTTL, logg))

		r.Get("/ping", controllers.ActorPing())

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RateLimit(orderPolicy, limiter, logg)).Post("/", controllers.OrderCreate(svc.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svc.Orders, logg))
			r.Post("/{orderId}/transition", controllers.OrderTransition(svc.Orders, logg))
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Get("/{orderId}", controllers.DeliveryDetail(svc.Delivery, logg))
			r.With(operators).Post("/{orderId}/assign", controllers.DeliveryAssign(svc.Delivery, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleDelivery)).Post("/{orderId}/accept", controllers.DeliveryAccept(svc.Delivery, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleDelivery, enums.ActorRoleAdmin, enums.ActorRoleStaff)).
				Post("/{orderId}/status", controllers.DeliveryStatus(svc.Delivery, logg))
		})
		r.Get("/staff/{staffId}/deliveries", controllers.StaffDeliveries(svc.Delivery, logg))

		r.Route("/inventory/{productId}", func(r chi.Router) {
			r.Use(operators)
			r.Post("/adjust", controllers.InventoryAdjust(svc.Inventory, logg))
			r.Get("/history", controllers.InventoryHistory(svc.Ledger, logg))
			r.Get("/reconcile", controllers.InventoryReconcile(svc.Ledger, logg))
		})

		r.Route("/customers/{customerId}", func(r chi.Router) {
			r.Get("/", controllers.CustomerDetail(svc.Catalog, logg))
			r.Get("/orders", controllers.CustomerOrders(svc.Orders, logg))
			r.Get("/points", controllers.CustomerPoints(svc.Loyalty, logg))
			r.With(operators).Get("/points/reconcile", controllers.CustomerPointsReconcile(svc.Ledger, logg))
			r.Get("/subscriptions", controllers.CustomerSubscriptions(svc.Subscriptions, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionCreate(svc.Subscriptions, logg))
			r.Get("/{subscriptionId}", controllers.SubscriptionDetail(svc.Subscriptions, logg))
			r.Post("/{subscriptionId}/pause", controllers.SubscriptionPause(svc.Subscriptions, logg))
			r.Post("/{subscriptionId}/resume", controllers.SubscriptionResume(svc.Subscriptions, logg))
			r.Post("/{subscriptionId}/cancel", controllers.SubscriptionCancel(svc.Subscriptions, logg))
		})

		if svc.Settings != nil {
			r.Route("/settings", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", controllers.SettingsDetail(svc.Settings, logg))
				r.Put("/{key}", controllers.SettingUpdate(svc.Settings, logg))
				r.Delete("/{key}", controllers.SettingReset(svc.Settings, logg))
			})
		}

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.ProductList(svc.Catalog, logg))
			r.Get("/products/{productId}", controllers.ProductDetail(svc.Catalog, logg))
			r.Get("/zones", controllers.ZoneList(svc.Catalog, logg))
			r.With(operators).Post("/customers", controllers.CustomerCreate(svc.Catalog, logg))

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/products", controllers.ProductCreate(svc.Catalog, logg))
				r.Patch("/products/{productId}", controllers.ProductUpdate(svc.Catalog, logg))
				r.Post("/zones", controllers.ZoneCreate(svc.Catalog, logg))
				r.Patch("/zones/{zoneId}", controllers.ZoneUpdate(svc.Catalog, logg))
			})
		})
	})

	return r
}
