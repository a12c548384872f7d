package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Subscription materialization outcomes.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// CommerceMetrics counts order engine and scheduler activity.
type CommerceMetrics struct {
	ordersCreated  *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	lowStock       prometheus.Counter
	materialized   *prometheus.CounterVec
	pointsAccrued  prometheus.Counter
	pointsRedeemed prometheus.Counter
}

// NewCommerceMetrics registers the commerce metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	m := &CommerceMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "af_orders_created_total",
			Help: "Orders committed, by source.",
		}, []string{"source"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "af_order_transitions_total",
			Help: "Applied order status transitions, by target status.",
		}, []string{"status"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "af_order_rejections_total",
			Help: "Order operations rejected with a typed error, by code.",
		}, []string{"code"}),
		lowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "af_low_stock_signals_total",
			Help: "Low-stock signals emitted.",
		}),
		materialized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "af_subscription_materializations_total",
			Help: "Due subscriptions processed by the scheduler, by outcome.",
		}, []string{"outcome"}),
		pointsAccrued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "af_loyalty_points_accrued_total",
			Help: "Loyalty points credited.",
		}),
		pointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "af_loyalty_points_redeemed_total",
			Help: "Loyalty points debited by redemption.",
		}),
	}
	reg.MustRegister(m.ordersCreated, m.transitions, m.rejections, m.lowStock, m.materialized, m.pointsAccrued, m.pointsRedeemed)
	return m
}

func (m *CommerceMetrics) IncOrderCreated(source string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *CommerceMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *CommerceMetrics) IncRejection(code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *CommerceMetrics) IncLowStock() {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Inc()
}

func (m *CommerceMetrics) IncMaterialization(outcome string) {
	if m == nil || m.materialized == nil {
		return
	}
	m.materialized.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CommerceMetrics) AddPointsAccrued(points int) {
	if m == nil || m.pointsAccrued == nil || points <= 0 {
		return
	}
	m.pointsAccrued.Add(float64(points))
}

func (m *CommerceMetrics) AddPointsRedeemed(points int) {
	if m == nil || m.pointsRedeemed == nil || points <= 0 {
		return
	}
	m.pointsRedeemed.Add(float64(points))
}
