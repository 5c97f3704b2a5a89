package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// OrderMetrics counts order engine outcomes. All methods are nil-safe so
// services can run without a registry in tests.
type OrderMetrics struct {
	created        *prometheus.CounterVec
	createFailures *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	stockConflicts prometheus.Counter
	notifyFailures *prometheus.CounterVec
	expiredOrders  prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders committed, by currency.",
		}, []string{"currency"}),
		createFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_create_failures_total",
			Help:      "Rejected order creations, by error code.",
		}, []string{"code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		stockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_reservation_conflicts_total",
			Help:      "Reservations rejected for insufficient stock inside the order transaction.",
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_notification_failures_total",
			Help:      "Order notifications that failed after commit.",
		}, []string{"event"}),
		expiredOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_expired_total",
			Help:      "Pending orders cancelled by the expiry job.",
		}),
	}
	reg.MustRegister(m.created, m.createFailures, m.transitions, m.stockConflicts, m.notifyFailures, m.expiredOrders)
	return m
}

func (m *OrderMetrics) IncCreated(currency string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(currency)).Inc()
}

func (m *OrderMetrics) IncCreateFailure(code string) {
	if m == nil || m.createFailures == nil {
		return
	}
	m.createFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *OrderMetrics) IncStockConflict() {
	if m == nil || m.stockConflicts == nil {
		return
	}
	m.stockConflicts.Inc()
}

func (m *OrderMetrics) IncNotifyFailure(event string) {
	if m == nil || m.notifyFailures == nil {
		return
	}
	m.notifyFailures.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *OrderMetrics) AddExpired(n int) {
	if m == nil || m.expiredOrders == nil || n <= 0 {
		return
	}
	m.expiredOrders.Add(float64(n))
}
