package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики для операций заказов и платежей.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated   prometheus.Counter
	ordersFailed    prometheus.Counter
	ordersCancelled prometheus.Counter
	stockRollbacks  prometheus.Counter

	chargesInitiated prometheus.Counter
	chargesFailed    prometheus.Counter
	settlements      prometheus.Counter

	// Гистограммы времени выполнения
	createDuration prometheus.Histogram
	stepDuration   *prometheus.HistogramVec

	// Счётчики событий
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик с default registerer.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_orders_failed_total",
			Help: "Total number of order creations that failed",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		stockRollbacks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_stock_rollbacks_total",
			Help: "Total number of compensating stock rollbacks performed",
		}),
		chargesInitiated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_charges_initiated_total",
			Help: "Total number of gateway charges initiated",
		}),
		chargesFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_charges_failed_total",
			Help: "Total number of gateway charges that failed",
		}),
		settlements: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_settlements_total",
			Help: "Total number of payments settled",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "duka_order_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "duka_order_step_duration_seconds",
			Help:    "Duration of individual order workflow steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "duka_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderFailed увеличивает счётчик неудачных созданий.
func (m *OrderMetrics) RecordOrderFailed() {
	m.ordersFailed.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordStockRollback увеличивает счётчик компенсирующих возвратов остатка.
func (m *OrderMetrics) RecordStockRollback() {
	m.stockRollbacks.Inc()
}

// RecordChargeInitiated увеличивает счётчик инициированных списаний.
func (m *OrderMetrics) RecordChargeInitiated() {
	m.chargesInitiated.Inc()
}

// RecordChargeFailed увеличивает счётчик неудачных списаний.
func (m *OrderMetrics) RecordChargeFailed() {
	m.chargesFailed.Inc()
}

// RecordSettlement увеличивает счётчик подтверждённых оплат.
func (m *OrderMetrics) RecordSettlement() {
	m.settlements.Inc()
}

// RecordCreateDuration записывает время создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага workflow.
func (m *OrderMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
