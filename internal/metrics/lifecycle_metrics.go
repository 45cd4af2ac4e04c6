package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics содержит метрики операций над спецзаказами.
type LifecycleMetrics struct {
	ordersCreated     prometheus.Counter
	transitions       *prometheus.CounterVec
	paymentUpdates    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	failures          *prometheus.CounterVec
}

// NewLifecycleMetrics регистрирует метрики в DefaultRegisterer.
func NewLifecycleMetrics() *LifecycleMetrics {
	return NewLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLifecycleMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LifecycleMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "special_orders_created_total",
			Help: "Total number of special orders created",
		}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "special_orders_status_transitions_total",
			Help: "Total number of committed status transitions grouped by source, target and kind",
		}, []string{"from", "to", "kind"}),
		paymentUpdates: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "special_orders_payment_updates_total",
			Help: "Total number of payment updates grouped by resulting status",
		}, []string{"result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "special_orders_operation_duration_seconds",
			Help:    "Duration of lifecycle operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		failures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "special_orders_failures_total",
			Help: "Total number of failed lifecycle operations grouped by error kind",
		}, []string{"operation", "kind"}),
	}
}

// RecordCreated увеличивает счётчик созданных заказов.
func (m *LifecycleMetrics) RecordCreated() {
	m.ordersCreated.Inc()
}

// RecordTransition фиксирует применённый переход статуса.
func (m *LifecycleMetrics) RecordTransition(from, to, kind string) {
	m.transitions.WithLabelValues(from, to, kind).Inc()
}

// RecordPaymentUpdate фиксирует обновление оплаты с итоговым статусом.
func (m *LifecycleMetrics) RecordPaymentUpdate(result string) {
	m.paymentUpdates.WithLabelValues(result).Inc()
}

// RecordDuration записывает длительность операции.
func (m *LifecycleMetrics) RecordDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFailure увеличивает счётчик ошибок операции.
func (m *LifecycleMetrics) RecordFailure(operation, kind string) {
	m.failures.WithLabelValues(operation, kind).Inc()
}
