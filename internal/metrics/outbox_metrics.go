package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попытки публикации для special_orders_outbox_publish_attempts_total.
const (
	PublishSent       = "sent"
	PublishRetryError = "retry_error"
	PublishFailed     = "failed"
	PublishDLQFailed  = "dlq_failed"
)

// OutboxMetrics: метрики публикации outbox и размера backlog.
type OutboxMetrics struct {
	attempts  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	pending   prometheus.Gauge
	oldestAge prometheus.Gauge
}

func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "special_orders_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "special_orders_outbox_publish_duration_seconds",
			Help:    "Duration of a single outbox publish attempt grouped by event type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "special_orders_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		}),
		oldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "special_orders_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
	}
}

func (m *OutboxMetrics) RecordAttempt(result string) {
	m.attempts.WithLabelValues(result).Inc()
}

func (m *OutboxMetrics) ObservePublish(eventType string, d time.Duration) {
	m.duration.WithLabelValues(eventType).Observe(d.Seconds())
}

// SetBacklog обновляет gauges backlog. Отрицательный возраст обнуляется.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	m.pending.Set(float64(pending))
	if pending == 0 || oldestAge < 0 {
		oldestAge = 0
	}
	m.oldestAge.Set(oldestAge.Seconds())
}
