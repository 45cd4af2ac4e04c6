package metrics

import "github.com/prometheus/client_golang/prometheus"

// CleanupMetrics: метрики очистки ключей идемпотентности.
type CleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

func NewCleanupMetrics() *CleanupMetrics {
	return NewCleanupMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewCleanupMetricsWithRegisterer(registerer prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		runs: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "special_orders_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		deleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "special_orders_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency keys.",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "special_orders_idempotency_cleanup_last_deleted",
			Help: "Number of keys deleted during the last cleanup run.",
		}),
	}
}

// RecordDeleted учитывает одну удалённую порцию.
func (m *CleanupMetrics) RecordDeleted(n int) {
	if n > 0 {
		m.deleted.Add(float64(n))
	}
}

// RecordRun фиксирует завершённый цикл очистки.
func (m *CleanupMetrics) RecordRun(err error, deleted int) {
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.lastDeleted.Set(float64(deleted))
}
