package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestLifecycleMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycleMetricsWithRegisterer(reg)

	m.RecordCreated()
	m.RecordCreated()
	m.RecordTransition("vendu", "en_attente", "regression")
	m.RecordPaymentUpdate("paiement_partiel")
	m.RecordFailure("update_payment", "invalid_payment")
	m.RecordDuration("create", 15*time.Millisecond)

	if got := counterValue(t, m.ordersCreated); got != 2 {
		t.Errorf("expected created counter 2, got %f", got)
	}
	if got := counterValue(t, m.transitions.WithLabelValues("vendu", "en_attente", "regression")); got != 1 {
		t.Errorf("expected transition counter 1, got %f", got)
	}
	if got := counterValue(t, m.paymentUpdates.WithLabelValues("paiement_partiel")); got != 1 {
		t.Errorf("expected payment counter 1, got %f", got)
	}
	if got := counterValue(t, m.failures.WithLabelValues("update_payment", "invalid_payment")); got != 1 {
		t.Errorf("expected failure counter 1, got %f", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "special_orders_operation_duration_seconds" {
			found = true
			if got := family.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
				t.Errorf("expected 1 duration sample, got %d", got)
			}
		}
	}
	if !found {
		t.Error("duration histogram is not registered")
	}
}

func TestLifecycleMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewLifecycleMetricsWithRegisterer(reg)
	second := NewLifecycleMetricsWithRegisterer(reg)

	first.RecordCreated()
	second.RecordCreated()

	if got := counterValue(t, first.ordersCreated); got != 2 {
		t.Errorf("expected shared counter value 2, got %f", got)
	}
}
