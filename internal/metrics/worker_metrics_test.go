package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestOutboxMetrics(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordAttempt(PublishRetryError)
	m.RecordAttempt(PublishSent)
	m.RecordAttempt(PublishSent)
	m.ObservePublish("special_order.created", 3*time.Millisecond)

	if got := counterValue(t, m.attempts.WithLabelValues(PublishSent)); got != 2 {
		t.Errorf("expected 2 sent attempts, got %f", got)
	}
	if got := counterValue(t, m.attempts.WithLabelValues(PublishRetryError)); got != 1 {
		t.Errorf("expected 1 retry error, got %f", got)
	}

	m.SetBacklog(3, 90*time.Second)
	if got := gaugeValue(t, m.pending); got != 3 {
		t.Errorf("expected pending 3, got %f", got)
	}
	if got := gaugeValue(t, m.oldestAge); got != 90 {
		t.Errorf("expected oldest age 90s, got %f", got)
	}

	m.SetBacklog(0, time.Hour)
	if got := gaugeValue(t, m.oldestAge); got != 0 {
		t.Errorf("empty backlog must reset age, got %f", got)
	}
	m.SetBacklog(1, -time.Second)
	if got := gaugeValue(t, m.oldestAge); got != 0 {
		t.Errorf("clock skew must not produce negative age, got %f", got)
	}
}

func TestCleanupMetrics(t *testing.T) {
	m := NewCleanupMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordDeleted(4)
	m.RecordDeleted(0)
	m.RecordRun(nil, 4)
	m.RecordRun(errors.New("db down"), 0)

	if got := counterValue(t, m.deleted); got != 4 {
		t.Errorf("expected 4 deleted, got %f", got)
	}
	if got := gaugeValue(t, m.lastDeleted); got != 4 {
		t.Errorf("failed run must keep last deleted, got %f", got)
	}
	if got := counterValue(t, m.runs.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed run, got %f", got)
	}
}

func TestRegisterRejectsTypeClash(t *testing.T) {
	reg := prometheus.NewRegistry()
	registerCounter(reg, prometheus.CounterOpts{Name: "clash_total", Help: "h"})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on collector type clash")
		}
	}()
	registerGauge(reg, prometheus.GaugeOpts{Name: "clash_total", Help: "h"})
}
