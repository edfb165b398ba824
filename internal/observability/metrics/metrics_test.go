package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSweepMetricsObserve(t *testing.T) {
	m := NewSweepMetrics(prometheus.NewRegistry())
	m.ObserveTenant("ok", 0.5)
	m.ObserveNotifications("stale", 3)
	m.ObserveSuppressed(2)
	m.ObserveTipFallback()
}

func TestSweepMetricsNilSafe(t *testing.T) {
	var m *SweepMetrics
	m.ObserveTenant("ok", 0.1)
	m.ObserveNotifications("overdue", 1)
	m.ObserveSuppressed(1)
	m.ObserveTipFallback()
}

func TestReminderMetricsObserve(t *testing.T) {
	m := NewReminderMetrics(prometheus.NewRegistry())
	m.ObserveScheduled(6)
	m.ObserveDismissed(6)
}

func TestReminderMetricsNilSafe(t *testing.T) {
	var m *ReminderMetrics
	m.ObserveScheduled(1)
	m.ObserveDismissed(1)
}
