package metrics

import "github.com/prometheus/client_golang/prometheus"

// SweepMetrics exposes counters/histograms for the notification sweep.
type SweepMetrics struct {
	tenantsTotal      *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	suppressedTotal   prometheus.Counter
	tipFallbackTotal  prometheus.Counter
	tenantDuration    prometheus.Histogram
}

func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	m := &SweepMetrics{
		tenantsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "sweep",
			Name:      "tenants_total",
			Help:      "Total tenant sweeps by outcome",
		}, []string{"status"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "sweep",
			Name:      "notifications_total",
			Help:      "Notifications persisted by the sweep",
		}, []string{"reason"}),
		suppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "sweep",
			Name:      "suppressed_total",
			Help:      "Candidates suppressed by the dedupe window",
		}),
		tipFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "sweep",
			Name:      "tip_fallback_total",
			Help:      "Buckets that fell back to deterministic tips",
		}),
		tenantDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pipeline",
			Subsystem: "sweep",
			Name:      "tenant_duration_seconds",
			Help:      "Duration of one tenant sweep",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.tenantsTotal, m.notificationsSent, m.suppressedTotal, m.tipFallbackTotal, m.tenantDuration)
	return m
}

func (m *SweepMetrics) ObserveTenant(status string, seconds float64) {
	if m == nil {
		return
	}
	m.tenantsTotal.WithLabelValues(status).Inc()
	m.tenantDuration.Observe(seconds)
}

func (m *SweepMetrics) ObserveNotifications(reason string, n int) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(reason).Add(float64(n))
}

func (m *SweepMetrics) ObserveSuppressed(n int) {
	if m == nil {
		return
	}
	m.suppressedTotal.Add(float64(n))
}

func (m *SweepMetrics) ObserveTipFallback() {
	if m == nil {
		return
	}
	m.tipFallbackTotal.Inc()
}

// ReminderMetrics exposes counters for meeting reminder scheduling.
type ReminderMetrics struct {
	scheduledTotal prometheus.Counter
	dismissedTotal prometheus.Counter
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		scheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "reminders",
			Name:      "scheduled_total",
			Help:      "Reminder notifications created at meeting creation",
		}),
		dismissedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "reminders",
			Name:      "dismissed_total",
			Help:      "Reminder notifications dismissed on cancellation",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.scheduledTotal, m.dismissedTotal)
	return m
}

func (m *ReminderMetrics) ObserveScheduled(n int) {
	if m == nil {
		return
	}
	m.scheduledTotal.Add(float64(n))
}

func (m *ReminderMetrics) ObserveDismissed(n int) {
	if m == nil {
		return
	}
	m.dismissedTotal.Add(float64(n))
}
