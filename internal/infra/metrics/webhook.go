package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookEventsTotal,
		webhookHandleDuration,
		integrityFailuresTotal,
	)
}

var (
	// result: applied|ignored|error|invalid_signature
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Provider webhook events by type and handling result.",
		},
		[]string{"type", "result"},
	)

	webhookHandleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_handle_duration_seconds",
			Help:    "Time spent reconciling a single webhook event.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"type"},
	)

	// Alert on any increase.
	integrityFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_integrity_failures_total",
			Help: "Multi-step reconciliation writes that failed and were rolled back.",
		},
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
}

func ObserveWebhook(eventType string, d time.Duration) {
	webhookHandleDuration.WithLabelValues(norm(eventType)).Observe(d.Seconds())
}

func IncIntegrityFailure() { integrityFailuresTotal.Inc() }
