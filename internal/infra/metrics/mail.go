package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(mailDeliveriesTotal) }

// kind: welcome|event_join|mission_proposal
// status: sent|error|dropped
var mailDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mail_deliveries_total",
		Help: "Transactional mail attempts by kind and delivery status.",
	},
	[]string{"kind", "status"},
)

func IncMailDelivery(kind, status string) {
	mailDeliveriesTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
