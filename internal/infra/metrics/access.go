package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(accessChecksTotal) }

var accessChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "access_checks_total",
		Help: "Access-code checks on private resources.",
	},
	[]string{"kind", "result"}, // result: 'granted', 'not_found', 'forbidden', 'unauthorized', 'error'
)

func IncAccessCheck(kind, result string) {
	accessChecksTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}
