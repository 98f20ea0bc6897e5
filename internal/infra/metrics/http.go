package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestsTotal, throttleRejectionsTotal) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	throttleRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "throttle_rejections_total",
			Help: "Requests rejected by the per-user daily limiter.",
		},
		[]string{"route"},
	)
)

func IncHTTPRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func IncThrottleRejection(route string) {
	throttleRejectionsTotal.WithLabelValues(norm(route)).Inc()
}
