package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(paymentsTotal, settledAmountTotal)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment transitions by status and payment type.",
		},
		[]string{"status", "type"},
	)

	// minor units, as stored on the payment row
	settledAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_settled_amount_minor_total",
			Help: "Sum of settled payment amounts in minor currency units.",
		},
		[]string{"currency", "type"},
	)
)

func IncPayment(status, paymentType string) {
	paymentsTotal.WithLabelValues(norm(status), norm(paymentType)).Inc()
}

func AddSettledAmount(currency, paymentType string, minor int64) {
	if minor <= 0 {
		return
	}
	settledAmountTotal.WithLabelValues(norm(currency), norm(paymentType)).Add(float64(minor))
}
