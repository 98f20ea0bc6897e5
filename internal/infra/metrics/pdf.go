package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(pdfCompositionsTotal, pdfCompositionDuration) }

var (
	pdfCompositionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdf_compositions_total",
			Help: "Merge-and-stamp runs, labeled by result.",
		},
		[]string{"result"}, // 'ok', 'invalid', 'not_found', 'error'
	)

	pdfCompositionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdf_composition_duration_seconds",
			Help:    "Duration of a full merge-and-stamp run.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

func ObservePDFComposition(result string, d time.Duration) {
	pdfCompositionsTotal.WithLabelValues(norm(result)).Inc()
	pdfCompositionDuration.Observe(d.Seconds())
}
