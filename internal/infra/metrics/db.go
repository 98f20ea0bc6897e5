package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbPoolEmptyAcquires) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Connections in the postgres pool by state.",
		},
		[]string{"state"},
	)
	dbPoolEmptyAcquires = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_empty_acquires",
		Help: "Cumulative acquires that had to wait for a free connection.",
	})
)

// PoolSnapshot is a point-in-time view of the connection pool.
type PoolSnapshot struct {
	Max, Total, Idle, InUse int32
	EmptyAcquires           int64
}

func SetDBPoolStats(s PoolSnapshot) {
	dbPoolConns.WithLabelValues("max").Set(float64(s.Max))
	dbPoolConns.WithLabelValues("total").Set(float64(s.Total))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.Idle))
	dbPoolConns.WithLabelValues("in_use").Set(float64(s.InUse))
	dbPoolEmptyAcquires.Set(float64(s.EmptyAcquires))
}
