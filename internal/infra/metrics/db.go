package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storeConnections) }

var storeConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "reminder_store_connections",
		Help: "Connections held by the record store, labeled by driver and state.",
	},
	[]string{"driver", "state"}, // driver: sqlite|postgres, state: open|idle|in_use
)

// SetStoreConnections publishes a snapshot of the store's connection pool.
func SetStoreConnections(driver string, open, idle, inUse int32) {
	d := norm(driver)
	storeConnections.WithLabelValues(d, "open").Set(float64(open))
	storeConnections.WithLabelValues(d, "idle").Set(float64(idle))
	storeConnections.WithLabelValues(d, "in_use").Set(float64(inUse))
}
