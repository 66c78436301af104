package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheLookupsTotal) }

var cacheLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reminder_cache_lookups_total",
		Help: "Streak cache lookups, labeled by cache and outcome.",
	},
	[]string{"cache", "result"}, // result: hit|miss|error
)

// ObserveCacheLookup counts one lookup. A read error counts as "error" and
// the caller falls through to the store.
func ObserveCacheLookup(cache string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(norm(cache), result).Inc()
}
