package catalog

import "github.com/prometheus/client_golang/prometheus"

var SearchCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dibs",
	Subsystem: "search",
	Name:      "cache_requests_total",
	Help:      "Search cache lookups by hit or miss.",
}, []string{"result"})

var ReservationResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dibs",
	Subsystem: "reservations",
	Name:      "results_total",
	Help:      "Reservation operations by outcome.",
}, []string{"op", "result"})

var BulkItemResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dibs",
	Subsystem: "bulk",
	Name:      "item_results_total",
	Help:      "Per-item bulk outcomes.",
}, []string{"kind", "result"})

var IndexRebuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dibs",
	Subsystem: "index",
	Name:      "rebuild_duration_seconds",
	Help:      "Time spent rebuilding the derived index.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

var StaleIndexWarnings = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "dibs",
	Subsystem: "index",
	Name:      "stale_warnings_total",
	Help:      "Mutations whose derived state could not be refreshed.",
})

// Collectors returns every catalog metric for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SearchCacheRequests,
		ReservationResults,
		BulkItemResults,
		IndexRebuildDuration,
		StaleIndexWarnings,
	}
}
