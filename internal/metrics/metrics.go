// Package metrics exposes Prometheus collectors for the collector
// service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	collectorCyclesTotal          *prometheus.CounterVec
	collectorCycleDuration        prometheus.Histogram
	collectorEntities             *prometheus.GaugeVec
	collectorChangesTotal         *prometheus.CounterVec
	collectorFetcherResetsTotal   *prometheus.CounterVec
	collectorPersistFailuresTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		collectorCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_cycles_total",
				Help: "Total number of poll cycles, labeled by result.",
			},
			[]string{"result"},
		)

		collectorCycleDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collector_cycle_duration_seconds",
				Help:    "Histogram of full poll cycle durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		collectorEntities = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collector_entities",
				Help: "Number of entities currently tracked, labeled by collection.",
			},
			[]string{"collection"},
		)

		collectorChangesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_changes_total",
				Help: "Total reconciliation outcomes, labeled by collection and kind.",
			},
			[]string{"collection", "kind"},
		)

		collectorFetcherResetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_fetcher_resets_total",
				Help: "Total browser resource resets, labeled by reason.",
			},
			[]string{"reason"},
		)

		collectorPersistFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collector_persist_failures_total",
				Help: "Total best-effort persistence writes that failed.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records one completed poll cycle.
func ObserveCycle(result string, duration time.Duration) {
	collectorCyclesTotal.WithLabelValues(result).Inc()
	collectorCycleDuration.Observe(duration.Seconds())
}

// SetEntityCount publishes the current store size for a collection.
func SetEntityCount(collection string, n int) {
	collectorEntities.WithLabelValues(collection).Set(float64(n))
}

// ObserveChanges records reconciliation outcomes for a collection.
func ObserveChanges(collection string, created, updated, unchanged int) {
	if created > 0 {
		collectorChangesTotal.WithLabelValues(collection, "created").Add(float64(created))
	}
	if updated > 0 {
		collectorChangesTotal.WithLabelValues(collection, "updated").Add(float64(updated))
	}
	if unchanged > 0 {
		collectorChangesTotal.WithLabelValues(collection, "unchanged").Add(float64(unchanged))
	}
}

// ObserveFetcherReset increments the reset counter for the given reason.
func ObserveFetcherReset(reason string) {
	collectorFetcherResetsTotal.WithLabelValues(reason).Inc()
}

// ObservePersistFailure increments the persistence failure counter.
func ObservePersistFailure() {
	collectorPersistFailuresTotal.Inc()
}
