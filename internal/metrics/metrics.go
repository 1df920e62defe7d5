// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	itemsIndexedTotal   *prometheus.CounterVec
	itemsSkippedTotal   *prometheus.CounterVec
	upsertAttemptsTotal *prometheus.CounterVec
	passesTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		itemsIndexedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_indexed_total",
				Help: "Documents upserted into the search index, labeled by source and kind.",
			},
			[]string{"source", "kind"},
		)

		itemsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_skipped_total",
				Help: "Items excluded before indexing, labeled by source and reason.",
			},
			[]string{"source", "reason"},
		)

		upsertAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_upsert_attempts_total",
				Help: "Individual upsert attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		passesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_passes_total",
				Help: "Completed crawl passes, labeled by stream kind and stop reason.",
			},
			[]string{"kind", "reason"},
		)
	})
}

// ObserveItemIndexed counts one successfully upserted document.
func ObserveItemIndexed(source, kind string) {
	if itemsIndexedTotal != nil {
		itemsIndexedTotal.WithLabelValues(source, kind).Inc()
	}
}

// ObserveItemSkipped counts one item excluded before indexing.
func ObserveItemSkipped(source, reason string) {
	if itemsSkippedTotal != nil {
		itemsSkippedTotal.WithLabelValues(source, reason).Inc()
	}
}

// ObserveUpsertAttempt counts one upsert attempt with outcome "ok" or "error".
func ObserveUpsertAttempt(outcome string) {
	if upsertAttemptsTotal != nil {
		upsertAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObservePass counts one finished crawl pass.
func ObservePass(kind, reason string) {
	if passesTotal != nil {
		passesTotal.WithLabelValues(kind, reason).Inc()
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
