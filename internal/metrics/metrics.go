// Package metrics provides Prometheus metrics for the news desk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ainewsdesk"

var (
	// FetchTotal counts per-keyword retrieval attempts.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of per-keyword retrieval attempts",
		},
		[]string{"intent", "status"},
	)

	// FetchDuration measures a single generative API retrieval call.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of per-keyword retrieval calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"intent"},
	)

	// ArticlesReturned observes how many valid articles one retrieval produced.
	ArticlesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_returned",
			Help:      "Distribution of valid articles per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 13},
		},
	)

	// TranslateTotal counts translation batches.
	TranslateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translate_total",
			Help:      "Total number of translation batches",
		},
		[]string{"status"},
	)

	// CycleDuration measures a full retrieval cycle.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of retrieval cycles in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 120, 300},
		},
	)

	// CyclesSkipped counts cycles dropped because another was in flight.
	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Total number of retrieval cycles dropped while another was in flight",
		},
	)

	// LastCycleTimestamp is the unix time of the last completed cycle.
	LastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed retrieval cycle",
		},
	)
)

// RecordFetch records one per-keyword retrieval.
func RecordFetch(intent, status string, duration float64, articles int) {
	FetchTotal.WithLabelValues(intent, status).Inc()
	FetchDuration.WithLabelValues(intent).Observe(duration)
	if status == "ok" {
		ArticlesReturned.Observe(float64(articles))
	}
}

// RecordTranslate records one translation batch.
func RecordTranslate(status string) {
	TranslateTotal.WithLabelValues(status).Inc()
}

// RecordCycle records a completed retrieval cycle.
func RecordCycle(duration float64, finishedUnix int64) {
	CycleDuration.Observe(duration)
	LastCycleTimestamp.Set(float64(finishedUnix))
}

// RecordSkippedCycle records a cycle dropped by the in-flight guard.
func RecordSkippedCycle() {
	CyclesSkipped.Inc()
}
