// Package metrics exposes Prometheus instruments for the render endpoints.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// renderDuration tracks end-to-end render time per operation
	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citerender_render_duration_seconds",
			Help:    "Render duration by operation and result",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "result"},
	)

	// markersTotal counts citation markers by annotation outcome
	markersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citerender_markers_total",
			Help: "Citation markers processed, by outcome",
		},
		[]string{"outcome"},
	)

	// bibliographyEntries tracks reference list sizes
	bibliographyEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citerender_bibliography_entries",
			Help:    "Number of entries per rendered bibliography",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// ObserveRender records one render call.
func ObserveRender(operation string, elapsed time.Duration, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	renderDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

// CountMarker records one marker outcome.
func CountMarker(outcome string) {
	markersTotal.WithLabelValues(outcome).Inc()
}

// ObserveBibliography records the size of a rendered bibliography.
func ObserveBibliography(entries int) {
	bibliographyEntries.Observe(float64(entries))
}
