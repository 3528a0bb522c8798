package metrics

import "github.com/prometheus/client_golang/prometheus"

// Match engine metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time spent scoring one query against the stored encodings",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"metric"},
	)

	SearchScannedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_scanned_encodings_total",
			Help:      "Stored encodings scanned by searches",
		},
		[]string{"metric"},
	)

	SearchMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_matches_total",
			Help:      "Candidates returned by searches",
		},
		[]string{"metric"},
	)

	SearchSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_skipped_encodings_total",
			Help:      "Stored encodings skipped during a search",
		},
		[]string{"reason"}, // dimension_mismatch / model_mismatch / degenerate
	)

	StoredPersons = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_persons",
			Help:      "Person records seen in the most recent snapshot",
		},
	)
)
