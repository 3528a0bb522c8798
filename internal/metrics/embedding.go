package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding provider metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"}, // status: ok / no_face / error
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestDuration,
		httpRequestsTotal,
		SearchDuration,
		SearchScannedTotal,
		SearchMatchesTotal,
		SearchSkippedTotal,
		StoredPersons,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
	)
}
