package matching

import (
	"strings"

	"github.com/kozaktomas/missing-persons/internal/apperr"
)

// Metric selects how two embeddings are compared.
type Metric int

const (
	// MetricUnset means "use the engine default".
	MetricUnset Metric = iota
	// MetricEuclidean is the L2 norm of the difference vector (dlib-style embeddings).
	MetricEuclidean
	// MetricCosine is 1 - cosine similarity (CLIP/DeepFace-style embeddings).
	MetricCosine
)

// ParseMetric parses a metric name. The empty string yields MetricUnset.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return MetricUnset, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "cosine":
		return MetricCosine, nil
	default:
		return MetricUnset, apperr.New(apperr.ErrInvalidMetric, "unknown metric", apperr.Field("metric", s))
	}
}

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricCosine:
		return "cosine"
	case MetricUnset:
		return "unset"
	default:
		return "unknown"
	}
}

// Valid reports whether m is a concrete metric.
func (m Metric) Valid() bool {
	return m == MetricEuclidean || m == MetricCosine
}

// Distance computes the distance between a and b under m.
func (m Metric) Distance(a, b []float32) (float64, error) {
	switch m {
	case MetricEuclidean:
		return EuclideanDistance(a, b)
	case MetricCosine:
		return CosineDistance(a, b)
	default:
		return 0, apperr.New(apperr.ErrInvalidMetric, "metric not set", apperr.Field("metric", m.String()))
	}
}
