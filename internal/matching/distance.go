package matching

import (
	"math"

	"github.com/kozaktomas/missing-persons/internal/apperr"
)

// EuclideanDistance returns the L2 norm of a - b.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.New(apperr.ErrDimensionMismatch, "vectors differ in length",
			apperr.Field("left", len(a)), apperr.Field("right", len(b)))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// CosineDistance computes 1 - cosine similarity, between 0 (same direction) and 2 (opposite).
// A zero-norm vector has no direction and yields ErrDegenerateVector.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.New(apperr.ErrDimensionMismatch, "vectors differ in length",
			apperr.Field("left", len(a)), apperr.Field("right", len(b)))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, apperr.New(apperr.ErrDegenerateVector, "zero-norm vector")
	}

	// sqrt(n*n) == n exactly, so identical vectors give a similarity of exactly 1.
	similarity := dotProduct / math.Sqrt(normA*normB)
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity, nil
}

// Confidence maps a distance within the threshold to [0, 1]: 1 at distance 0,
// 0 at the threshold.
func Confidence(distance, threshold float64) float64 {
	return max(0, min(1, 1-distance/threshold))
}

// ConfidencePercent is the displayed confidence: a percentage rounded to 2 places.
func ConfidencePercent(confidence float64) float64 {
	return roundTo(confidence*100, 2)
}

// DisplayDistance rounds a distance to 4 places for output.
func DisplayDistance(distance float64) float64 {
	return roundTo(distance, 4)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return apperr.New(apperr.ErrInvalidThreshold, "threshold must be a finite number greater than 0",
			apperr.Field("threshold", threshold))
	}
	return nil
}

func validateQuery(query []float32) error {
	if len(query) == 0 {
		return apperr.New(apperr.ErrInvalidEncoding, "query embedding is empty")
	}
	for i, v := range query {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperr.New(apperr.ErrInvalidEncoding, "query embedding contains a non-finite value",
				apperr.Field("index", i))
		}
	}
	return nil
}
