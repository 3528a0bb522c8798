// Package facematch provides face geometry and name helpers shared between the
// embedding providers, the stores and the CLI.
package facematch

// Detection is a single face reported by a face embedding provider.
type Detection struct {
	Index     int       // position in the provider response
	BBox      []float64 // [x1, y1, x2, y2] in pixels
	Score     float64   // detector confidence
	Embedding []float32
}
