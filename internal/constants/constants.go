// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultDistanceThreshold is the default maximum distance for a face match.
	// Lower values = stricter matching
	DefaultDistanceThreshold = 0.6
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for bulk import
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) sent to the embedding server
	MaxImageSize = 1920
)
