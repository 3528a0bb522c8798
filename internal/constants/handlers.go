package constants

import "time"

// Handler pagination constants
const (
	// DefaultHandlerPageSize is the page size for paginated handler endpoints
	DefaultHandlerPageSize = 100

	// MaxHandlerPageSize caps the limit query parameter
	MaxHandlerPageSize = 1000
)

// File upload constants
const (
	// MaxUploadSize is the maximum size of an uploaded photo (16 MB)
	MaxUploadSize = 16 << 20

	// MaxCompareUploadSize allows two photos in one compare request
	MaxCompareUploadSize = 2 * MaxUploadSize
)

// AllowedPhotoExtensions lists the accepted photo file extensions (lowercase, with dot).
var AllowedPhotoExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Timeouts
const (
	// RequestTimeout bounds a single API request including embedding and search
	RequestTimeout = 60 * time.Second

	// ShutdownTimeout is the grace period for in-flight requests on shutdown
	ShutdownTimeout = 10 * time.Second
)
