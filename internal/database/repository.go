package database

import (
	"context"
)

// PersonReader provides read-only access to missing person records
type PersonReader interface {
	// Get retrieves a record by id, returns apperr.ErrNotFound for ids never issued
	Get(ctx context.Context, id int64) (*PersonRecord, error)
	// List returns records newest first, ties broken by id descending
	List(ctx context.Context, opts ListOptions) ([]PersonRecord, error)
	// Count returns the total number of records stored
	Count(ctx context.Context) (int, error)
}

// EncodingSource provides the point-in-time view scanned by the match engine.
type EncodingSource interface {
	// SnapshotEncodings returns every committed encoding. The slice is owned by the caller.
	SnapshotEncodings(ctx context.Context) ([]Encoding, error)
}

// EncodingStore is the durable mapping from person id to embedding and metadata.
// Records are append-only: ids are assigned on insert and never reused.
type EncodingStore interface {
	PersonReader
	EncodingSource

	// Put validates and inserts a record and returns its fresh id. On a validation
	// failure no id is allocated.
	Put(ctx context.Context, meta PersonMetadata, embedding []float32, model string) (int64, error)

	// Close releases the underlying connection, if any.
	Close() error
}
