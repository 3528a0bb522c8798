// Package memory provides an in-process EncodingStore used for tests, demos and
// the `memory` backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/database"
)

func init() {
	database.RegisterBackend(database.BackendMemory, func(_ context.Context, _ *config.Config, dim int) (database.EncodingStore, error) {
		return New(dim), nil
	})
}

// Store keeps records in insertion order. Writes are serialised by the mutex;
// readers share the read lock.
type Store struct {
	mu      sync.RWMutex
	records []database.PersonRecord
	nextID  int64
	dim     int
	now     func() time.Time
}

// New creates an empty store. dim > 0 fixes the embedding dimension.
func New(dim int) *Store {
	return &Store{dim: dim, now: time.Now}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Put validates and appends a record.
func (s *Store) Put(ctx context.Context, meta database.PersonMetadata, embedding []float32, model string) (int64, error) {
	meta = database.NormalizeMetadata(meta)
	if err := database.ValidateMetadata(meta); err != nil {
		return 0, err
	}
	if err := database.ValidateEmbedding(embedding, s.dim); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, apperr.Wrap(err, apperr.ErrStorage, "insert person")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.records = append(s.records, database.PersonRecord{
		ID:             s.nextID,
		PersonMetadata: meta,
		Embedding:      database.CloneEmbedding(embedding),
		Model:          model,
		Dim:            len(embedding),
		CreatedAt:      s.now().UTC(),
	})
	return s.nextID, nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(_ context.Context, id int64) (*database.PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ids are dense and assigned in order, so id-1 is the slice position
	if id < 1 || id > int64(len(s.records)) {
		return nil, apperr.New(apperr.ErrNotFound, "person not found", apperr.FieldPersonID(id))
	}
	rec := cloneRecord(s.records[id-1])
	return &rec, nil
}

// List returns records newest first.
func (s *Store) List(_ context.Context, opts database.ListOptions) ([]database.PersonRecord, error) {
	s.mu.RLock()
	out := make([]database.PersonRecord, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return database.FilterAndPage(out, opts), nil
}

// Count returns the number of stored records.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// SnapshotEncodings returns every record's encoding in id order.
func (s *Store) SnapshotEncodings(ctx context.Context) ([]database.Encoding, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorage, "snapshot encodings")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]database.Encoding, len(s.records))
	for i := range s.records {
		// Embeddings are never mutated after Put, so the snapshot can share them.
		out[i] = s.records[i].Encoding()
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func cloneRecord(r database.PersonRecord) database.PersonRecord {
	r.Embedding = database.CloneEmbedding(r.Embedding)
	return r
}
