// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/missing-persons/internal/database"
	"github.com/kozaktomas/missing-persons/internal/database/memory"
)

// MockEncodingStore is a database.EncodingStore backed by the memory store with
// error injection and call recording.
type MockEncodingStore struct {
	*memory.Store

	mu       sync.Mutex
	putCalls []PutCall

	// Error injection
	PutError      error
	GetError      error
	ListError     error
	CountError    error
	SnapshotError error
	CloseError    error
}

// PutCall records the arguments of a Put call.
type PutCall struct {
	Meta      database.PersonMetadata
	Embedding []float32
	Model     string
}

// NewMockEncodingStore creates a new mock store. dim > 0 fixes the embedding dimension.
func NewMockEncodingStore(dim int) *MockEncodingStore {
	return &MockEncodingStore{Store: memory.New(dim)}
}

// AddPerson inserts a record bypassing error injection and returns its id.
// It panics on invalid input to keep test setup short.
func (m *MockEncodingStore) AddPerson(name string, embedding []float32, model string) int64 {
	id, err := m.Store.Put(context.Background(), database.PersonMetadata{Name: name}, embedding, model)
	if err != nil {
		panic(err)
	}
	return id
}

// Put records the call and inserts the record unless PutError is set
func (m *MockEncodingStore) Put(ctx context.Context, meta database.PersonMetadata, embedding []float32, model string) (int64, error) {
	m.mu.Lock()
	m.putCalls = append(m.putCalls, PutCall{Meta: meta, Embedding: database.CloneEmbedding(embedding), Model: model})
	m.mu.Unlock()

	if m.PutError != nil {
		return 0, m.PutError
	}
	return m.Store.Put(ctx, meta, embedding, model)
}

// PutCalls returns every recorded Put call
func (m *MockEncodingStore) PutCalls() []PutCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PutCall, len(m.putCalls))
	copy(out, m.putCalls)
	return out
}

// Get retrieves a record by id
func (m *MockEncodingStore) Get(ctx context.Context, id int64) (*database.PersonRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	return m.Store.Get(ctx, id)
}

// List returns records newest first
func (m *MockEncodingStore) List(ctx context.Context, opts database.ListOptions) ([]database.PersonRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.Store.List(ctx, opts)
}

// Count returns the number of records
func (m *MockEncodingStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	return m.Store.Count(ctx)
}

// SnapshotEncodings returns every stored encoding
func (m *MockEncodingStore) SnapshotEncodings(ctx context.Context) ([]database.Encoding, error) {
	if m.SnapshotError != nil {
		return nil, m.SnapshotError
	}
	return m.Store.SnapshotEncodings(ctx)
}

// Close returns CloseError
func (m *MockEncodingStore) Close() error {
	return m.CloseError
}

var _ database.EncodingStore = (*MockEncodingStore)(nil)
