package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/missing-persons/internal/config"
)

// BackendFactory opens an EncodingStore for a backend. dim is the fixed embedding
// dimension of the store, 0 to accept any non-empty embedding.
type BackendFactory func(ctx context.Context, cfg *config.Config, dim int) (EncodingStore, error)

var (
	backends   = map[string]BackendFactory{}
	backendsMu sync.RWMutex
)

// RegisterBackend registers a store constructor under a name.
// This is called by the backend packages from init to avoid import cycles.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the store selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config, dim int) (EncodingStore, error) {
	backendsMu.RLock()
	factory, ok := backends[cfg.Store.Backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (registered: %v)", cfg.Store.Backend, Backends())
	}

	store, err := factory(ctx, cfg, dim)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return store, nil
}
