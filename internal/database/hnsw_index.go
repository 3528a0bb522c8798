package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	PersonCount int64     `json:"person_count"`
	MaxPersonID int64     `json:"max_person_id"`
	Dim         int       `json:"dim"`
	Metric      string    `json:"metric"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// ErrIndexNotInitialized is returned by Search before the first Build or Load.
var ErrIndexNotInitialized = errors.New("index not initialized")

// HNSWIndex wraps the HNSW graph for approximate nearest-person search.
// It only holds encodings of a single dimension; the graph cannot mix lengths.
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64] // For persistence
	metric     string
	meta       HNSWIndexMetadata
	mu         sync.RWMutex
	path       string // Path to save/load index
}

// NewHNSWIndex creates a new empty HNSW index for "cosine" or "euclidean" distance.
func NewHNSWIndex(metric string) *HNSWIndex {
	return &HNSWIndex{metric: metric}
}

func distanceFunc(metric string) hnsw.DistanceFunc {
	if metric == "euclidean" {
		return hnsw.EuclideanDistance
	}
	return hnsw.CosineDistance
}

func (h *HNSWIndex) newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = distanceFunc(h.metric)
	return g
}

// Build replaces the index content with the encodings of length dim.
// Encodings of any other length are left out. Returns the number of indexed encodings.
func (h *HNSWIndex) Build(encodings []Encoding, dim int) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	g := h.newGraph()
	var count, maxID int64
	for _, enc := range encodings {
		if dim <= 0 || len(enc.Embedding) != dim {
			continue
		}
		g.Add(hnsw.MakeNode(enc.PersonID, enc.Embedding))
		count++
		maxID = max(maxID, enc.PersonID)
	}

	h.graph = g
	h.savedGraph = nil
	h.meta = HNSWIndexMetadata{
		PersonCount: count,
		MaxPersonID: maxID,
		Dim:         dim,
		Metric:      h.metric,
		BuildTime:   time.Now(),
		Version:     hnswMetadataVersion,
	}
	return int(count)
}

// Search finds the k approximate nearest neighbors to the query embedding.
// Returns person ids only; callers re-rank with exact distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, ErrIndexNotInitialized
	}
	if len(query) != h.meta.Dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), h.meta.Dim)
	}
	if h.meta.PersonCount == 0 || k <= 0 {
		return []int64{}, nil
	}

	var neighbors []hnsw.Node[int64]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search(query, k)
	} else {
		neighbors = h.graph.Search(query, k)
	}

	ids := make([]int64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids, nil
}

// Metadata returns what the index was built from.
func (h *HNSWIndex) Metadata() HNSWIndexMetadata {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.meta
}

// IsStale reports whether the index no longer reflects encodings of length dim.
// Records are append-only, so count and max id identify a snapshot.
func (h *HNSWIndex) IsStale(encodings []Encoding, dim int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return true
	}
	if h.meta.Dim != dim || h.meta.Metric != h.metric {
		return true
	}
	var count, maxID int64
	for _, enc := range encodings {
		if len(enc.Embedding) != dim {
			continue
		}
		count++
		maxID = max(maxID, enc.PersonID)
	}
	return count != h.meta.PersonCount || maxID != h.meta.MaxPersonID
}

// Count returns the number of indexed persons.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int(h.meta.PersonCount)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Save persists the graph to the configured path along with a .meta file.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil // No path set
	}

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(h.path)
		_ = os.Remove(h.path + ".meta")
		return nil
	}

	f, err := os.Create(h.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if h.savedGraph != nil {
		err = h.savedGraph.Export(f)
	} else {
		err = h.graph.Export(f)
	}
	if err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	metaData, err := json.Marshal(h.meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(h.path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load loads the index from disk. A missing file is not an error; the index stays
// empty and is built from the next snapshot.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metadata, err := LoadHNSWMetadata(path)
	if err != nil {
		return err
	}
	if metadata.Version != hnswMetadataVersion || metadata.Metric != h.metric {
		return nil // Incompatible cache, will rebuild
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.savedGraph = saved
	h.graph = nil
	h.meta = metadata
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}
