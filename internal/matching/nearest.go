package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/database"
)

// Nearest returns up to k stored persons closest to query without applying a threshold.
// Candidates come from an HNSW index over the encodings of the query's dimension and
// model, and are re-ranked with exact distances, so ordering follows the same rule as
// Search. opts.Threshold only scales Confidence.
func (e *Engine) Nearest(ctx context.Context, query []float32, k int, opts SearchOptions) ([]Match, error) {
	metric, threshold, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, apperr.New(apperr.ErrInvalidRequest, "k must be greater than 0", apperr.Field("k", k))
	}

	snapshot, err := e.source.SnapshotEncodings(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot encodings: %w", err)
	}

	candidates := usable(snapshot, len(query), metric, opts.Model)
	if len(candidates) == 0 {
		return []Match{}, nil
	}
	byID := make(map[int64][]float32, len(candidates))
	for _, enc := range candidates {
		byID[enc.PersonID] = enc.Embedding
	}

	key := indexKey{metric: metric, dim: len(query), model: opts.Model}
	ids, err := e.searchIndex(key, candidates, query, k*database.HNSWSearchMultiplier)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	matches := make([]Match, 0, len(ids))
	for _, id := range ids {
		embedding, ok := byID[id]
		if !ok {
			continue
		}
		distance, err := metric.Distance(query, embedding)
		if err != nil {
			continue // degenerate vectors are never candidates
		}
		matches = append(matches, Match{
			PersonID:   id,
			Distance:   distance,
			Confidence: Confidence(distance, threshold),
		})
	}
	sortMatches(matches)

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// indexKey identifies one HNSW graph. A graph holds a single dimension and model.
type indexKey struct {
	metric Metric
	dim    int
	model  string
}

func (k indexKey) path(base string) string {
	p := fmt.Sprintf("%s.%s.%d", base, k.metric, k.dim)
	if k.model != "" {
		p += "." + k.model
	}
	return p
}

// searchIndex queries the graph for key, rebuilding it first when it no longer
// reflects candidates. The graph is searched before indexMu is released.
func (e *Engine) searchIndex(key indexKey, candidates []database.Encoding, query []float32, k int) ([]int64, error) {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	idx, ok := e.indexes[key]
	if !ok {
		idx = database.NewHNSWIndex(key.metric.String())
		if e.indexPath != "" {
			path := key.path(e.indexPath)
			if err := idx.Load(path); err != nil {
				e.logger.Warn("ignoring unreadable HNSW index", zap.String("path", path), zap.Error(err))
				idx = database.NewHNSWIndex(key.metric.String())
				idx.SetPath(path)
			}
		}
		e.indexes[key] = idx
	}

	if idx.IsStale(candidates, key.dim) {
		n := idx.Build(candidates, key.dim)
		e.logger.Info("rebuilt HNSW index",
			zap.String("metric", key.metric.String()),
			zap.Int("dim", key.dim),
			zap.String("model", key.model),
			zap.Int("persons", n))
		if err := idx.Save(); err != nil {
			e.logger.Warn("failed to persist HNSW index", zap.Error(err))
		}
	}
	return idx.Search(query, k)
}

// usable keeps the encodings of length dim that are comparable with model. Under
// cosine, zero-norm encodings are dropped as well since the graph cannot place them.
func usable(snapshot []database.Encoding, dim int, metric Metric, model string) []database.Encoding {
	out := make([]database.Encoding, 0, len(snapshot))
	for _, enc := range snapshot {
		if len(enc.Embedding) != dim || modelMismatch(model, enc.Model) {
			continue
		}
		if metric != MetricCosine {
			out = append(out, enc)
			continue
		}
		nonZero := false
		for _, v := range enc.Embedding {
			if v != 0 {
				nonZero = true
				break
			}
		}
		if nonZero {
			out = append(out, enc)
		}
	}
	return out
}
