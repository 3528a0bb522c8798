package matching

import (
	"context"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/database"
)

func TestNearestReturnsExactOrder(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	source := randomEncodings(r, 50, 4)
	engine := NewEngine(source)
	query := source[5].Embedding

	matches, err := engine.Nearest(context.Background(), query, 5, SearchOptions{Metric: MetricCosine})
	require.NoError(t, err)

	require.NotEmpty(t, matches)
	assert.LessOrEqual(t, len(matches), 5)
	assert.Equal(t, int64(6), matches[0].PersonID)
	assert.Equal(t, 0.0, matches[0].Distance)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Distance, matches[i].Distance)
	}
}

func TestNearestIgnoresOtherDimensions(t *testing.T) {
	engine := NewEngine(staticSource{
		{PersonID: 1, Embedding: []float32{1, 0}},
		{PersonID: 2, Embedding: []float32{1, 0, 0}},
		{PersonID: 3, Embedding: []float32{0, 0, 0}},
	})

	matches, err := engine.Nearest(context.Background(), []float32{1, 0, 0}, 3, SearchOptions{Metric: MetricCosine})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].PersonID)
}

func TestNearestSkipsOtherModels(t *testing.T) {
	engine := NewEngine(staticSource{
		{PersonID: 1, Embedding: []float32{1, 0, 0}, Model: "histogram"},
		{PersonID: 2, Embedding: []float32{0.9, 0.1, 0}, Model: "buffalo_l"},
		{PersonID: 3, Embedding: []float32{0, 1, 0}},
	})

	matches, err := engine.Nearest(context.Background(), []float32{1, 0, 0}, 3,
		SearchOptions{Metric: MetricCosine, Model: "buffalo_l"})
	require.NoError(t, err)

	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.PersonID)
	}
	assert.Equal(t, []int64{2, 3}, ids)
}

func TestNearestKeepsOneIndexPerDimension(t *testing.T) {
	engine := NewEngine(staticSource{
		{PersonID: 1, Embedding: []float32{1, 0}},
		{PersonID: 2, Embedding: []float32{1, 0, 0}},
	})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := engine.Nearest(context.Background(), []float32{1, 0}, 1, SearchOptions{Metric: MetricEuclidean})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := engine.Nearest(context.Background(), []float32{1, 0, 0}, 1, SearchOptions{Metric: MetricEuclidean})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, engine.indexes, 2)
}

func TestNearestEmptyAndInvalid(t *testing.T) {
	engine := NewEngine(staticSource{})

	matches, err := engine.Nearest(context.Background(), []float32{1}, 3, SearchOptions{Metric: MetricEuclidean})
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = engine.Nearest(context.Background(), []float32{1}, 0, SearchOptions{Metric: MetricEuclidean})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestNearestPersistsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persons.hnsw")
	source := staticSource{
		{PersonID: 1, Embedding: []float32{1, 0, 0}},
		{PersonID: 2, Embedding: []float32{0, 1, 0}},
	}

	engine := NewEngine(source, WithIndexPath(path))
	_, err := engine.Nearest(context.Background(), []float32{1, 0, 0}, 1, SearchOptions{Metric: MetricEuclidean})
	require.NoError(t, err)

	meta, err := database.LoadHNSWMetadata(path + ".euclidean.3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.PersonCount)

	// a second engine loads the cached graph instead of rebuilding
	reloaded := NewEngine(source, WithIndexPath(path))
	matches, err := reloaded.Nearest(context.Background(), []float32{0, 1, 0}, 1, SearchOptions{Metric: MetricEuclidean})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].PersonID)
}
