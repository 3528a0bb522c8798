// Package matching scores a query embedding against every stored encoding and
// returns thresholded candidates in a deterministic order.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/constants"
	"github.com/kozaktomas/missing-persons/internal/database"
	"github.com/kozaktomas/missing-persons/internal/metrics"
)

// DefaultThreshold is used when neither the engine nor the request sets one.
const DefaultThreshold = constants.DefaultDistanceThreshold

// Skip reasons reported per search.
const (
	SkipDimensionMismatch = "dimension_mismatch"
	SkipModelMismatch     = "model_mismatch"
	SkipDegenerate        = "degenerate"
)

// Match is a candidate person within the threshold.
type Match struct {
	PersonID   int64
	Distance   float64 // >= 0
	Confidence float64 // in [0, 1]
}

// SearchOptions overrides the engine defaults for one search. Zero values fall back.
type SearchOptions struct {
	Threshold float64
	Metric    Metric
	// Model is the embedding model of the query. When set, stored encodings from a
	// different model are skipped.
	Model string
}

// SkipReport counts stored encodings that could not be compared with the query.
type SkipReport struct {
	DimensionMismatch int
	ModelMismatch     int
	Degenerate        int
}

// Total returns the number of skipped encodings.
func (r SkipReport) Total() int {
	return r.DimensionMismatch + r.ModelMismatch + r.Degenerate
}

// SearchResult is the full outcome of a search.
type SearchResult struct {
	Matches   []Match
	Scanned   int
	Skipped   SkipReport
	Threshold float64
	Metric    Metric
}

// Comparison is the outcome of comparing two embeddings directly.
type Comparison struct {
	Match      bool
	Distance   float64
	Confidence float64
}

// Engine performs exhaustive similarity search over an EncodingSource.
// It holds no per-search mutable state; concurrent searches are safe.
type Engine struct {
	source    database.EncodingSource
	metric    Metric
	threshold float64
	logger    *zap.Logger

	indexPath string
	indexMu   sync.Mutex
	indexes   map[indexKey]*database.HNSWIndex
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetric sets the default metric.
func WithMetric(m Metric) Option {
	return func(e *Engine) {
		if m.Valid() {
			e.metric = m
		}
	}
}

// WithThreshold sets the default threshold. Non-positive values are ignored.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if validateThreshold(t) == nil {
			e.threshold = t
		}
	}
}

// WithLogger sets the logger used for search reports.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIndexPath persists the approximate nearest-neighbour index under path.
func WithIndexPath(path string) Option {
	return func(e *Engine) {
		e.indexPath = path
	}
}

// WithModel applies a catalogue entry's metric and threshold.
func WithModel(spec config.ModelSpec) (Option, error) {
	metric, err := ParseMetric(spec.Metric)
	if err != nil {
		return nil, err
	}
	return func(e *Engine) {
		WithMetric(metric)(e)
		WithThreshold(spec.Threshold)(e)
	}, nil
}

// NewEngine creates an engine over source. Defaults: euclidean distance, threshold 0.6.
func NewEngine(source database.EncodingSource, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		metric:    MetricEuclidean,
		threshold: DefaultThreshold,
		logger:    zap.NewNop(),
		indexes:   make(map[indexKey]*database.HNSWIndex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metric returns the default metric.
func (e *Engine) Metric() Metric {
	return e.metric
}

// Threshold returns the default threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

func (e *Engine) resolve(opts SearchOptions) (Metric, float64, error) {
	metric := opts.Metric
	if metric == MetricUnset {
		metric = e.metric
	}
	if !metric.Valid() {
		return 0, 0, apperr.New(apperr.ErrInvalidMetric, "unknown metric", apperr.Field("metric", metric.String()))
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = e.threshold
	}
	if err := validateThreshold(threshold); err != nil {
		return 0, 0, err
	}
	return metric, threshold, nil
}

// modelMismatch reports whether a stored encoding comes from a different model
// than the query. Encodings without a recorded model are always comparable.
func modelMismatch(query, stored string) bool {
	return query != "" && stored != "" && query != stored
}

// Search returns every stored person whose distance to query is within the threshold,
// ordered by distance ascending and then by person id ascending.
func (e *Engine) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	res, err := e.SearchWithReport(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}

// SearchWithReport is Search plus the scan statistics.
func (e *Engine) SearchWithReport(ctx context.Context, query []float32, opts SearchOptions) (*SearchResult, error) {
	metric, threshold, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	snapshot, err := e.source.SnapshotEncodings(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot encodings: %w", err)
	}

	start := time.Now()
	res := &SearchResult{Matches: []Match{}, Scanned: len(snapshot), Threshold: threshold, Metric: metric}
	for _, enc := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if modelMismatch(opts.Model, enc.Model) {
			res.Skipped.ModelMismatch++
			continue
		}

		distance, err := metric.Distance(query, enc.Embedding)
		switch {
		case errors.Is(err, apperr.ErrDimensionMismatch):
			res.Skipped.DimensionMismatch++
			continue
		case errors.Is(err, apperr.ErrDegenerateVector):
			res.Skipped.Degenerate++
			continue
		case err != nil:
			return nil, err
		}

		if distance > threshold {
			continue
		}
		res.Matches = append(res.Matches, Match{
			PersonID:   enc.PersonID,
			Distance:   distance,
			Confidence: Confidence(distance, threshold),
		})
	}
	sortMatches(res.Matches)

	e.observe(res, time.Since(start))
	return res, nil
}

func (e *Engine) observe(res *SearchResult, took time.Duration) {
	label := res.Metric.String()
	metrics.SearchDuration.WithLabelValues(label).Observe(took.Seconds())
	metrics.SearchScannedTotal.WithLabelValues(label).Add(float64(res.Scanned))
	metrics.SearchMatchesTotal.WithLabelValues(label).Add(float64(len(res.Matches)))
	metrics.StoredPersons.Set(float64(res.Scanned))

	skipped := map[string]int{
		SkipDimensionMismatch: res.Skipped.DimensionMismatch,
		SkipModelMismatch:     res.Skipped.ModelMismatch,
		SkipDegenerate:        res.Skipped.Degenerate,
	}
	for reason, n := range skipped {
		if n > 0 {
			metrics.SearchSkippedTotal.WithLabelValues(reason).Add(float64(n))
		}
	}

	if res.Skipped.Total() > 0 {
		e.logger.Warn("search skipped stored encodings",
			zap.String("metric", label),
			zap.Int("scanned", res.Scanned),
			zap.Int(SkipDimensionMismatch, res.Skipped.DimensionMismatch),
			zap.Int(SkipModelMismatch, res.Skipped.ModelMismatch),
			zap.Int(SkipDegenerate, res.Skipped.Degenerate),
		)
	}
	e.logger.Debug("search finished",
		zap.String("metric", label),
		zap.Float64("threshold", res.Threshold),
		zap.Int("scanned", res.Scanned),
		zap.Int("matches", len(res.Matches)),
		zap.Duration("took", took),
	)
}

// sortMatches orders by distance ascending, ties by person id ascending.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].PersonID < matches[j].PersonID
	})
}

// Compare computes the distance between two embeddings and whether it is within threshold.
// Unlike Search, dimension mismatches and zero-norm vectors are returned as errors.
func (e *Engine) Compare(a, b []float32, threshold float64, metric Metric) (Comparison, error) {
	metric, threshold, err := e.resolve(SearchOptions{Threshold: threshold, Metric: metric})
	if err != nil {
		return Comparison{}, err
	}
	if err := validateQuery(a); err != nil {
		return Comparison{}, err
	}
	if err := validateQuery(b); err != nil {
		return Comparison{}, err
	}

	distance, err := metric.Distance(a, b)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Match:      distance <= threshold,
		Distance:   distance,
		Confidence: Confidence(distance, threshold),
	}, nil
}
