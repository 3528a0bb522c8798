package database

import (
	"math"
	"strings"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/facematch"
)

// ValidateEmbedding checks that an embedding is non-empty, finite and, when dim > 0,
// exactly dim long.
func ValidateEmbedding(embedding []float32, dim int) error {
	if len(embedding) == 0 {
		return apperr.New(apperr.ErrInvalidEncoding, "embedding is empty")
	}
	if dim > 0 && len(embedding) != dim {
		return apperr.New(apperr.ErrInvalidEncoding, "embedding has wrong dimension",
			apperr.Field("expected", dim), apperr.Field("actual", len(embedding)))
	}
	for i, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperr.New(apperr.ErrInvalidEncoding, "embedding contains a non-finite value",
				apperr.Field("index", i))
		}
	}
	return nil
}

// ValidateMetadata checks the mandatory metadata fields.
func ValidateMetadata(meta PersonMetadata) error {
	if strings.TrimSpace(meta.Name) == "" {
		return apperr.New(apperr.ErrMissingRequiredField, "name is required", apperr.Field("field", "name"))
	}
	return nil
}

// NormalizeMetadata trims surrounding whitespace from every field.
func NormalizeMetadata(meta PersonMetadata) PersonMetadata {
	return PersonMetadata{
		Name:        strings.TrimSpace(meta.Name),
		AgeLabel:    strings.TrimSpace(meta.AgeLabel),
		Description: strings.TrimSpace(meta.Description),
		DateMissing: strings.TrimSpace(meta.DateMissing),
		Contact:     strings.TrimSpace(meta.Contact),
		PhotoPath:   strings.TrimSpace(meta.PhotoPath),
	}
}

// FilterAndPage applies ListOptions to records already sorted newest first.
// Backends without a native name filter use it after loading.
func FilterAndPage(records []PersonRecord, opts ListOptions) []PersonRecord {
	filtered := records
	if strings.TrimSpace(opts.Name) != "" {
		filtered = make([]PersonRecord, 0, len(records))
		for _, r := range records {
			if facematch.NameContains(r.Name, opts.Name) {
				filtered = append(filtered, r)
			}
		}
	}
	return Page(filtered, opts.Limit, opts.Offset)
}

// Page slices records by limit and offset. A limit of 0 returns everything after offset.
func Page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// CloneEmbedding copies an embedding so callers never share backing arrays with a store.
func CloneEmbedding(embedding []float32) []float32 {
	if embedding == nil {
		return nil
	}
	out := make([]float32, len(embedding))
	copy(out, embedding)
	return out
}
