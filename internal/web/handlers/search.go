package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/constants"
	"github.com/kozaktomas/missing-persons/internal/database"
	"github.com/kozaktomas/missing-persons/internal/embedder"
	"github.com/kozaktomas/missing-persons/internal/logger"
	"github.com/kozaktomas/missing-persons/internal/matching"
)

// MatchResponse is one search candidate joined with its record.
type MatchResponse struct {
	PersonID    int64   `json:"person_id"`
	Name        string  `json:"name"`
	Age         string  `json:"age"`
	Description string  `json:"description"`
	DateMissing string  `json:"date_missing"`
	Contact     string  `json:"contact"`
	Confidence  float64 `json:"confidence"` // percent, 2 decimal places
	Distance    float64 `json:"distance"`
}

// SearchHandler matches an uploaded photo against the stored encodings.
type SearchHandler struct {
	store    database.PersonReader
	engine   *matching.Engine
	embedder embedder.Embedder
	model    string
}

// NewSearchHandler creates a new search handler. model identifies the embeddings the
// embedder produces; stored encodings of other models are skipped.
func NewSearchHandler(store database.PersonReader, engine *matching.Engine, emb embedder.Embedder, model string) *SearchHandler {
	return &SearchHandler{
		store:    store,
		engine:   engine,
		embedder: emb,
		model:    model,
	}
}

// Search handles POST /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "failed to parse multipart form")
		return
	}

	data, _, err := readPhoto(r, "photo")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	threshold, err := parseThreshold(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	metric, err := parseMetric(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	query, err := h.embedder.Embed(r.Context(), data)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	result, err := h.engine.SearchWithReport(r.Context(), query, matching.SearchOptions{
		Threshold: threshold,
		Metric:    metric,
		Model:     h.model,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	matches := make([]MatchResponse, 0, len(result.Matches))
	for _, m := range result.Matches {
		rec, err := h.store.Get(r.Context(), m.PersonID)
		if errors.Is(err, apperr.ErrNotFound) {
			logger.FromContext(r.Context()).Warn("matched person disappeared", zap.Int64("person_id", m.PersonID))
			continue
		}
		if err != nil {
			respondAppError(w, r, err)
			return
		}
		matches = append(matches, MatchResponse{
			PersonID:    rec.ID,
			Name:        rec.Name,
			Age:         rec.AgeLabel,
			Description: rec.Description,
			DateMissing: rec.DateMissing,
			Contact:     rec.Contact,
			Confidence:  matching.ConfidencePercent(m.Confidence),
			Distance:    matching.DisplayDistance(m.Distance),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"matches":     matches,
		"match_count": len(matches),
		"threshold":   result.Threshold,
		"metric":      result.Metric.String(),
		"scanned":     result.Scanned,
		"skipped":     result.Skipped.Total(),
	})
}
