package handlers

import (
	"net/http"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/constants"
	"github.com/kozaktomas/missing-persons/internal/embedder"
	"github.com/kozaktomas/missing-persons/internal/matching"
)

// CompareHandler compares the faces of two uploaded photos.
type CompareHandler struct {
	engine   *matching.Engine
	embedder embedder.Embedder
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(engine *matching.Engine, emb embedder.Embedder) *CompareHandler {
	return &CompareHandler{engine: engine, embedder: emb}
}

// Compare handles POST /compare.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxCompareUploadSize)
	if err := r.ParseMultipartForm(constants.MaxCompareUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "failed to parse multipart form")
		return
	}

	photoA, _, err := readPhoto(r, "photo_a")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	photoB, _, err := readPhoto(r, "photo_b")
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

	a, err := h.embedder.Embed(r.Context(), photoA)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	b, err := h.embedder.Embed(r.Context(), photoB)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	cmp, err := h.engine.Compare(a, b, threshold, metric)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"match":      cmp.Match,
		"distance":   matching.DisplayDistance(cmp.Distance),
		"confidence": matching.ConfidencePercent(cmp.Confidence),
	})
}
