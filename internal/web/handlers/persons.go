package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/constants"
	"github.com/kozaktomas/missing-persons/internal/database"
	"github.com/kozaktomas/missing-persons/internal/embedder"
	"github.com/kozaktomas/missing-persons/internal/logger"
	"github.com/kozaktomas/missing-persons/internal/photostore"
)

// PersonResponse is the public view of a missing person record.
type PersonResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Age         string    `json:"age"`
	Description string    `json:"description"`
	DateMissing string    `json:"date_missing"`
	Contact     string    `json:"contact"`
	HasPhoto    bool      `json:"has_photo"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPersonResponse(rec *database.PersonRecord) PersonResponse {
	return PersonResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Age:         rec.AgeLabel,
		Description: rec.Description,
		DateMissing: rec.DateMissing,
		Contact:     rec.Contact,
		HasPhoto:    rec.PhotoPath != "",
		CreatedAt:   rec.CreatedAt,
	}
}

// PersonsHandler handles registration and browsing of missing person records.
type PersonsHandler struct {
	store    database.EncodingStore
	embedder embedder.Embedder
	photos   *photostore.Store
	model    string
}

// NewPersonsHandler creates a new persons handler. model is recorded on every stored encoding.
func NewPersonsHandler(store database.EncodingStore, emb embedder.Embedder, photos *photostore.Store, model string) *PersonsHandler {
	return &PersonsHandler{
		store:    store,
		embedder: emb,
		photos:   photos,
		model:    model,
	}
}

// Add registers a missing person from a multipart form with a reference photo.
func (h *PersonsHandler) Add(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "failed to parse multipart form")
		return
	}

	data, filename, err := readPhoto(r, "photo")
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	meta := database.NormalizeMetadata(database.PersonMetadata{
		Name:        r.FormValue("name"),
		AgeLabel:    r.FormValue("age"),
		Description: r.FormValue("description"),
		DateMissing: r.FormValue("date_missing"),
		Contact:     r.FormValue("contact"),
	})
	if err := database.ValidateMetadata(meta); err != nil {
		respondAppError(w, r, err)
		return
	}

	embedding, err := h.embedder.Embed(r.Context(), data)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	name, err := h.photos.Save(data, filename)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	meta.PhotoPath = name

	id, err := h.store.Put(r.Context(), meta, embedding, h.model)
	if err != nil {
		if rmErr := h.photos.Remove(name); rmErr != nil {
			logger.FromContext(r.Context()).Warn("failed to remove orphaned photo", zap.String("photo", name), zap.Error(rmErr))
		}
		respondAppError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("missing person added", zap.Int64("person_id", id))
	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"id":      id,
		"message": "Missing person added successfully",
	})
}

// List returns stored records, newest first, optionally filtered by name.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultHandlerPageSize
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, constants.MaxHandlerPageSize)
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	opts := database.ListOptions{
		Name:   strings.TrimSpace(r.URL.Query().Get("name")),
		Limit:  limit,
		Offset: offset,
	}
	records, err := h.store.List(r.Context(), opts)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	persons := make([]PersonResponse, 0, len(records))
	for i := range records {
		persons = append(persons, toPersonResponse(&records[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"persons": persons,
		"count":   len(persons),
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Get returns a single record.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toPersonResponse(rec))
}

// Photo serves the stored reference photo of a record.
func (h *PersonsHandler) Photo(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if rec.PhotoPath == "" {
		respondError(w, http.StatusNotFound, apperr.CodeNotFound, "person has no photo")
		return
	}

	data, err := h.photos.Read(rec.PhotoPath)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", embedder.DetectMIMEType(data))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *PersonsHandler) lookup(w http.ResponseWriter, r *http.Request) (*database.PersonRecord, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "invalid person id")
		return nil, false
	}

	rec, err := h.store.Get(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		respondError(w, http.StatusNotFound, apperr.CodeNotFound, "person not found")
		return nil, false
	}
	if err != nil {
		respondAppError(w, r, err)
		return nil, false
	}
	return rec, true
}
