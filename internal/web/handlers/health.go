package handlers

import (
	"net/http"

	"github.com/kozaktomas/missing-persons/internal/database"
)

// HealthHandler reports liveness and the number of stored records.
type HealthHandler struct {
	store database.PersonReader
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store database.PersonReader) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check handles the health check endpoint.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"persons": count,
	})
}
