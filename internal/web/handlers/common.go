package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/logger"
	"github.com/kozaktomas/missing-persons/internal/matching"
	"github.com/kozaktomas/missing-persons/internal/photostore"
)

// msgNoFace is shown to users when the embedder finds no face in an upload.
const msgNoFace = "No face detected in image. Please upload a clear photo with a visible face."

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response with a machine-readable code.
func respondError(w http.ResponseWriter, status int, code apperr.Code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": string(code)})
}

// respondAppError maps err to its status and code. Server-side failures are logged and
// their details hidden from the client.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)

	message := err.Error()
	switch {
	case errors.Is(err, apperr.ErrNoFaceDetected):
		message = msgNoFace
	case status >= http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err), zap.String("code", string(code)))
		message = "internal server error"
	case status == http.StatusBadGateway:
		logger.FromContext(r.Context()).Warn("embedding provider failed", zap.Error(err))
		message = "embedding service unavailable"
	}
	respondError(w, status, code, message)
}

// readPhoto reads an uploaded file from a parsed multipart form and checks its extension.
func readPhoto(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", apperr.Errorf(apperr.ErrInvalidRequest, "no %s provided", field)
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, "", apperr.Errorf(apperr.ErrInvalidRequest, "no %s selected", field)
	}
	if !photostore.AllowedFile(header.Filename) {
		return nil, "", apperr.New(apperr.ErrInvalidImage, "invalid file type, allowed: png, jpg, jpeg, gif, webp")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, "", apperr.Errorf(apperr.ErrInvalidImage, "%s is empty", field)
	}
	return data, header.Filename, nil
}

// parseThreshold reads an optional positive threshold form value. Zero means the
// engine default.
func parseThreshold(r *http.Request) (float64, error) {
	raw := strings.TrimSpace(r.FormValue("threshold"))
	if raw == "" {
		return 0, nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil || t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, apperr.New(apperr.ErrInvalidThreshold, "threshold must be a positive number",
			apperr.Field("threshold", sanitizeForLog(raw)))
	}
	return t, nil
}

// parseMetric reads an optional metric form value.
func parseMetric(r *http.Request) (matching.Metric, error) {
	return matching.ParseMetric(strings.TrimSpace(r.FormValue("metric")))
}

