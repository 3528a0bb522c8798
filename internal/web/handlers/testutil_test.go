package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/database/mock"
	"github.com/kozaktomas/missing-persons/internal/embedder"
	"github.com/kozaktomas/missing-persons/internal/matching"
	"github.com/kozaktomas/missing-persons/internal/photostore"
)

const testModel = "test-model"

// Image payloads understood by fakeEmbedder.
var fakeVectors = map[string][]float32{
	"face-a":   {0, 0, 0},
	"face-a2":  {0.1, 0, 0},
	"face-b":   {0.5, 0, 0},
	"face-far": {5, 5, 5},
}

// fakeEmbedder maps known payloads to fixed vectors and reports no face otherwise.
func fakeEmbedder() embedder.Embedder {
	return embedder.EmbedderFunc(func(_ context.Context, image []byte) ([]float32, error) {
		if string(image) == "upstream-down" {
			return nil, apperr.New(apperr.ErrUpstream, "embedding server returned 503")
		}
		v, ok := fakeVectors[string(image)]
		if !ok {
			return nil, apperr.New(apperr.ErrNoFaceDetected, "no face in image")
		}
		return append([]float32(nil), v...), nil
	})
}

func testEngine(store *mock.MockEncodingStore) *matching.Engine {
	return matching.NewEngine(store, matching.WithMetric(matching.MetricEuclidean), matching.WithThreshold(0.6))
}

func testPhotoStore(t *testing.T) *photostore.Store {
	t.Helper()
	ps, err := photostore.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create photo store: %v", err)
	}
	return ps
}

type formFile struct {
	field    string
	filename string
	content  string
}

// multipartRequest builds a multipart POST request with the given fields and files.
func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(f.content))
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if ct := recorder.Header().Get("Content-Type"); ct != expected {
		t.Errorf("expected Content-Type %q, got %q", expected, ct)
	}
}

// assertJSONError checks the error body and its code.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, code apperr.Code) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal error response: %v", err)
	}
	if result["error"] == "" {
		t.Error("expected non-empty error message")
	}
	if result["code"] != string(code) {
		t.Errorf("expected code %q, got %q", code, result["code"])
	}
	return result
}

func parseJSONResponse[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return result
}
