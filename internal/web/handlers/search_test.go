package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/database/mock"
	"github.com/kozaktomas/missing-persons/internal/matching"
)

type searchBody struct {
	Success    bool            `json:"success"`
	Matches    []MatchResponse `json:"matches"`
	MatchCount int             `json:"match_count"`
	Threshold  float64         `json:"threshold"`
	Metric     string          `json:"metric"`
	Scanned    int             `json:"scanned"`
	Skipped    int             `json:"skipped"`
}

func newSearchFixture() (*SearchHandler, *mock.MockEncodingStore) {
	store := mock.NewMockEncodingStore(3)
	store.AddPerson("Anna", fakeVectors["face-a"], testModel)
	store.AddPerson("Berta", fakeVectors["face-b"], testModel)
	store.AddPerson("Far Away", fakeVectors["face-far"], testModel)
	return NewSearchHandler(store, testEngine(store), fakeEmbedder(), testModel), store
}

func TestSearchHandler_RankedMatches(t *testing.T) {
	handler, _ := newSearchFixture()
	recorder := httptest.NewRecorder()

	handler.Search(recorder, multipartRequest(t, "/api/v1/search", nil, formFile{"photo", "query.jpg", "face-a2"}))

	assertStatusCode(t, recorder, http.StatusOK)
	body := parseJSONResponse[searchBody](t, recorder)
	if !body.Success || body.MatchCount != 2 || len(body.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", body)
	}
	if body.Matches[0].Name != "Anna" || body.Matches[1].Name != "Berta" {
		t.Errorf("expected Anna then Berta, got %+v", body.Matches)
	}
	if body.Matches[0].Confidence != 83.33 || body.Matches[0].Distance != 0.1 {
		t.Errorf("unexpected first match scores: %+v", body.Matches[0])
	}
	if body.Matches[1].Confidence != 33.33 || body.Matches[1].Distance != 0.4 {
		t.Errorf("unexpected second match scores: %+v", body.Matches[1])
	}
	if body.Threshold != 0.6 || body.Metric != "euclidean" || body.Scanned != 3 {
		t.Errorf("unexpected search summary: %+v", body)
	}
}

func TestSearchHandler_ThresholdOverride(t *testing.T) {
	handler, _ := newSearchFixture()
	recorder := httptest.NewRecorder()

	handler.Search(recorder, multipartRequest(t, "/api/v1/search",
		map[string]string{"threshold": "0.2"}, formFile{"photo", "query.jpg", "face-a2"}))

	assertStatusCode(t, recorder, http.StatusOK)
	body := parseJSONResponse[searchBody](t, recorder)
	if body.MatchCount != 1 || body.Matches[0].Name != "Anna" {
		t.Errorf("expected only Anna within 0.2, got %+v", body.Matches)
	}
}

func TestSearchHandler_EmptyStore(t *testing.T) {
	store := mock.NewMockEncodingStore(3)
	handler := NewSearchHandler(store, testEngine(store), fakeEmbedder(), testModel)
	recorder := httptest.NewRecorder()

	handler.Search(recorder, multipartRequest(t, "/api/v1/search", nil, formFile{"photo", "q.png", "face-a"}))

	assertStatusCode(t, recorder, http.StatusOK)
	body := parseJSONResponse[searchBody](t, recorder)
	if body.MatchCount != 0 || body.Matches == nil {
		t.Errorf("expected empty (non-null) matches, got %+v", body)
	}
}

func TestSearchHandler_DefaultConfigThreshold(t *testing.T) {
	for _, key := range []string{"FACE_MODEL", "EMBEDDING_DIM", "MATCH_METRIC", "MATCH_THRESHOLD"} {
		t.Setenv(key, "")
	}
	t.Setenv("EMBEDDING_URL", "http://embed:8000")
	cfg := config.Load()
	model := cfg.ResolvedModel()

	modelOpt, err := matching.WithModel(cfg.ActiveModel())
	if err != nil {
		t.Fatalf("failed to build engine options: %v", err)
	}
	store := mock.NewMockEncodingStore(3)
	store.AddPerson("Berta", fakeVectors["face-b"], model)
	handler := NewSearchHandler(store, matching.NewEngine(store, modelOpt), fakeEmbedder(), model)
	recorder := httptest.NewRecorder()

	handler.Search(recorder, multipartRequest(t, "/api/v1/search", nil, formFile{"photo", "q.png", "face-a2"}))

	assertStatusCode(t, recorder, http.StatusOK)
	if !strings.Contains(recorder.Body.String(), `"threshold":0.6`) {
		t.Errorf("expected default threshold 0.6 for model %s, got %s", model, recorder.Body.String())
	}
	body := parseJSONResponse[searchBody](t, recorder)
	if body.MatchCount != 1 || body.Matches[0].Name != "Berta" {
		t.Errorf("expected Berta to match, got %+v", body.Matches)
	}
}

func TestSearchHandler_SkipsOtherModels(t *testing.T) {
	handler, store := newSearchFixture()
	store.AddPerson("Other Model", fakeVectors["face-a"], "other-model")
	recorder := httptest.NewRecorder()

	handler.Search(recorder, multipartRequest(t, "/api/v1/search", nil, formFile{"photo", "q.png", "face-a"}))

	assertStatusCode(t, recorder, http.StatusOK)
	body := parseJSONResponse[searchBody](t, recorder)
	for _, m := range body.Matches {
		if m.Name == "Other Model" {
			t.Error("record from another model must not match")
		}
	}
	if body.Skipped != 1 {
		t.Errorf("expected 1 skipped encoding, got %d", body.Skipped)
	}
}

func TestSearchHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  []formFile
		status int
		code   apperr.Code
	}{
		{"no photo", nil, nil, http.StatusBadRequest, apperr.CodeInvalidRequest},
		{"no face", nil, []formFile{{"photo", "q.png", "landscape"}}, http.StatusBadRequest, apperr.CodeNoFaceDetected},
		{"bad threshold", map[string]string{"threshold": "-0.5"}, []formFile{{"photo", "q.png", "face-a"}}, http.StatusBadRequest, apperr.CodeInvalidThreshold},
		{"bad metric", map[string]string{"metric": "hamming"}, []formFile{{"photo", "q.png", "face-a"}}, http.StatusBadRequest, apperr.CodeInvalidMetric},
		{"upstream", nil, []formFile{{"photo", "q.png", "upstream-down"}}, http.StatusBadGateway, apperr.CodeUpstreamFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, _ := newSearchFixture()
			recorder := httptest.NewRecorder()

			handler.Search(recorder, multipartRequest(t, "/api/v1/search", tc.fields, tc.files...))

			assertStatusCode(t, recorder, tc.status)
			assertJSONError(t, recorder, tc.code)
		})
	}
}

func TestSearchHandler_SnapshotFailure(t *testing.T) {
	handler, store := newSearchFixture()
	store.SnapshotError = apperr.Wrap(errors.New("connection refused"), apperr.ErrStorage, "snapshot")
	recorder := httptest.NewRecorder()

	handler.Search(recorder, multipartRequest(t, "/api/v1/search", nil, formFile{"photo", "q.png", "face-a"}))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, apperr.CodeStorageFailure)
}
