package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/missing-persons/internal/apperr"
)

func TestNewKeepsSentinelAndCode(t *testing.T) {
	err := apperr.New(apperr.ErrInvalidEncoding, "embedding is empty", apperr.Field("dim", 0))

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidEncoding)
	assert.Equal(t, apperr.CodeInvalidEncoding, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "embedding is empty")
	assert.Equal(t, 0, apperr.FieldsOf(err)["dim"])
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := apperr.Errorf(apperr.ErrNotFound, "person %d", 42)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), "person 42")
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(err))
}

func TestWrapKeepsCauseAndSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := apperr.Wrap(cause, apperr.ErrStorage, "insert person", apperr.FieldPersonID(7))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Equal(t, apperr.CodeStorageFailure, apperr.CodeOf(err))
	assert.Equal(t, int64(7), apperr.FieldsOf(err)["person_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, apperr.Wrap(nil, apperr.ErrStorage, "ignored"))
}

func TestCodeOfSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("add person: %w", apperr.New(apperr.ErrNoFaceDetected, "photo has no face"))

	assert.Equal(t, apperr.CodeNoFaceDetected, apperr.CodeOf(err))
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
	assert.True(t, apperr.IsClientError(err))
}

func TestUnknownErrorIsInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
	assert.False(t, apperr.IsClientError(err))
	assert.Nil(t, apperr.FieldsOf(err))
}

func TestHTTPStatusTable(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrMissingRequiredField, http.StatusBadRequest},
		{apperr.ErrInvalidThreshold, http.StatusBadRequest},
		{apperr.ErrInvalidMetric, http.StatusBadRequest},
		{apperr.ErrInvalidImage, http.StatusBadRequest},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrUpstream, http.StatusBadGateway},
		{apperr.ErrStorage, http.StatusInternalServerError},
		{nil, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%v", tc.err), func(t *testing.T) {
			assert.Equal(t, tc.want, apperr.HTTPStatus(tc.err))
		})
	}
}
