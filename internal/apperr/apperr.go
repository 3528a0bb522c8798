// Package apperr defines the error taxonomy shared by the store, the match engine,
// the embedding providers and the presentation layers.
//
// Classification is done with the sentinel errors below (errors.Is). The samber/oops
// builder attaches a machine-readable code and structured context at the point where
// the error originates, which the HTTP layer and the logger read back.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier exposed to API clients.
type Code string

const (
	CodeNoFaceDetected       Code = "NO_FACE_DETECTED"
	CodeMissingRequiredField Code = "MISSING_REQUIRED_FIELD"
	CodeInvalidEncoding      Code = "INVALID_ENCODING"
	CodeDimensionMismatch    Code = "DIMENSION_MISMATCH"
	CodeDegenerateVector     Code = "DEGENERATE_VECTOR"
	CodeInvalidThreshold     Code = "INVALID_THRESHOLD"
	CodeInvalidMetric        Code = "INVALID_METRIC"
	CodeInvalidImage         Code = "INVALID_IMAGE"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeNotFound             Code = "NOT_FOUND"
	CodeStorageFailure       Code = "STORAGE_FAILURE"
	CodeUpstreamFailure      Code = "UPSTREAM_FAILURE"
	CodeInternal             Code = "INTERNAL"
)

// Sentinel errors.
var (
	// ErrNoFaceDetected means the embedding provider found no face in the image.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrMissingRequiredField means a mandatory metadata field is blank.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidEncoding means an embedding is empty, non-finite or of the wrong length.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrDimensionMismatch means two vectors being compared differ in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDegenerateVector means a vector has zero norm and has no direction.
	ErrDegenerateVector = errors.New("degenerate vector")

	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrInvalidMetric    = errors.New("invalid metric")
	ErrInvalidImage     = errors.New("invalid image")
	ErrInvalidRequest   = errors.New("invalid request")

	// ErrNotFound means the requested person record does not exist.
	ErrNotFound = errors.New("not found")

	ErrStorage  = errors.New("storage failure")
	ErrUpstream = errors.New("upstream failure")
)

var sentinelCodes = []struct {
	err    error
	code   Code
	status int
}{
	{ErrNoFaceDetected, CodeNoFaceDetected, http.StatusBadRequest},
	{ErrMissingRequiredField, CodeMissingRequiredField, http.StatusBadRequest},
	{ErrInvalidEncoding, CodeInvalidEncoding, http.StatusBadRequest},
	{ErrDimensionMismatch, CodeDimensionMismatch, http.StatusBadRequest},
	{ErrDegenerateVector, CodeDegenerateVector, http.StatusBadRequest},
	{ErrInvalidThreshold, CodeInvalidThreshold, http.StatusBadRequest},
	{ErrInvalidMetric, CodeInvalidMetric, http.StatusBadRequest},
	{ErrInvalidImage, CodeInvalidImage, http.StatusBadRequest},
	{ErrInvalidRequest, CodeInvalidRequest, http.StatusBadRequest},
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrUpstream, CodeUpstreamFailure, http.StatusBadGateway},
	{ErrStorage, CodeStorageFailure, http.StatusInternalServerError},
}

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// FieldPersonID tags an error with the person record it concerns.
func FieldPersonID(id int64) Attr {
	return Field("person_id", id)
}

// New wraps a sentinel with a message, its code and optional context fields.
func New(sentinel error, msg string, fields ...Attr) error {
	return oops.Code(CodeOf(sentinel)).With(flatten(fields)...).Wrapf(sentinel, "%s", msg)
}

// Errorf wraps a sentinel with a formatted message.
func Errorf(sentinel error, format string, args ...any) error {
	return oops.Code(CodeOf(sentinel)).Wrapf(sentinel, format, args...)
}

// Wrap attaches a sentinel classification to an underlying cause while keeping both
// in the chain, so errors.Is matches either of them.
func Wrap(err, sentinel error, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(CodeOf(sentinel)).With(flatten(fields)...).Wrapf(errors.Join(sentinel, err), "%s", msg)
}

// CodeOf returns the public code of err. Errors outside the taxonomy are INTERNAL.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		switch code := oopsErr.Code().(type) {
		case Code:
			return code
		case string:
			if code != "" {
				return Code(code)
			}
		default:
			if code != nil {
				return Code(fmt.Sprintf("%v", code))
			}
		}
	}
	return CodeInternal
}

// FieldsOf returns the structured context attached with New or Wrap.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

// HTTPStatus maps an error to the response status the presentation layer returns.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether err was caused by the request rather than the system.
func IsClientError(err error) bool {
	status := HTTPStatus(err)
	return status >= 400 && status < 500
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}
