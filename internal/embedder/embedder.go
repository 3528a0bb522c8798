// Package embedder turns an image into a face embedding.
package embedder

import (
	"context"

	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/config"
)

// Embedder computes the face embedding of an image. It returns apperr.ErrNoFaceDetected
// when the image contains no usable face and apperr.ErrInvalidImage when it cannot be
// decoded. Implementations never retry.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, image []byte) ([]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, image []byte) ([]float32, error) {
	return f(ctx, image)
}

// New builds the embedder selected by the configuration: the face embedding server
// when EMBEDDING_URL is set, the local histogram encoder otherwise. The result is
// instrumented with metrics and logging.
func New(cfg *config.Config, logger *zap.Logger) Embedder {
	model := cfg.ResolvedModel()
	if cfg.Embedding.URL == "" {
		return NewInstrumented(NewHistogram(), "histogram", model, logger)
	}
	return NewInstrumented(NewHTTPClient(cfg.Embedding.URL, model), "http", model, logger)
}
