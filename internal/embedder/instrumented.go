package embedder

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/metrics"
)

// Instrumented wraps an Embedder with request metrics and logging.
type Instrumented struct {
	next     Embedder
	provider string
	model    string
	logger   *zap.Logger
}

// NewInstrumented wraps next. provider and model label the metrics.
func NewInstrumented(next Embedder, provider, model string, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{next: next, provider: provider, model: model, logger: logger}
}

// Embed implements Embedder.
func (e *Instrumented) Embed(ctx context.Context, image []byte) ([]float32, error) {
	start := time.Now()
	embedding, err := e.next.Embed(ctx, image)
	duration := time.Since(start)

	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(duration.Seconds())

	switch {
	case err == nil:
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "ok").Inc()
		e.logger.Debug("embedding computed",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.Int("dim", len(embedding)),
			zap.Duration("took", duration),
		)
	case errors.Is(err, apperr.ErrNoFaceDetected):
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "no_face").Inc()
		e.logger.Info("no face detected", zap.String("provider", e.provider), zap.Int("image_bytes", len(image)))
	default:
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		e.logger.Warn("embedding failed",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Error(err),
		)
	}
	return embedding, err
}

// Model returns the model label.
func (e *Instrumented) Model() string {
	return e.model
}
