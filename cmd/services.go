package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/database"
	"github.com/kozaktomas/missing-persons/internal/embedder"
	"github.com/kozaktomas/missing-persons/internal/logger"
	"github.com/kozaktomas/missing-persons/internal/matching"
	"github.com/kozaktomas/missing-persons/internal/photostore"

	// Store backends register themselves with database.RegisterBackend.
	_ "github.com/kozaktomas/missing-persons/internal/database/memory"
	_ "github.com/kozaktomas/missing-persons/internal/database/postgres"
	_ "github.com/kozaktomas/missing-persons/internal/database/sqlite"
)

// services bundles the components every command works with.
type services struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    database.EncodingStore
	engine   *matching.Engine
	embedder embedder.Embedder
	photos   *photostore.Store
	model    string
	spec     config.ModelSpec
}

// openServices loads the configuration and wires the store, engine and embedder.
// The caller must call close.
func openServices(ctx context.Context) (*services, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	spec := cfg.ActiveModel()
	modelOpt, err := matching.WithModel(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid metric for model %s: %w", cfg.ResolvedModel(), err)
	}

	store, err := database.Open(ctx, cfg, spec.Dim)
	if err != nil {
		return nil, err
	}

	photos, err := photostore.New(cfg.Store.UploadDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := []matching.Option{modelOpt, matching.WithLogger(log), matching.WithIndexPath(cfg.Store.HNSWIndexPath)}

	log.Debug("services ready",
		zap.String("backend", cfg.Store.Backend),
		zap.String("model", cfg.ResolvedModel()),
		zap.Int("dim", spec.Dim),
		zap.String("metric", spec.Metric),
		zap.Float64("threshold", spec.Threshold),
	)

	return &services{
		cfg:      cfg,
		logger:   log,
		store:    store,
		engine:   matching.NewEngine(store, opts...),
		embedder: embedder.New(cfg, log),
		photos:   photos,
		model:    cfg.ResolvedModel(),
		spec:     spec,
	}, nil
}

func (s *services) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = s.logger.Sync()
}
