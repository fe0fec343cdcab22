package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/cli"
	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/engine"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/pattern"
	"github.com/Veraticus/family-budget/internal/service"
	"github.com/Veraticus/family-budget/internal/storage"
)

// defaultModelTimeout bounds how long commands wait for the embedding model.
const defaultModelTimeout = 2 * time.Minute

// initStorage opens the configured database and runs migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(appConfig.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadCatalog returns the configured catalog override or the built-in one.
func loadCatalog() (*catalog.Catalog, error) {
	if appConfig.Classification.Catalog == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(appConfig.Classification.Catalog)
	if err != nil {
		return nil, common.NewUserError("Could not load category catalog", err)
	}
	return cat, nil
}

func loadNormalizer() (*pattern.Normalizer, error) {
	normalizer, err := pattern.NewNormalizer(appConfig.Classification.GeoTerms)
	if err != nil {
		return nil, fmt.Errorf("%w: classification.geo_terms: %w", common.ErrInvalidConfig, err)
	}
	return normalizer, nil
}

// classifierSetup bundles what a categorizing command needs.
type classifierSetup struct {
	handle     *engine.ModelHandle
	dispatcher *engine.Dispatcher
	catalog    *catalog.Catalog
	normalizer *pattern.Normalizer
}

// newClassifierSetup builds the dispatcher. When loadModel is true the
// embedding model starts loading in the background; otherwise the dispatcher
// stays rule-only.
func newClassifierSetup(ctx context.Context, loadModel bool) (*classifierSetup, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	normalizer, err := loadNormalizer()
	if err != nil {
		return nil, err
	}

	handle := embedding.NewHandle[engine.CategoryClassifier]()
	if loadModel {
		handle.LoadAsync(ctx, engine.SemanticLoader(engine.ModelConfig{
			Dir:             appConfig.Model.Dir,
			Options:         appConfig.Model.EmbeddingOptions(),
			Threshold:       appConfig.Classification.Threshold,
			CachePrototypes: appConfig.Classification.CachePrototypes,
		}, cat))
	}

	dispatcher := engine.NewWithConfig(handle, cat, normalizer, engine.Config{
		Threshold: appConfig.Classification.Threshold,
	})

	return &classifierSetup{
		handle:     handle,
		dispatcher: dispatcher,
		catalog:    cat,
		normalizer: normalizer,
	}, nil
}

// waitForModel blocks until the model is ready or failed. A failed model is
// reported and the caller continues rule-only.
func (s *classifierSetup) waitForModel(ctx context.Context, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info(cli.FormatInfo(cli.ModelIcon + " Loading semantic model..."))
	if _, err := s.handle.Wait(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn(cli.FormatWarning("Semantic model still loading, continuing with rules only"))
			return false
		}
		if ctx.Err() == nil {
			slog.Warn(cli.FormatWarning("Semantic model unavailable, continuing with rules only"), "error", err)
		}
		return false
	}
	return true
}

func (s *classifierSetup) Close() {
	if err := s.handle.Close(); err != nil {
		slog.Warn("Failed to close semantic model", "error", err)
	}
}

func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
}

func parsePolarityFlag(value string) (model.Polarity, error) {
	p, err := model.ParsePolarity(value)
	if err != nil {
		return "", common.NewUserError("Invalid --polarity", err)
	}
	return p, nil
}
