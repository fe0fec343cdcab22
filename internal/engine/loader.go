package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/semantic"
)

// ModelConfig describes where the embedding model lives and how the semantic stage uses it.
type ModelConfig struct {
	Dir             string
	Options         embedding.Options
	Threshold       float64
	CachePrototypes bool
}

// SemanticLoader returns a loader for ModelHandle that opens the embedding
// engine, wraps it in a classifier and precomputes the catalog prototypes.
func SemanticLoader(cfg ModelConfig, cat *catalog.Catalog) func(context.Context) (CategoryClassifier, error) {
	return func(ctx context.Context) (CategoryClassifier, error) {
		return loadSemantic(ctx, cfg, cat, func(dir string, opts embedding.Options) (semantic.Embedder, error) {
			eng, err := embedding.Load(dir, opts)
			if err != nil {
				return nil, err
			}
			return eng, nil
		})
	}
}

type openFunc func(dir string, opts embedding.Options) (semantic.Embedder, error)

func loadSemantic(ctx context.Context, cfg ModelConfig, cat *catalog.Catalog, open openFunc) (CategoryClassifier, error) {
	start := time.Now()

	embedder, err := open(cfg.Dir, cfg.Options)
	if err != nil {
		return nil, err
	}

	opts := []semantic.Option{semantic.WithThreshold(cfg.Threshold)}
	if !cfg.CachePrototypes {
		opts = append(opts, semantic.WithoutPrototypeCache())
	}
	classifier := semantic.NewClassifier(embedder, opts...)

	if err := classifier.Warm(ctx, cat.Income, cat.Expense); err != nil {
		if closeErr := classifier.Close(); closeErr != nil {
			slog.Warn("Failed to release embedding engine", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to warm classifier: %w", err)
	}

	slog.Info("Loaded semantic classifier",
		"model_dir", cfg.Dir,
		"catalog_version", cat.Version,
		"prototype_cache", cfg.CachePrototypes,
		"duration", time.Since(start))
	return classifier, nil
}
