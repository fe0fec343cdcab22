package engine

import (
	"context"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/semantic"
)

// CategoryClassifier defines the contract for the semantic stage.
type CategoryClassifier interface {
	Classify(ctx context.Context, text string, candidates []catalog.Candidate) (semantic.Result, error)
}

// ModelHandle is the shared, possibly still loading, semantic stage.
type ModelHandle = embedding.Handle[CategoryClassifier]
