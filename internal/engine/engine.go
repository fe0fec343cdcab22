// Package engine implements the two-stage categorization of transactions:
// keyword rules first, semantic similarity as the fallback.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/pattern"
	"github.com/Veraticus/family-budget/internal/semantic"
)

// ruleScore is the confidence recorded for a rule match.
const ruleScore = 1.0

// Config holds configuration options for the dispatcher.
type Config struct {
	Threshold float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Threshold: semantic.DefaultThreshold,
	}
}

// Dispatcher orders the rule and semantic stages for one transaction at a time.
type Dispatcher struct {
	model      *ModelHandle
	catalog    *catalog.Catalog
	normalizer *pattern.Normalizer
	threshold  float64
}

// Outcome describes how a transaction was categorized.
type Outcome struct {
	Category        string
	Normalized      string
	RuleID          string
	Source          model.ClassificationSource
	Polarity        model.Polarity
	Score           float64
	SemanticSkipped bool
}

// New creates a dispatcher with the default configuration.
func New(handle *ModelHandle, cat *catalog.Catalog, normalizer *pattern.Normalizer) *Dispatcher {
	return NewWithConfig(handle, cat, normalizer, DefaultConfig())
}

// NewWithConfig creates a dispatcher with custom configuration.
func NewWithConfig(handle *ModelHandle, cat *catalog.Catalog, normalizer *pattern.Normalizer, config Config) *Dispatcher {
	return &Dispatcher{
		model:      handle,
		catalog:    cat,
		normalizer: normalizer,
		threshold:  config.Threshold,
	}
}

// Categorize runs the rules and, when none match and the model is ready, the
// semantic stage. A semantic result is applied only when its score exceeds the
// threshold. A model that is still loading or failed to load is skipped, not
// reported as an error; inference errors are returned.
func (d *Dispatcher) Categorize(ctx context.Context, description string, amount float64, rules pattern.RuleMatcher) (Outcome, error) {
	out := Outcome{
		Category:   model.Uncategorized,
		Source:     model.SourceNone,
		Normalized: d.normalizer.Normalize(description),
		Polarity:   model.PolarityOf(amount),
	}

	if rules != nil {
		if rule, ok := rules.Match(out.Normalized, out.Polarity); ok {
			out.Category = rule.Category
			out.Source = model.SourceRule
			out.RuleID = rule.ID
			out.Score = ruleScore
			return out, nil
		}
	}

	classifier, err := d.model.Get()
	if err != nil {
		slog.Debug("Skipping semantic stage", "description", description, "reason", err)
		out.SemanticSkipped = true
		return out, nil
	}

	result, err := classifier.Classify(ctx, out.Normalized, d.catalog.For(out.Polarity))
	if err != nil {
		return out, fmt.Errorf("failed to classify %q: %w", description, err)
	}

	out.Score = result.Score
	if result.Category != model.Uncategorized && result.Score > d.threshold {
		out.Category = result.Category
		out.Source = model.SourceSemantic
	}
	return out, nil
}

// ClassifyText runs only the semantic stage against explicit candidates. Unlike
// Categorize it reports common.ErrModelNotReady when the model is unavailable.
func (d *Dispatcher) ClassifyText(ctx context.Context, description string, candidates []catalog.Candidate) (semantic.Result, error) {
	classifier, err := d.model.Get()
	if err != nil {
		return semantic.Result{}, err
	}
	result, err := classifier.Classify(ctx, d.normalizer.Normalize(description), candidates)
	if err != nil {
		return semantic.Result{}, fmt.Errorf("failed to classify %q: %w", description, err)
	}
	return result, nil
}

// ModelState reports the semantic model's availability.
func (d *Dispatcher) ModelState() (embedding.State, error) {
	return d.model.Status()
}

// Catalog returns the catalog the semantic stage scores against.
func (d *Dispatcher) Catalog() *catalog.Catalog {
	return d.catalog
}

// Normalizer returns the description normalizer shared with the rule stage.
func (d *Dispatcher) Normalizer() *pattern.Normalizer {
	return d.normalizer
}

// Threshold returns the confidence a semantic result must exceed.
func (d *Dispatcher) Threshold() float64 {
	return d.threshold
}
