package semantic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/model"
)

// DefaultThreshold is the confidence below which a best match is rejected.
const DefaultThreshold = 0.4

// noMatchScore is reported when there were no candidates to score.
const noMatchScore = -1.0

// debugScoreFloor limits candidate logging to plausible matches.
const debugScoreFloor = 0.2

// Embedder produces embeddings for several texts in one engine pass.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]embedding.Vector, error)
}

// Result is the outcome of one classification.
type Result struct {
	Category string
	Score    float64
}

// Classifier assigns text to the most similar catalog candidate.
type Classifier struct {
	embedder  Embedder
	cache     *prototypeCache
	threshold float64
	mu        sync.Mutex
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(c *Classifier) {
		c.threshold = threshold
	}
}

// WithoutPrototypeCache re-embeds every candidate prompt on every call.
func WithoutPrototypeCache() Option {
	return func(c *Classifier) {
		c.cache = nil
	}
}

// NewClassifier creates a classifier over the given embedder.
func NewClassifier(embedder Embedder, opts ...Option) *Classifier {
	c := &Classifier{
		embedder:  embedder,
		cache:     newPrototypeCache(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the reject threshold in use.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify returns the candidate whose prompt embedding is most similar to text.
// Ties keep the earlier candidate. A best score below the threshold, or an
// empty candidate list, yields model.Uncategorized.
func (c *Classifier) Classify(ctx context.Context, text string, candidates []catalog.Candidate) (Result, error) {
	if len(candidates) == 0 {
		return Result{Category: model.Uncategorized, Score: noMatchScore}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	textVec, prototypes, err := c.embed(ctx, text, candidates)
	if err != nil {
		return Result{}, err
	}

	bestCategory := model.Uncategorized
	bestScore := noMatchScore
	for i, candidate := range candidates {
		score := CosineSimilarity(textVec, prototypes[i])
		if score > debugScoreFloor {
			slog.Debug("Candidate score", "category", candidate.Name, "score", score)
		}
		if score > bestScore {
			bestScore = score
			bestCategory = candidate.Name
		}
	}

	slog.Debug("Semantic decision",
		"text", text,
		"category", bestCategory,
		"score", bestScore,
		"threshold", c.threshold)

	if bestScore < c.threshold {
		return Result{Category: model.Uncategorized, Score: bestScore}, nil
	}
	return Result{Category: bestCategory, Score: bestScore}, nil
}

// embed returns the text embedding and one prototype per candidate, embedding
// the text and every uncached prompt in a single batch.
func (c *Classifier) embed(ctx context.Context, text string, candidates []catalog.Candidate) (embedding.Vector, []embedding.Vector, error) {
	prototypes := make([]embedding.Vector, len(candidates))
	texts := []string{text}
	pending := make(map[string][]int)

	for i, candidate := range candidates {
		if c.cache != nil {
			if v, ok := c.cache.get(candidate.Prompt); ok {
				prototypes[i] = v
				continue
			}
		}
		if _, seen := pending[candidate.Prompt]; !seen {
			texts = append(texts, candidate.Prompt)
		}
		pending[candidate.Prompt] = append(pending[candidate.Prompt], i)
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embed classification inputs: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	for k, prompt := range texts[1:] {
		v := vectors[k+1]
		for _, i := range pending[prompt] {
			prototypes[i] = v
		}
		if c.cache != nil {
			c.cache.set(prompt, v)
		}
	}

	return vectors[0], prototypes, nil
}

// Warm precomputes prototypes for every candidate so later calls only embed the input text.
func (c *Classifier) Warm(ctx context.Context, candidates ...[]catalog.Candidate) error {
	if c.cache == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var prompts []string
	seen := make(map[string]bool)
	for _, list := range candidates {
		for _, candidate := range list {
			if seen[candidate.Prompt] {
				continue
			}
			seen[candidate.Prompt] = true
			if _, ok := c.cache.get(candidate.Prompt); !ok {
				prompts = append(prompts, candidate.Prompt)
			}
		}
	}
	if len(prompts) == 0 {
		return nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, prompts)
	if err != nil {
		return fmt.Errorf("warm prototype cache: %w", err)
	}
	if len(vectors) != len(prompts) {
		return fmt.Errorf("embedder returned %d vectors for %d prompts", len(vectors), len(prompts))
	}
	for i, prompt := range prompts {
		c.cache.set(prompt, vectors[i])
	}

	slog.Debug("Warmed prototype cache", "prototypes", c.cache.size())
	return nil
}

// Reset drops every cached prototype. Call it when the catalog changes.
func (c *Classifier) Reset() {
	if c.cache != nil {
		c.cache.clear()
	}
}

// Close releases the embedder when it owns native resources.
func (c *Classifier) Close() error {
	if closer, ok := c.embedder.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
