package semantic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableEmbedder returns fixed vectors per text and records what it was asked to embed.
type tableEmbedder struct {
	vectors map[string]embedding.Vector
	err     error
	batches [][]string
	mu      sync.Mutex
}

func (e *tableEmbedder) EmbedBatch(_ context.Context, texts []string) ([]embedding.Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.err != nil {
		return nil, e.err
	}
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		v, ok := e.vectors[text]
		if !ok {
			v = embedding.Vector{0, 0, 0, 0}
		}
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) embedded() []string {
	var all []string
	for _, b := range e.batches {
		all = append(all, b...)
	}
	return all
}

// bagOfWords embeds text as word counts over a vocabulary that grows on demand.
type bagOfWords struct {
	index map[string]int
	dim   int
}

func newBagOfWords() *bagOfWords {
	return &bagOfWords{index: make(map[string]int), dim: 256}
}

func (b *bagOfWords) EmbedBatch(_ context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		v := make(embedding.Vector, b.dim)
		for _, word := range strings.Fields(text) {
			idx, ok := b.index[word]
			if !ok {
				idx = len(b.index)
				b.index[word] = idx
			}
			v[idx%b.dim]++
		}
		out[i] = v
	}
	return out, nil
}

func TestClassifier_EmptyCandidates(t *testing.T) {
	emb := &tableEmbedder{}
	c := NewClassifier(emb)

	res, err := c.Classify(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Category: model.Uncategorized, Score: -1.0}, res)
	assert.Empty(t, emb.batches)
}

func TestClassifier_Threshold(t *testing.T) {
	input := embedding.Vector{1, 0, 0, 0}

	tests := []struct {
		name      string
		prototype embedding.Vector
		want      string
		wantScore float64
	}{
		{
			name:      "exactly at threshold is kept",
			prototype: embedding.Vector{2, 4, 2, 1},
			want:      "Groceries",
			wantScore: 0.4,
		},
		{
			name:      "just above threshold is kept",
			prototype: embedding.Vector{2.0001, 4, 2, 1},
			want:      "Groceries",
			wantScore: 0.40001,
		},
		{
			name:      "below threshold is rejected",
			prototype: embedding.Vector{1.9, 4, 2, 1},
			want:      model.Uncategorized,
			wantScore: 0.383,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &tableEmbedder{vectors: map[string]embedding.Vector{
				"text":   input,
				"prompt": tt.prototype,
			}}
			c := NewClassifier(emb)

			res, err := c.Classify(context.Background(), "text", []catalog.Candidate{{Name: "Groceries", Prompt: "prompt"}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Category)
			assert.InDelta(t, tt.wantScore, res.Score, 1e-3)
		})
	}

	t.Run("exact boundary value", func(t *testing.T) {
		emb := &tableEmbedder{vectors: map[string]embedding.Vector{
			"text":   input,
			"prompt": {2, 4, 2, 1},
		}}
		res, err := NewClassifier(emb).Classify(context.Background(), "text", []catalog.Candidate{{Name: "Groceries", Prompt: "prompt"}})
		require.NoError(t, err)
		assert.Equal(t, 0.4, res.Score)
	})
}

func TestClassifier_CustomThreshold(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string]embedding.Vector{
		"text":   {1, 0},
		"prompt": {3, 4},
	}}
	candidates := []catalog.Candidate{{Name: "Rent", Prompt: "prompt"}}

	res, err := NewClassifier(emb, WithThreshold(0.7)).Classify(context.Background(), "text", candidates)
	require.NoError(t, err)
	assert.Equal(t, model.Uncategorized, res.Category)
	assert.InDelta(t, 0.6, res.Score, 1e-9)

	c := NewClassifier(emb, WithThreshold(0.5))
	assert.Equal(t, 0.5, c.Threshold())
	res, err = c.Classify(context.Background(), "text", candidates)
	require.NoError(t, err)
	assert.Equal(t, "Rent", res.Category)
}

func TestClassifier_TieBreakKeepsEarlierCandidate(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string]embedding.Vector{
		"text":  {1, 1, 0, 0},
		"first": {1, 1, 0, 0},
		"other": {2, 2, 0, 0},
	}}
	c := NewClassifier(emb)

	res, err := c.Classify(context.Background(), "text", []catalog.Candidate{
		{Name: "Eating Out", Prompt: "first"},
		{Name: "Groceries", Prompt: "other"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Eating Out", res.Category)

	res, err = c.Classify(context.Background(), "text", []catalog.Candidate{
		{Name: "Groceries", Prompt: "other"},
		{Name: "Eating Out", Prompt: "first"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", res.Category)
}

func TestClassifier_PicksHighestScore(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string]embedding.Vector{
		"text": {0, 1, 0, 0},
		"a":    {1, 0, 0, 0},
		"b":    {0.2, 1, 0, 0},
		"c":    {0.5, 1, 0, 0},
	}}

	res, err := NewClassifier(emb).Classify(context.Background(), "text", []catalog.Candidate{
		{Name: "A", Prompt: "a"},
		{Name: "B", Prompt: "b"},
		{Name: "C", Prompt: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Category)
	assert.Greater(t, res.Score, 0.9)
}

func TestClassifier_PrototypeCache(t *testing.T) {
	candidates := []catalog.Candidate{
		{Name: "A", Prompt: "a"},
		{Name: "B", Prompt: "b"},
		{Name: "C", Prompt: "a"},
	}

	t.Run("prompts are embedded once", func(t *testing.T) {
		emb := &tableEmbedder{}
		c := NewClassifier(emb)

		_, err := c.Classify(context.Background(), "one", candidates)
		require.NoError(t, err)
		_, err = c.Classify(context.Background(), "two", candidates)
		require.NoError(t, err)

		require.Len(t, emb.batches, 2)
		assert.Equal(t, []string{"one", "a", "b"}, emb.batches[0])
		assert.Equal(t, []string{"two"}, emb.batches[1])

		c.Reset()
		_, err = c.Classify(context.Background(), "three", candidates)
		require.NoError(t, err)
		assert.Equal(t, []string{"three", "a", "b"}, emb.batches[2])
	})

	t.Run("warm precomputes", func(t *testing.T) {
		emb := &tableEmbedder{}
		c := NewClassifier(emb)

		require.NoError(t, c.Warm(context.Background(), candidates, []catalog.Candidate{{Name: "D", Prompt: "d"}}))
		assert.Equal(t, []string{"a", "b", "d"}, emb.batches[0])

		require.NoError(t, c.Warm(context.Background(), candidates))
		assert.Len(t, emb.batches, 1)

		_, err := c.Classify(context.Background(), "text", candidates)
		require.NoError(t, err)
		assert.Equal(t, []string{"text"}, emb.batches[1])
	})

	t.Run("disabled cache recomputes every call", func(t *testing.T) {
		emb := &tableEmbedder{}
		c := NewClassifier(emb, WithoutPrototypeCache())

		require.NoError(t, c.Warm(context.Background(), candidates))
		assert.Empty(t, emb.batches)

		for i := 0; i < 2; i++ {
			_, err := c.Classify(context.Background(), "text", candidates)
			require.NoError(t, err)
		}
		assert.Equal(t, []string{"text", "a", "b", "text", "a", "b"}, emb.embedded())
	})
}

func TestClassifier_EmbedderError(t *testing.T) {
	boom := &embedding.InferenceError{Tokens: 4, Err: errors.New("shape mismatch")}
	c := NewClassifier(&tableEmbedder{err: boom})

	_, err := c.Classify(context.Background(), "text", []catalog.Candidate{{Name: "A", Prompt: "a"}})
	require.Error(t, err)

	var infErr *embedding.InferenceError
	assert.ErrorAs(t, err, &infErr)
}

func TestClassifier_Scenarios(t *testing.T) {
	candidates := []catalog.Candidate{
		{Name: "Groceries", Prompt: "woolworths coles supermarket"},
		{Name: "Eating Out", Prompt: "restaurant cafe coffee"},
		{Name: "Utilities", Prompt: "electricity gas water internet"},
		{Name: "General", Prompt: "payment purchase"},
	}
	c := NewClassifier(newBagOfWords())

	res, err := c.Classify(context.Background(), "woolworths supermarket", candidates)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", res.Category)
	assert.Greater(t, res.Score, 0.4)

	res, err = c.Classify(context.Background(), "xyz totally unknown vendor", candidates)
	require.NoError(t, err)
	assert.Equal(t, model.Uncategorized, res.Category)
	assert.Less(t, res.Score, 0.4)
}

func TestClassifier_ConcurrentUse(t *testing.T) {
	c := NewClassifier(&tableEmbedder{vectors: map[string]embedding.Vector{
		"text": {1, 0, 0, 0},
		"a":    {1, 0, 0, 0},
	}})
	candidates := []catalog.Candidate{{Name: "A", Prompt: "a"}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Classify(context.Background(), "text", candidates)
			assert.NoError(t, err)
			assert.Equal(t, "A", res.Category)
		}()
	}
	wg.Wait()
}
