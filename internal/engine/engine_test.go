package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Veraticus/family-budget/internal/catalog"
	"github.com/Veraticus/family-budget/internal/common"
	"github.com/Veraticus/family-budget/internal/embedding"
	"github.com/Veraticus/family-budget/internal/model"
	"github.com/Veraticus/family-budget/internal/pattern"
	"github.com/Veraticus/family-budget/internal/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	err        error
	texts      []string
	candidates [][]catalog.Candidate
	result     semantic.Result
}

func (s *stubClassifier) Classify(_ context.Context, text string, candidates []catalog.Candidate) (semantic.Result, error) {
	s.texts = append(s.texts, text)
	s.candidates = append(s.candidates, candidates)
	if s.err != nil {
		return semantic.Result{}, s.err
	}
	return s.result, nil
}

// countingEmbedder embeds text as word counts and counts every text it sees.
type countingEmbedder struct {
	index map[string]int
	calls int
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([]embedding.Vector, error) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	out := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		e.calls++
		v := make(embedding.Vector, 128)
		for _, word := range strings.Fields(text) {
			idx, ok := e.index[word]
			if !ok {
				idx = len(e.index)
				e.index[word] = idx
			}
			v[idx%len(v)]++
		}
		out[i] = v
	}
	return out, nil
}

func readyHandle(t *testing.T, c CategoryClassifier) *ModelHandle {
	t.Helper()
	h := embedding.NewHandle[CategoryClassifier]()
	require.NoError(t, h.Load(context.Background(), func(context.Context) (CategoryClassifier, error) {
		return c, nil
	}))
	return h
}

func failedHandle(t *testing.T, loadErr error) *ModelHandle {
	t.Helper()
	h := embedding.NewHandle[CategoryClassifier]()
	require.Error(t, h.Load(context.Background(), func(context.Context) (CategoryClassifier, error) {
		return nil, loadErr
	}))
	return h
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Version: "test",
		Income: []catalog.Candidate{
			{Name: "Salary", Prompt: "salary wages payroll employer"},
			{Name: catalog.IncomeCatchAll, Prompt: "deposit credit money in"},
		},
		Expense: []catalog.Candidate{
			{Name: "Groceries", Prompt: "woolworths coles supermarket"},
			{Name: "Subscriptions", Prompt: "netflix spotify streaming"},
			{Name: catalog.ExpenseCatchAll, Prompt: "payment purchase card"},
		},
	}
}

func netflixRules() *pattern.Matcher {
	return pattern.NewMatcher([]model.CategoryRule{
		{ID: "rule-netflix", Keyword: "netflix", Category: "Subscriptions", Polarity: model.PolarityAny},
	}, pattern.DefaultNormalizer())
}

func TestDispatcher_RulePrecedence(t *testing.T) {
	stub := &stubClassifier{result: semantic.Result{Category: "General", Score: 0.99}}
	d := New(readyHandle(t, stub), testCatalog(), pattern.DefaultNormalizer())

	out, err := d.Categorize(context.Background(), "NETFLIX.COM", -15.99, netflixRules())
	require.NoError(t, err)

	assert.Equal(t, "Subscriptions", out.Category)
	assert.Equal(t, model.SourceRule, out.Source)
	assert.Equal(t, "rule-netflix", out.RuleID)
	assert.Equal(t, "netflix com", out.Normalized)
	assert.Empty(t, stub.texts)
}

func TestDispatcher_RulePrecedenceNeverEmbeds(t *testing.T) {
	emb := &countingEmbedder{}
	classifier := semantic.NewClassifier(emb, semantic.WithoutPrototypeCache())
	d := New(readyHandle(t, classifier), testCatalog(), pattern.DefaultNormalizer())

	out, err := d.Categorize(context.Background(), "NETFLIX.COM", -15.99, netflixRules())
	require.NoError(t, err)
	assert.Equal(t, "Subscriptions", out.Category)
	assert.Zero(t, emb.calls)
}

func TestDispatcher_SemanticThreshold(t *testing.T) {
	tests := []struct {
		name       string
		wantCat    string
		wantSource model.ClassificationSource
		result     semantic.Result
	}{
		{
			name:       "above threshold applied",
			result:     semantic.Result{Category: "Groceries", Score: 0.41},
			wantCat:    "Groceries",
			wantSource: model.SourceSemantic,
		},
		{
			name:       "exactly at threshold stays uncategorized",
			result:     semantic.Result{Category: "Groceries", Score: 0.4},
			wantCat:    model.Uncategorized,
			wantSource: model.SourceNone,
		},
		{
			name:       "classifier rejection stays uncategorized",
			result:     semantic.Result{Category: model.Uncategorized, Score: 0.2},
			wantCat:    model.Uncategorized,
			wantSource: model.SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClassifier{result: tt.result}
			d := New(readyHandle(t, stub), testCatalog(), pattern.DefaultNormalizer())

			out, err := d.Categorize(context.Background(), "Some Shop", -10, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, out.Category)
			assert.Equal(t, tt.wantSource, out.Source)
			assert.Equal(t, tt.result.Score, out.Score)
			assert.False(t, out.SemanticSkipped)
		})
	}
}

func TestDispatcher_PolaritySelectsCatalog(t *testing.T) {
	cat := testCatalog()
	stub := &stubClassifier{result: semantic.Result{Category: model.Uncategorized}}
	d := New(readyHandle(t, stub), cat, pattern.DefaultNormalizer())

	_, err := d.Categorize(context.Background(), "ACME PTY LTD", 2500, nil)
	require.NoError(t, err)
	_, err = d.Categorize(context.Background(), "ACME PTY LTD", 0, nil)
	require.NoError(t, err)
	_, err = d.Categorize(context.Background(), "ACME PTY LTD", -0.01, nil)
	require.NoError(t, err)

	require.Len(t, stub.candidates, 3)
	assert.Equal(t, cat.Income, stub.candidates[0])
	assert.Equal(t, cat.Income, stub.candidates[1])
	assert.Equal(t, cat.Expense, stub.candidates[2])
	assert.Equal(t, "acme pty ltd", stub.texts[0])
}

func TestDispatcher_ModelUnavailable(t *testing.T) {
	loadErr := &embedding.LoadError{Path: "/models/model.onnx", Err: errors.New("no such file")}

	handles := map[string]*ModelHandle{
		"loading": embedding.NewHandle[CategoryClassifier](),
		"failed":  failedHandle(t, loadErr),
	}

	for name, h := range handles {
		t.Run(name, func(t *testing.T) {
			d := New(h, testCatalog(), pattern.DefaultNormalizer())

			out, err := d.Categorize(context.Background(), "NETFLIX.COM", -15.99, netflixRules())
			require.NoError(t, err)
			assert.Equal(t, "Subscriptions", out.Category)

			out, err = d.Categorize(context.Background(), "Woolworths Sydney", -52.10, netflixRules())
			require.NoError(t, err)
			assert.Equal(t, model.Uncategorized, out.Category)
			assert.Equal(t, model.SourceNone, out.Source)
			assert.True(t, out.SemanticSkipped)

			_, err = d.ClassifyText(context.Background(), "Woolworths", testCatalog().Expense)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrModelNotReady)
		})
	}

	t.Run("failed state carries load error", func(t *testing.T) {
		d := New(handles["failed"], testCatalog(), pattern.DefaultNormalizer())
		_, err := d.ClassifyText(context.Background(), "Woolworths", testCatalog().Expense)

		var le *embedding.LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "/models/model.onnx", le.Path)

		state, stateErr := d.ModelState()
		assert.Equal(t, embedding.StateFailed, state)
		assert.ErrorIs(t, stateErr, loadErr)
	})
}

func TestDispatcher_InferenceErrorPropagates(t *testing.T) {
	infErr := &embedding.InferenceError{Tokens: 3, Err: errors.New("runtime failure")}
	d := New(readyHandle(t, &stubClassifier{err: infErr}), testCatalog(), pattern.DefaultNormalizer())

	_, err := d.Categorize(context.Background(), "Unknown", -5, nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*embedding.InferenceError))

	_, err = d.ClassifyText(context.Background(), "Unknown", testCatalog().Expense)
	assert.ErrorAs(t, err, new(*embedding.InferenceError))
}

func TestDispatcher_ClassifyText(t *testing.T) {
	stub := &stubClassifier{result: semantic.Result{Category: "Groceries", Score: 0.4}}
	d := New(readyHandle(t, stub), testCatalog(), pattern.DefaultNormalizer())

	res, err := d.ClassifyText(context.Background(), "Woolworths Supermarket Sydney", testCatalog().Expense)
	require.NoError(t, err)
	assert.Equal(t, semantic.Result{Category: "Groceries", Score: 0.4}, res)
	assert.Equal(t, []string{"woolworths supermarket"}, stub.texts)
}

func TestDispatcher_EndToEnd(t *testing.T) {
	cat := testCatalog()
	classifier := semantic.NewClassifier(&countingEmbedder{})
	d := NewWithConfig(readyHandle(t, classifier), cat, pattern.DefaultNormalizer(), Config{Threshold: semantic.DefaultThreshold})

	out, err := d.Categorize(context.Background(), "Woolworths Supermarket Sydney", -87.45, netflixRules())
	require.NoError(t, err)
	assert.Equal(t, "woolworths supermarket", out.Normalized)
	assert.Equal(t, "Groceries", out.Category)
	assert.Equal(t, model.SourceSemantic, out.Source)
	assert.Greater(t, out.Score, 0.4)

	out, err = d.Categorize(context.Background(), "XYZ Totally Unknown Vendor 9999", -12, netflixRules())
	require.NoError(t, err)
	assert.Equal(t, model.Uncategorized, out.Category)
	assert.Less(t, out.Score, 0.4)

	out, err = d.Categorize(context.Background(), "XYZ Totally Unknown Vendor 9999", 12, netflixRules())
	require.NoError(t, err)
	assert.Equal(t, model.Uncategorized, out.Category)
	assert.Less(t, out.Score, 0.4)
}
