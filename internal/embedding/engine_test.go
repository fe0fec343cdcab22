package embedding

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizer assigns ids by word, with 1/2 as start/end markers.
type wordTokenizer struct {
	vocab map[string]int64
	fail  bool
}

func (w *wordTokenizer) Encode(text string) (Encoding, error) {
	if w.fail {
		return Encoding{}, errors.New("tokenizer exploded")
	}
	ids := []int64{1}
	for _, word := range strings.Fields(text) {
		id, ok := w.vocab[word]
		if !ok {
			id = 3
		}
		ids = append(ids, id)
	}
	ids = append(ids, 2)

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return Encoding{IDs: ids, AttentionMask: mask, TypeIDs: make([]int64, len(ids))}, nil
}

func (w *wordTokenizer) SpecialOnly() Encoding {
	return Encoding{IDs: []int64{1, 2}, AttentionMask: []int64{1, 1}, TypeIDs: []int64{0, 0}}
}

// oneHotRunner emits a one-hot row per token id.
type oneHotRunner struct {
	err       error
	lastMask  []int64
	lastTypes []int64
	dim       int
	short     bool
	calls     int
	closed    bool
}

func (r *oneHotRunner) HiddenSize() int { return r.dim }

func (r *oneHotRunner) Run(ids, mask, typeIDs []int64) ([]float32, error) {
	r.calls++
	r.lastMask = mask
	r.lastTypes = typeIDs
	if r.err != nil {
		return nil, r.err
	}
	out := make([]float32, len(ids)*r.dim)
	for i, id := range ids {
		out[i*r.dim+int(id)%r.dim] = 1
	}
	if r.short {
		return out[:len(out)-1], nil
	}
	return out, nil
}

func (r *oneHotRunner) Close() error {
	r.closed = true
	return nil
}

func newTestEngine(t *testing.T, tok Tokenizer, runner Runner) *Engine {
	t.Helper()
	e, err := New(tok, runner)
	require.NoError(t, err)
	return e
}

func TestEngine_Embed(t *testing.T) {
	tok := &wordTokenizer{vocab: map[string]int64{"coffee": 4, "shop": 5}}
	runner := &oneHotRunner{dim: 8}
	e := newTestEngine(t, tok, runner)

	vec, err := e.Embed(context.Background(), "coffee shop")
	require.NoError(t, err)
	require.Len(t, vec, 8)
	assert.Equal(t, 8, e.Dimension())

	// [CLS] coffee shop [SEP] -> ids 1,4,5,2, each a quarter of the mean.
	for _, j := range []int{1, 2, 4, 5} {
		assert.InDelta(t, 0.25, vec[j], 1e-6, "dimension %d", j)
	}
	assert.Equal(t, float32(0), vec[0])
	assert.Equal(t, []int64{0, 0, 0, 0}, runner.lastTypes)
}

func TestEngine_DegenerateTokenization(t *testing.T) {
	tok := &wordTokenizer{fail: true}
	runner := &oneHotRunner{dim: 4}
	e := newTestEngine(t, tok, runner)

	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	assert.InDelta(t, 0.5, vec[1], 1e-6)
	assert.InDelta(t, 0.5, vec[2], 1e-6)
	for _, v := range vec {
		assert.False(t, math.IsNaN(float64(v)))
	}
}

func TestEngine_InferenceErrors(t *testing.T) {
	ctx := context.Background()
	tok := &wordTokenizer{}

	t.Run("runtime failure is surfaced", func(t *testing.T) {
		e := newTestEngine(t, tok, &oneHotRunner{dim: 4, err: errors.New("bad input")})
		_, err := e.Embed(ctx, "anything")

		var infErr *InferenceError
		require.ErrorAs(t, err, &infErr)
		assert.Equal(t, 3, infErr.Tokens)
	})

	t.Run("shape mismatch is surfaced", func(t *testing.T) {
		e := newTestEngine(t, tok, &oneHotRunner{dim: 4, short: true})
		_, err := e.Embed(ctx, "anything")

		var infErr *InferenceError
		require.ErrorAs(t, err, &infErr)
		assert.Contains(t, err.Error(), "shape mismatch")
	})
}

func TestEngine_EmbedBatch(t *testing.T) {
	runner := &oneHotRunner{dim: 6}
	e := newTestEngine(t, &wordTokenizer{vocab: map[string]int64{"rent": 4}}, runner)

	vecs, err := e.EmbedBatch(context.Background(), []string{"rent", "", "rent rent"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 3, runner.calls)
	assert.InDelta(t, 0.5, vecs[2][4], 1e-6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.EmbedBatch(ctx, []string{"rent"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Close(t *testing.T) {
	runner := &oneHotRunner{dim: 4}
	e := newTestEngine(t, &wordTokenizer{}, runner)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, runner.closed)

	_, err := e.Embed(context.Background(), "late")
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestNew_RejectsInvalidParts(t *testing.T) {
	_, err := New(nil, &oneHotRunner{dim: 4})
	assert.Error(t, err)

	_, err = New(&wordTokenizer{}, &oneHotRunner{dim: 0})
	assert.Error(t, err)
}

func TestMeanPool(t *testing.T) {
	tests := []struct {
		name   string
		hidden []float32
		mask   []int64
		dim    int
		want   Vector
	}{
		{
			name:   "padding positions are ignored",
			hidden: []float32{1, 2, 3, 4, 100, 100},
			mask:   []int64{1, 1, 0},
			dim:    2,
			want:   Vector{2, 3},
		},
		{
			name:   "all masked yields zeros",
			hidden: []float32{5, 5, 5, 5},
			mask:   []int64{0, 0},
			dim:    2,
			want:   Vector{0, 0},
		},
		{
			name:   "single token",
			hidden: []float32{-1, 0.5},
			mask:   []int64{1},
			dim:    2,
			want:   Vector{-1, 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := meanPool(tt.hidden, tt.mask, tt.dim)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-6)
		})
	}
}

func TestLoad_MissingArtifacts(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir, Options{})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(dir, DefaultTokenizerFile), loadErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultTokenizerFile), []byte("{}"), 0o600))
	_, err = Load(dir, Options{})
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(dir, DefaultWeightsFile), loadErr.Path)
}

func TestLoad_MalformedTokenizer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tok.json"), []byte("not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weights.onnx"), []byte("junk"), 0o600))

	_, err := Load(dir, Options{TokenizerFile: "tok.json", WeightsFile: "weights.onnx"})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(dir, "tok.json"), loadErr.Path)
}
