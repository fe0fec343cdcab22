// Package embedding turns text into fixed-dimension sentence vectors using a
// pre-trained transformer encoder exported to ONNX and its tokenizer.json.
//
// An Engine is not safe for concurrent inference at the runtime level, so every
// call serializes on the engine's own lock for the duration of the pass.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Vector is a dense sentence embedding. Produced only by an Engine and never mutated.
type Vector []float32

// poolEpsilon keeps mean pooling defined when every mask entry is zero.
const poolEpsilon = 1e-9

// Default artifact names inside the model directory.
const (
	DefaultTokenizerFile = "tokenizer.json"
	DefaultWeightsFile   = "model.onnx"
)

// Options controls how the model artifacts are located and executed.
type Options struct {
	TokenizerFile  string
	WeightsFile    string
	RuntimeLibrary string // Path to the onnxruntime shared library; empty uses the platform default
	IntraOpThreads int
}

func (o Options) withDefaults() Options {
	if o.TokenizerFile == "" {
		o.TokenizerFile = DefaultTokenizerFile
	}
	if o.WeightsFile == "" {
		o.WeightsFile = DefaultWeightsFile
	}
	return o
}

// Engine holds a loaded tokenizer and inference session for the process lifetime.
type Engine struct {
	tokenizer Tokenizer
	runner    Runner
	mu        sync.Mutex
	closed    bool
}

// Load reads the tokenizer definition and model weights from modelDir.
// Any missing, malformed or unsupported artifact yields a *LoadError.
func Load(modelDir string, opts Options) (*Engine, error) {
	opts = opts.withDefaults()

	tokenizerPath := filepath.Join(modelDir, opts.TokenizerFile)
	weightsPath := filepath.Join(modelDir, opts.WeightsFile)

	for _, path := range []string{tokenizerPath, weightsPath} {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		if info.IsDir() {
			return nil, &LoadError{Path: path, Err: errors.New("is a directory")}
		}
	}

	tok, err := newHFTokenizer(tokenizerPath)
	if err != nil {
		return nil, &LoadError{Path: tokenizerPath, Err: err}
	}

	runner, err := newONNXRunner(weightsPath, opts)
	if err != nil {
		return nil, &LoadError{Path: weightsPath, Err: err}
	}

	slog.Info("Loaded embedding model",
		"dir", modelDir,
		"hidden_size", runner.HiddenSize())

	return New(tok, runner)
}

// New assembles an engine from an already-constructed tokenizer and runner.
func New(tok Tokenizer, runner Runner) (*Engine, error) {
	if tok == nil || runner == nil {
		return nil, errors.New("embedding: tokenizer and runner are required")
	}
	if runner.HiddenSize() <= 0 {
		return nil, fmt.Errorf("embedding: invalid hidden size %d", runner.HiddenSize())
	}
	if !tok.SpecialOnly().valid() {
		return nil, errors.New("embedding: tokenizer has no usable fallback encoding")
	}
	return &Engine{tokenizer: tok, runner: runner}, nil
}

// Dimension returns the length of every vector this engine produces.
func (e *Engine) Dimension() int {
	return e.runner.HiddenSize()
}

// Embed returns the mean-pooled embedding of text.
func (e *Engine) Embed(ctx context.Context, text string) (Vector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds each text in order while holding the engine lock once.
// Sequences run one at a time; no padding across texts is introduced.
func (e *Engine) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	out := make([]Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.embedLocked(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Engine) embedLocked(text string) (Vector, error) {
	enc := e.encode(text)

	hidden, err := e.runner.Run(enc.IDs, enc.AttentionMask, enc.TypeIDs)
	if err != nil {
		return nil, &InferenceError{Tokens: enc.Len(), Err: err}
	}

	return meanPool(hidden, enc.AttentionMask, e.runner.HiddenSize())
}

// encode never fails: unusable tokenizer output degrades to the special-token encoding.
func (e *Engine) encode(text string) Encoding {
	enc, err := e.tokenizer.Encode(text)
	if err == nil && len(enc.TypeIDs) == 0 && len(enc.IDs) > 0 {
		enc.TypeIDs = make([]int64, len(enc.IDs))
	}
	if err != nil || !enc.valid() {
		slog.Debug("Degenerate tokenization, using special tokens only",
			"text_length", len(text),
			"error", err)
		return e.tokenizer.SpecialOnly()
	}
	return enc
}

// meanPool averages hidden states over positions whose mask is 1.
func meanPool(hidden []float32, mask []int64, dim int) (Vector, error) {
	if dim <= 0 || len(hidden) != len(mask)*dim {
		return nil, &InferenceError{
			Tokens: len(mask),
			Err:    fmt.Errorf("shape mismatch: got %d values, want %d x %d", len(hidden), len(mask), dim),
		}
	}

	sums := make([]float64, dim)
	var count float64
	for i, m := range mask {
		if m != 1 {
			continue
		}
		count++
		row := hidden[i*dim : (i+1)*dim]
		for j, v := range row {
			sums[j] += float64(v)
		}
	}

	denom := max(count, poolEpsilon)
	out := make(Vector, dim)
	for j, s := range sums {
		out[j] = float32(s / denom)
	}
	return out, nil
}

// Close releases the inference session. Later calls to Embed fail with ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.runner.Close()
}
