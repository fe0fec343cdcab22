package embedding

import (
	"errors"
	"fmt"
	"log"
	"os"

	_ "github.com/Veraticus/family-budget/internal/embedding/internal/quietinit"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Standard log output is discarded by quietinit while the tokenizer package
// initializes.
func init() {
	log.SetOutput(os.Stderr)
}

// Encoding is one tokenized input. All three slices have the same length.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
	TypeIDs       []int64
}

// Len returns the number of token positions.
func (e Encoding) Len() int {
	return len(e.IDs)
}

func (e Encoding) valid() bool {
	return len(e.IDs) > 0 &&
		len(e.AttentionMask) == len(e.IDs) &&
		len(e.TypeIDs) == len(e.IDs)
}

// Tokenizer converts text into model inputs.
type Tokenizer interface {
	Encode(text string) (Encoding, error)
	// SpecialOnly returns the encoding used when text cannot be tokenized,
	// typically the start and end markers with nothing between them.
	SpecialOnly() Encoding
}

// hfTokenizer wraps a HuggingFace tokenizer.json definition.
type hfTokenizer struct {
	tk      *tokenizer.Tokenizer
	special Encoding
}

// specialTokenPairs are tried in order when encoding empty text yields nothing.
var specialTokenPairs = [][2]string{
	{"[CLS]", "[SEP]"},
	{"<s>", "</s>"},
}

func newHFTokenizer(path string) (*hfTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse tokenizer definition: %w", err)
	}

	t := &hfTokenizer{tk: tk}

	special, err := t.Encode("")
	if err != nil || !special.valid() {
		special, err = t.specialFromVocab()
		if err != nil {
			return nil, err
		}
	}
	t.special = special

	return t, nil
}

func (t *hfTokenizer) specialFromVocab() (Encoding, error) {
	for _, pair := range specialTokenPairs {
		start, okStart := t.tk.TokenToId(pair[0])
		end, okEnd := t.tk.TokenToId(pair[1])
		if okStart && okEnd {
			return Encoding{
				IDs:           []int64{int64(start), int64(end)},
				AttentionMask: []int64{1, 1},
				TypeIDs:       []int64{0, 0},
			}, nil
		}
	}
	return Encoding{}, errors.New("tokenizer defines no start/end special tokens")
}

// Encode tokenizes a single sentence with special tokens added.
func (t *hfTokenizer) Encode(text string) (Encoding, error) {
	en, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return Encoding{}, err
	}

	enc := Encoding{
		IDs:           toInt64(en.Ids),
		AttentionMask: toInt64(en.AttentionMask),
		TypeIDs:       toInt64(en.TypeIds),
	}
	if len(enc.TypeIDs) == 0 {
		enc.TypeIDs = make([]int64, len(enc.IDs))
	}
	return enc, nil
}

func (t *hfTokenizer) SpecialOnly() Encoding {
	return t.special
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
