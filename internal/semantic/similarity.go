// Package semantic implements nearest-prototype classification of transaction
// text: each category is represented by the embedding of its prompt and an
// input is assigned to the most cosine-similar prototype, subject to a reject
// threshold.
package semantic

import (
	"fmt"
	"math"

	"github.com/Veraticus/family-budget/internal/embedding"
)

// CosineSimilarity returns dot(a,b) / (|a| |b|) in [-1, 1].
// A zero vector on either side scores exactly 0. Vectors of different length
// are a programming error and panic.
func CosineSimilarity(a, b embedding.Vector) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("semantic: cosine similarity of vectors with length %d and %d", len(a), len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
