package facematch

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// float64s widens the embedding for gonum.
func (e Embedding) float64s() []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}

// CosineSimilarity returns the dot product of a and b after each is scaled to unit length.
// The result is in [-1, 1]. Empty vectors, zero vectors and mismatched dimensions
// return ErrInvalidInput.
func CosineSimilarity(a, b Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty embedding", ErrInvalidInput)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch %d != %d", ErrInvalidInput, len(a), len(b))
	}

	av, bv := a.float64s(), b.float64s()
	normA, normB := floats.Norm(av, 2), floats.Norm(bv, 2)
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero magnitude", ErrInvalidInput)
	}

	similarity := floats.Dot(av, bv) / (normA * normB)
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity, nil
}
