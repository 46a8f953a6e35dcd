package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockEmbedder hashes words into a fixed number of dimensions. It is
// deterministic and needs no network, so texts sharing words land close
// together. Used for dry runs and tests.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.embedText(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) embedText(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		h := fnv.New64a()
		h.Write([]byte(word))
		vec[h.Sum64()%uint64(e.dimension)] += 1.0
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func isSeparator(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return false
	default:
		return r < 128
	}
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
