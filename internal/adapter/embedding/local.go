package embedding

import (
	"hash/fnv"
	"math"
	"strings"
)

// LocalEmbedder is a deterministic, offline embedder: tokens are hashed
// into a fixed number of buckets and the resulting count vector is
// L2-normalized. Texts sharing tokens land near each other, which is
// enough for offline runs and for exercising retrieval in tests.
// Same input always yields the same vector.
type LocalEmbedder struct {
	model     string
	dimension int
}

// NewLocalEmbedder creates a local hash-projection embedder.
func NewLocalEmbedder(model string, dimension int) *LocalEmbedder {
	return &LocalEmbedder{model: model, dimension: dimension}
}

// Embed generates embeddings for the given texts.
func (e *LocalEmbedder) Embed(texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]{}")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.dimension] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec
}

// Dimension returns the embedding vector dimension.
func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *LocalEmbedder) ModelName() string {
	return e.model
}
