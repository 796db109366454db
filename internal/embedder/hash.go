package embedder

import (
	"context"
	"crypto/sha256"
	"strings"
)

// HashProvider produces deterministic pseudo-embeddings by tiling the
// SHA-256 digest of the text across the vector. Low quality but stable:
// identical text always maps to the identical vector, which is exactly what
// offline development and tests need. Never use in production.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash-based embedder with the given dimension.
func NewHashProvider(dimension int) *HashProvider {
	return &HashProvider{dimension: dimension}
}

func (h *HashProvider) Dimension() int   { return h.dimension }
func (h *HashProvider) Provider() string { return "hash" }

// Embed maps each text to a vector with components in [-1, 1].
func (h *HashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.vector(text)
	}
	return vectors, nil
}

func (h *HashProvider) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	if strings.TrimSpace(text) == "" {
		return v
	}

	digest := sha256.Sum256([]byte(text))
	for i := 0; i < h.dimension; i++ {
		b := digest[i%len(digest)]
		v[i] = (float32(b)/255.0)*2.0 - 1.0
	}
	return v
}
