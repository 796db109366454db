// Package embedder converts chunk text into fixed-dimension vectors via an
// external embedding service, with batching, quota-aware retry, and an LRU
// cache keyed by content hash.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/draylor/repolens/internal/config"
	"github.com/draylor/repolens/pkg/types"
)

var (
	ErrEmptyBatch      = errors.New("no texts provided")
	ErrProviderFailed  = errors.New("embedding provider failed")
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Embedder generates embeddings. Embed returns one vector per input text,
// same length and order as the input; a batch either fully succeeds or
// fails, never a partial pairing.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Provider() string
}

// New builds the configured provider.
func New(cfg config.EmbeddingsConfig) (Embedder, error) {
	cache := newCache(defaultCacheSize)
	switch cfg.Provider {
	case "gemini":
		return newGeminiProvider(cfg, cache)
	case "hash":
		// Deterministic pseudo-embeddings, development and tests only.
		return NewHashProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

const defaultCacheSize = 10000

// cache is an in-memory LRU of embeddings keyed by content hash.
type cache struct {
	lru *lru.Cache[string, []float32]
}

func newCache(size int) *cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		c, _ = lru.New[string, []float32](defaultCacheSize)
	}
	return &cache{lru: c}
}

// get returns a copy so caller mutations cannot pollute the cache.
func (c *cache) get(hash string) ([]float32, bool) {
	v, ok := c.lru.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

func (c *cache) set(hash string, v []float32) {
	c.lru.Add(hash, v)
}

// contentHash computes the SHA-256 cache key for a text.
func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateBatch rejects empty batches; empty texts inside a batch are
// allowed and embed to the zero vector without an API call.
func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return ErrEmptyBatch
	}
	return nil
}

// checkDimension verifies a provider response vector against the configured
// dimension. A mismatch is a configuration error, not a per-chunk retry.
func checkDimension(got, want int) error {
	if got != want {
		return fmt.Errorf("%w: provider returned %d-dimension vector, configured %d",
			types.ErrConfiguration, got, want)
	}
	return nil
}
