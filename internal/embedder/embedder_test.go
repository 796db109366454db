package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draylor/repolens/internal/config"
	"github.com/draylor/repolens/pkg/types"
)

func testGeminiConfig() config.EmbeddingsConfig {
	return config.EmbeddingsConfig{
		Provider:   "gemini",
		Model:      "gemini-embedding-001",
		Dimensions: 4,
		BatchSize:  2,
		APIKey:     "test-key",
	}
}

// newGeminiTestServer serves batchEmbedContents returning dim-4 vectors.
func newGeminiTestServer(t *testing.T, calls *atomic.Int32, failures int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failures {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}

		var req struct {
			Requests []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := struct {
			Embeddings []map[string][]float32 `json:"embeddings"`
		}{}
		for i := range req.Requests {
			v := float32(i + 1)
			resp.Embeddings = append(resp.Embeddings, map[string][]float32{
				"values": {v, v, v, v},
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestGeminiEmbed_BatchingAndOrder(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiTestServer(t, &calls, 0)
	defer srv.Close()

	g, err := newGeminiProvider(testGeminiConfig(), newCache(10))
	require.NoError(t, err)
	g.baseURL = srv.URL

	vectors, err := g.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 4)
	}
	// Batch size 2 means two API calls for three texts.
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeminiEmbed_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiTestServer(t, &calls, 1)
	defer srv.Close()

	g, err := newGeminiProvider(testGeminiConfig(), newCache(10))
	require.NoError(t, err)
	g.baseURL = srv.URL

	vectors, err := g.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeminiEmbed_QuotaNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "RESOURCE_EXHAUSTED", http.StatusForbidden)
	}))
	defer srv.Close()

	g, err := newGeminiProvider(testGeminiConfig(), newCache(10))
	require.NoError(t, err)
	g.baseURL = srv.URL

	_, err = g.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrQuotaExhausted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiEmbed_DimensionMismatchFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": []map[string][]float32{{"values": {1, 2}}},
		})
	}))
	defer srv.Close()

	g, err := newGeminiProvider(testGeminiConfig(), newCache(10))
	require.NoError(t, err)
	g.baseURL = srv.URL

	_, err = g.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestGeminiEmbed_CacheHitSkipsAPI(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiTestServer(t, &calls, 0)
	defer srv.Close()

	g, err := newGeminiProvider(testGeminiConfig(), newCache(10))
	require.NoError(t, err)
	g.baseURL = srv.URL

	_, err = g.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	_, err = g.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiEmbed_BlankTextZeroVector(t *testing.T) {
	var calls atomic.Int32
	srv := newGeminiTestServer(t, &calls, 0)
	defer srv.Close()

	g, err := newGeminiProvider(testGeminiConfig(), newCache(10))
	require.NoError(t, err)
	g.baseURL = srv.URL

	vectors, err := g.Embed(context.Background(), []string{"   "})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, vectors[0])
	assert.Equal(t, int32(0), calls.Load())
}

func TestHashProvider_Deterministic(t *testing.T) {
	h := NewHashProvider(8)

	first, err := h.Embed(context.Background(), []string{"def score(): pass"})
	require.NoError(t, err)
	second, err := h.Embed(context.Background(), []string{"def score(): pass"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first[0], 8)

	other, err := h.Embed(context.Background(), []string{"something else"})
	require.NoError(t, err)
	assert.NotEqual(t, first[0], other[0])
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingsConfig{Provider: "pinecone"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNew_GeminiRequiresKey(t *testing.T) {
	cfg := testGeminiConfig()
	cfg.APIKey = ""
	_, err := New(cfg)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestEmbed_EmptyBatch(t *testing.T) {
	h := NewHashProvider(4)
	_, err := h.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}
