package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draylor/repolens/pkg/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func chunk(repo, path, content string, embedding []float32) types.Chunk {
	return types.Chunk{Repo: repo, Path: path, Content: content, Embedding: embedding}
}

func TestUpsertChunks_ReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := []types.Chunk{
		chunk("acme/payments", "a.py", "old one", []float32{1, 0}),
		chunk("acme/payments", "a.py", "old two", []float32{0, 1}),
	}
	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "a.py", old))

	updated := []types.Chunk{
		chunk("acme/payments", "a.py", "new one", []float32{1, 1}),
	}
	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "a.py", updated))

	stats, err := store.Stats(ctx, "acme/payments")
	require.NoError(t, err)
	assert.Equal(t, RepoStats{Files: 1, Chunks: 1}, stats)

	matches, err := store.SimilaritySearch(ctx, "acme/payments", []float32{1, 1}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new one", matches[0].Chunk.Content)
}

func TestDeleteChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "b.py",
		[]types.Chunk{chunk("acme/payments", "b.py", "body", []float32{1, 0})}))
	require.NoError(t, store.DeleteChunks(ctx, "acme/payments", "b.py"))

	stats, err := store.Stats(ctx, "acme/payments")
	require.NoError(t, err)
	assert.Equal(t, RepoStats{}, stats)

	// Deleting a path with no rows is a no-op.
	assert.NoError(t, store.DeleteChunks(ctx, "acme/payments", "b.py"))
}

func TestSimilaritySearch_OrderingAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "near.py",
		[]types.Chunk{chunk("acme/payments", "near.py", "near", []float32{1, 0})}))
	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "mid.py",
		[]types.Chunk{chunk("acme/payments", "mid.py", "mid", []float32{1, 1})}))
	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "far.py",
		[]types.Chunk{chunk("acme/payments", "far.py", "far", []float32{0, 1})}))

	matches, err := store.SimilaritySearch(ctx, "acme/payments", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near.py", matches[0].Chunk.Path)
	assert.Equal(t, "mid.py", matches[1].Chunk.Path)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestSimilaritySearch_TieBreakByPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Identical vectors: identical scores, so path ascending decides.
	for _, path := range []string{"z.py", "a.py", "m.py"} {
		require.NoError(t, store.UpsertChunks(ctx, "acme/payments", path,
			[]types.Chunk{chunk("acme/payments", path, path, []float32{1, 1})}))
	}

	matches, err := store.SimilaritySearch(ctx, "acme/payments", []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "a.py", matches[0].Chunk.Path)
	assert.Equal(t, "m.py", matches[1].Chunk.Path)
	assert.Equal(t, "z.py", matches[2].Chunk.Path)
}

func TestSimilaritySearch_RepoIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "a.py",
		[]types.Chunk{chunk("acme/payments", "a.py", "payments", []float32{1, 0})}))
	require.NoError(t, store.UpsertChunks(ctx, "acme/billing", "b.py",
		[]types.Chunk{chunk("acme/billing", "b.py", "billing", []float32{1, 0})}))

	matches, err := store.SimilaritySearch(ctx, "acme/payments", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.py", matches[0].Chunk.Path)
}

func TestMetadata_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetMetadata(ctx, "acme/payments")
	assert.ErrorIs(t, err, ErrNotFound)

	meta := &types.IndexMetadata{
		Repo:          "acme/payments",
		LastCommitSHA: "a1b2c3",
		LastIndexedAt: time.Now().UTC(),
		TotalFiles:    3,
		TotalChunks:   12,
	}
	require.NoError(t, store.PutMetadata(ctx, meta))

	got, err := store.GetMetadata(ctx, "acme/payments")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3", got.LastCommitSHA)
	assert.Equal(t, 3, got.TotalFiles)
	assert.Equal(t, 12, got.TotalChunks)

	// Upsert replaces.
	meta.LastCommitSHA = "d4e5f6"
	meta.TotalChunks = 15
	require.NoError(t, store.PutMetadata(ctx, meta))

	got, err = store.GetMetadata(ctx, "acme/payments")
	require.NoError(t, err)
	assert.Equal(t, "d4e5f6", got.LastCommitSHA)
	assert.Equal(t, 15, got.TotalChunks)
}

func TestCheckDimension(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Empty store always passes.
	assert.NoError(t, store.CheckDimension(ctx, 768))

	require.NoError(t, store.UpsertChunks(ctx, "acme/payments", "a.py",
		[]types.Chunk{chunk("acme/payments", "a.py", "body", []float32{1, 2, 3})}))

	assert.NoError(t, store.CheckDimension(ctx, 3))

	err := store.CheckDimension(ctx, 768)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestUpsertChunks_RejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	err := store.UpsertChunks(context.Background(), "acme/payments", "a.py",
		[]types.Chunk{{Repo: "acme/payments", Path: "a.py"}})
	assert.Error(t, err)
}

func TestVectorSerialization_Roundtrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3.75, 0}
	assert.Equal(t, v, deserializeVector(serializeVector(v)))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 1}, []float32{2, 2}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
