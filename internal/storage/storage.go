// Package storage persists code chunks and the per-repo index watermark in
// SQLite. Chunk replacement for a path is transactional, so a reader never
// observes mixed old and new chunks for the same file.
package storage

import (
	"context"
	"errors"

	"github.com/draylor/repolens/pkg/types"
)

// ErrNotFound is returned when a requested record doesn't exist.
var ErrNotFound = errors.New("not found")

// SimilarityMatch is one nearest-neighbor result with its cosine similarity.
type SimilarityMatch struct {
	Chunk types.Chunk
	Score float64
}

// RepoStats are the current per-repo row counts.
type RepoStats struct {
	Files  int
	Chunks int
}

// Store is the persistence interface for chunks and index metadata.
type Store interface {
	// UpsertChunks atomically replaces every chunk for (repo, path) with
	// the given set.
	UpsertChunks(ctx context.Context, repo, path string, chunks []types.Chunk) error

	// DeleteChunks removes all chunks for (repo, path).
	DeleteChunks(ctx context.Context, repo, path string) error

	// SimilaritySearch returns the topK chunks for repo ordered by
	// descending cosine similarity to query, ties broken by path ascending.
	// It never returns chunks from another repo.
	SimilaritySearch(ctx context.Context, repo string, query []float32, topK int) ([]SimilarityMatch, error)

	// GetMetadata returns the watermark record for repo, or ErrNotFound.
	GetMetadata(ctx context.Context, repo string) (*types.IndexMetadata, error)

	// PutMetadata creates or replaces the watermark record.
	PutMetadata(ctx context.Context, meta *types.IndexMetadata) error

	// Stats reports the distinct file count and chunk count for repo.
	Stats(ctx context.Context, repo string) (RepoStats, error)

	// CheckDimension verifies the stored embedding dimension against the
	// configured one. An empty store passes; a mismatch is a fatal
	// configuration error.
	CheckDimension(ctx context.Context, want int) error

	Close() error
}
