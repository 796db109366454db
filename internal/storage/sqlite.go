package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/draylor/repolens/pkg/types"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the store at dbPath and applies
// pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertChunks replaces all chunks for (repo, path) inside one transaction.
// Delete-then-insert keeps the invariant that stale chunks from a prior
// version of the file never coexist with new ones.
func (s *SQLiteStore) UpsertChunks(ctx context.Context, repo, path string, chunks []types.Chunk) error {
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return fmt.Errorf("invalid chunk %d for %s: %w", i, path, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM code_chunks WHERE repo = ? AND path = ?", repo, path); err != nil {
		return fmt.Errorf("failed to delete old chunks for %s: %w", path, err)
	}

	now := time.Now()
	for i := range chunks {
		c := &chunks[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO code_chunks (repo, path, content, embedding, dimension, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			repo, path, c.Content, serializeVector(c.Embedding), len(c.Embedding), now); err != nil {
			return fmt.Errorf("failed to insert chunk for %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks for %s: %w", path, err)
	}
	return nil
}

// DeleteChunks removes all chunks for (repo, path).
func (s *SQLiteStore) DeleteChunks(ctx context.Context, repo, path string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM code_chunks WHERE repo = ? AND path = ?", repo, path); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", path, err)
	}
	return nil
}

// SimilaritySearch scans the repo's chunks and ranks by cosine similarity
// computed in Go. Ordering is descending score with path-ascending
// tie-break for determinism.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, repo string, query []float32, topK int) ([]SimilarityMatch, error) {
	if topK <= 0 {
		return []SimilarityMatch{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, content, embedding, updated_at
		FROM code_chunks
		WHERE repo = ?`, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []SimilarityMatch
	for rows.Next() {
		var c types.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Path, &c.Content, &blob, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Repo = repo
		c.Embedding = deserializeVector(blob)

		// Dimension-mismatched rows cannot be scored; skip.
		if len(c.Embedding) != len(query) {
			continue
		}

		candidates = append(candidates, SimilarityMatch{
			Chunk: c,
			Score: cosineSimilarity(query, c.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortMatches(candidates)

	if topK > len(candidates) {
		topK = len(candidates)
	}
	return candidates[:topK], nil
}

// GetMetadata returns the watermark record for repo.
func (s *SQLiteStore) GetMetadata(ctx context.Context, repo string) (*types.IndexMetadata, error) {
	var meta types.IndexMetadata
	err := s.db.QueryRowContext(ctx, `
		SELECT repo, last_commit_sha, last_indexed_at, total_files, total_chunks
		FROM index_metadata
		WHERE repo = ?`, repo).Scan(
		&meta.Repo, &meta.LastCommitSHA, &meta.LastIndexedAt, &meta.TotalFiles, &meta.TotalChunks)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	return &meta, nil
}

// PutMetadata creates or replaces the watermark record for meta.Repo.
func (s *SQLiteStore) PutMetadata(ctx context.Context, meta *types.IndexMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_metadata (repo, last_commit_sha, last_indexed_at, total_files, total_chunks)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (repo) DO UPDATE SET
			last_commit_sha = excluded.last_commit_sha,
			last_indexed_at = excluded.last_indexed_at,
			total_files = excluded.total_files,
			total_chunks = excluded.total_chunks`,
		meta.Repo, meta.LastCommitSHA, meta.LastIndexedAt, meta.TotalFiles, meta.TotalChunks)
	if err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	return nil
}

// Stats reports distinct file and total chunk counts for repo.
func (s *SQLiteStore) Stats(ctx context.Context, repo string) (RepoStats, error) {
	var stats RepoStats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT path), COUNT(*) FROM code_chunks WHERE repo = ?", repo).
		Scan(&stats.Files, &stats.Chunks)
	if err != nil {
		return RepoStats{}, fmt.Errorf("failed to read repo stats: %w", err)
	}
	return stats, nil
}

// CheckDimension compares the stored embedding dimension with the
// configured one. Run at startup so a model change is caught before any
// per-chunk work.
func (s *SQLiteStore) CheckDimension(ctx context.Context, want int) error {
	var stored int
	err := s.db.QueryRowContext(ctx, "SELECT dimension FROM code_chunks LIMIT 1").Scan(&stored)
	if err == sql.ErrNoRows {
		return nil // empty store, nothing to conflict with
	}
	if err != nil {
		return fmt.Errorf("failed to read stored dimension: %w", err)
	}
	if stored != want {
		return fmt.Errorf("%w: store holds %d-dimension embeddings, configured %d; re-index required",
			types.ErrConfiguration, stored, want)
	}
	return nil
}
