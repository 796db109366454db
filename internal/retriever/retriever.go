// Package retriever answers queries by fanning out to two sources, remote
// code search and local vector similarity, and merging their results into a
// single bounded snippet list. Either source may fail or time out without
// failing the query; only the loss of both does.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/draylor/repolens/internal/config"
	"github.com/draylor/repolens/internal/embedder"
	"github.com/draylor/repolens/internal/gitremote"
	"github.com/draylor/repolens/internal/storage"
	"github.com/draylor/repolens/pkg/types"
)

const (
	queryCacheSize = 256
	queryCacheTTL  = 5 * time.Minute
)

// cacheEntry is a cached result with its expiration time.
type cacheEntry struct {
	snippets  []types.Snippet
	expiresAt time.Time
}

// LexicalSearcher is the remote code search slice the retriever consumes.
type LexicalSearcher interface {
	CodeSearch(ctx context.Context, query string, maxHits int) ([]gitremote.SearchHit, error)
}

// VectorStore is the similarity search slice of the chunk store.
type VectorStore interface {
	SimilaritySearch(ctx context.Context, repo string, query []float32, topK int) ([]storage.SimilarityMatch, error)
}

// Retriever merges lexical and vector retrieval for one repository.
type Retriever struct {
	cfg      config.SearchConfig
	repo     string
	lexical  LexicalSearcher
	store    VectorStore
	embedder embedder.Embedder
	logger   *slog.Logger
	cache    *lru.Cache[string, *cacheEntry]
	cacheTTL time.Duration
}

// New creates a Retriever.
func New(cfg config.SearchConfig, repo string, lexical LexicalSearcher, store VectorStore, emb embedder.Embedder, logger *slog.Logger) *Retriever {
	cache, err := lru.New[string, *cacheEntry](queryCacheSize)
	if err != nil {
		cache, _ = lru.New[string, *cacheEntry](queryCacheSize)
	}
	return &Retriever{
		cfg:      cfg,
		repo:     repo,
		lexical:  lexical,
		store:    store,
		embedder: emb,
		logger:   logger,
		cache:    cache,
		cacheTTL: queryCacheTTL,
	}
}

// InvalidateCache drops every cached query result. Called after an indexing
// run commits, so queries never serve snippets older than the index.
func (r *Retriever) InvalidateCache() {
	r.cache.Purge()
}

// Retrieve returns up to maxResults snippets for query. A maxResults of zero
// uses the configured default; values outside 3-6 are rejected. An empty
// result with a nil error means both sources answered and found nothing
// relevant.
func (r *Retriever) Retrieve(ctx context.Context, query string, maxResults int) ([]types.Snippet, error) {
	if maxResults == 0 {
		maxResults = r.cfg.MaxResults
	}
	if maxResults < 3 || maxResults > 6 {
		return nil, fmt.Errorf("%w: max_results %d outside range 3-6", types.ErrConfiguration, maxResults)
	}

	cacheKey := fmt.Sprintf("%d:%s", maxResults, query)
	if entry, ok := r.cache.Get(cacheKey); ok {
		if time.Now().Before(entry.expiresAt) {
			out := make([]types.Snippet, len(entry.snippets))
			copy(out, entry.snippets)
			return out, nil
		}
		r.cache.Remove(cacheKey)
	}

	var (
		wg         sync.WaitGroup
		lexHits    []gitremote.SearchHit
		lexErr     error
		vecMatches []storage.SimilarityMatch
		vecErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, r.cfg.SourceTimeout)
		defer cancel()
		lexHits, lexErr = r.lexical.CodeSearch(sctx, query, maxResults)
	}()
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, r.cfg.SourceTimeout)
		defer cancel()
		vecMatches, vecErr = r.vectorSearch(sctx, query)
	}()
	wg.Wait()

	if lexErr != nil && vecErr != nil {
		return nil, fmt.Errorf("%w: lexical: %v; vector: %v", types.ErrRetrievalUnavailable, lexErr, vecErr)
	}
	if lexErr != nil {
		r.logger.Warn("lexical source failed, serving vector results only",
			"repo", r.repo, "error", lexErr)
	}
	if vecErr != nil {
		r.logger.Warn("vector source failed, serving lexical results only",
			"repo", r.repo, "error", vecErr)
	}

	snippets := mergeSnippets(vecMatches, lexHits, maxResults)
	r.cache.Add(cacheKey, &cacheEntry{
		snippets:  snippets,
		expiresAt: time.Now().Add(r.cacheTTL),
	})

	out := make([]types.Snippet, len(snippets))
	copy(out, snippets)
	return out, nil
}

// vectorSearch embeds an expanded form of the query and ranks stored chunks
// by similarity. The expansion pulls the embedding toward code rather than
// prose, which matters when the stored chunks are all source text.
func (r *Retriever) vectorSearch(ctx context.Context, query string) ([]storage.SimilarityMatch, error) {
	vectors, err := r.embedder.Embed(ctx, []string{expandQuery(query)})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.store.SimilaritySearch(ctx, r.repo, vectors[0], r.cfg.VectorTopK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return matches, nil
}

func expandQuery(query string) string {
	return fmt.Sprintf("code that handles: %s\nrelevant functions, classes, and business logic", query)
}
