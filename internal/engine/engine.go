// Package engine wires the storage, embedding, remote, indexing, and
// retrieval components into the single facade the MCP server and CLI
// consume.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draylor/repolens/internal/config"
	"github.com/draylor/repolens/internal/embedder"
	"github.com/draylor/repolens/internal/gitremote"
	"github.com/draylor/repolens/internal/indexer"
	"github.com/draylor/repolens/internal/retriever"
	"github.com/draylor/repolens/internal/storage"
	"github.com/draylor/repolens/pkg/types"
)

// Engine is the assembled indexing and retrieval service for one repository.
type Engine struct {
	cfg       *config.Config
	store     storage.Store
	embedder  embedder.Embedder
	remote    *gitremote.Client
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
	logger    *slog.Logger
}

// Option configures the Engine at construction time.
type Option func(*options)

type options struct {
	remoteOpts []gitremote.Option
}

// WithRemoteOptions passes options through to the repository client, used by
// tests to point at a local server.
func WithRemoteOptions(opts ...gitremote.Option) Option {
	return func(o *options) { o.remoteOpts = append(o.remoteOpts, opts...) }
}

// New builds the engine from validated configuration. The stored embedding
// dimension is checked here, so a model change fails at startup instead of
// mid-run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.CheckDimension(context.Background(), cfg.Embeddings.Dimensions); err != nil {
		_ = store.Close()
		return nil, err
	}

	emb, err := embedder.New(cfg.Embeddings)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	remoteOpts := append([]gitremote.Option{
		gitremote.WithLogger(logger.With("component", "gitremote")),
	}, o.remoteOpts...)
	remote := gitremote.NewClient(cfg.Repo.Name, cfg.Repo.Token, remoteOpts...)

	e := &Engine{
		cfg:       cfg,
		store:     store,
		embedder:  emb,
		remote:    remote,
		indexer:   indexer.New(cfg, remote, store, emb, logger.With("component", "indexer")),
		retriever: retriever.New(cfg.Search, cfg.Repo.Name, remote, store, emb, logger.With("component", "retriever")),
		logger:    logger,
	}

	logger.Info("engine ready",
		"repo", cfg.Repo.Name,
		"db", cfg.Storage.DBPath,
		"driver", storage.DriverName,
		"embedding_provider", emb.Provider(),
		"dimensions", emb.Dimension())
	return e, nil
}

// RunIndex executes one indexing run against the remote head. A run that
// wrote anything drops the retrieval query cache, so the next query sees the
// new chunks instead of a cached pre-update result.
func (e *Engine) RunIndex(ctx context.Context, forceFull bool) (*types.RunReport, error) {
	report, err := e.indexer.Run(ctx, forceFull)
	if err != nil {
		return nil, err
	}
	if report.Mode != types.ModeSkip {
		e.retriever.InvalidateCache()
	}
	return report, nil
}

// Retrieve answers a query with merged lexical and vector snippets.
func (e *Engine) Retrieve(ctx context.Context, query string, maxResults int) ([]types.Snippet, error) {
	return e.retriever.Retrieve(ctx, query, maxResults)
}

// Status describes the current index state for the repository.
type Status struct {
	Repo              string
	Indexed           bool
	LastCommitSHA     string
	LastIndexedAt     string
	TotalFiles        int
	TotalChunks       int
	EmbeddingProvider string
	Dimensions        int
}

// Status reports the repository's index watermark and row counts. A
// never-indexed repository is a valid status, not an error.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Repo:              e.cfg.Repo.Name,
		EmbeddingProvider: e.embedder.Provider(),
		Dimensions:        e.embedder.Dimension(),
	}

	meta, err := e.store.GetMetadata(ctx, e.cfg.Repo.Name)
	if errors.Is(err, storage.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index metadata: %w", err)
	}

	stats, err := e.store.Stats(ctx, e.cfg.Repo.Name)
	if err != nil {
		return nil, fmt.Errorf("read repo stats: %w", err)
	}

	st.Indexed = true
	st.LastCommitSHA = meta.LastCommitSHA
	st.LastIndexedAt = meta.LastIndexedAt.UTC().Format("2006-01-02T15:04:05Z")
	st.TotalFiles = stats.Files
	st.TotalChunks = stats.Chunks
	return st, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}
