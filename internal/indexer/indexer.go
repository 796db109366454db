// Package indexer runs the synchronization pipeline: detect changes against
// the stored commit watermark, re-chunk and re-embed the changed files,
// delete chunks for removed files, and advance the watermark only once every
// write has committed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/draylor/repolens/internal/chunker"
	"github.com/draylor/repolens/internal/config"
	"github.com/draylor/repolens/internal/embedder"
	"github.com/draylor/repolens/internal/storage"
	"github.com/draylor/repolens/pkg/types"
)

// Indexer orchestrates indexing runs for a single repository.
type Indexer struct {
	cfg       *config.Config
	remote    Remote
	store     storage.Store
	embedder  embedder.Embedder
	extractor *chunker.Extractor
	detector  *Detector
	logger    *slog.Logger
	lock      runLock
}

// New wires an Indexer from its collaborators.
func New(cfg *config.Config, remote Remote, store storage.Store, emb embedder.Embedder, logger *slog.Logger) *Indexer {
	return &Indexer{
		cfg:       cfg,
		remote:    remote,
		store:     store,
		embedder:  emb,
		extractor: chunker.New(),
		detector:  NewDetector(remote, store, cfg.Repo.Name, cfg.Repo.Branch, cfg.Repo.FileExtension, logger),
		logger:    logger,
	}
}

// Run executes one indexing run. forceFull bypasses change detection and
// re-processes every matching file. Only one run may be active at a time;
// a second caller gets types.ErrIndexInProgress immediately.
//
// A run with per-file failures still completes and reports them, but the
// watermark is not advanced, so the failed files are retried by the next
// run. Configuration and quota errors abort the run.
func (ix *Indexer) Run(ctx context.Context, forceFull bool) (*types.RunReport, error) {
	if !ix.lock.tryAcquire() {
		return nil, types.ErrIndexInProgress
	}
	defer ix.lock.release()

	start := time.Now()
	repo := ix.cfg.Repo.Name

	cs, err := ix.detector.Detect(ctx, forceFull)
	if err != nil {
		return nil, fmt.Errorf("change detection: %w", err)
	}

	ix.logger.Info("indexing run resolved",
		"repo", repo,
		"mode", string(cs.Mode),
		"head", cs.HeadCommit,
		"changed", len(cs.AddedOrModified),
		"removed", len(cs.Removed))

	report := &types.RunReport{
		Repo:      repo,
		Mode:      cs.Mode,
		CommitSHA: cs.HeadCommit,
	}

	if cs.Mode == types.ModeSkip {
		return ix.finishReport(ctx, report, start)
	}

	toProcess := cs.AddedOrModified
	if limit := ix.cfg.Indexing.FileLimit; limit > 0 && len(toProcess) > limit {
		ix.logger.Warn("file limit reached, truncating run",
			"repo", repo, "files", len(toProcess), "limit", limit)
		toProcess = toProcess[:limit]
	}

	// Removals first. A rename shows up as removed old path plus changed
	// new path, so deleting before upserting keeps both orders correct.
	for _, path := range cs.Removed {
		if err := ix.store.DeleteChunks(ctx, repo, path); err != nil {
			return nil, fmt.Errorf("delete chunks for %s: %w", path, err)
		}
		report.FilesDeleted++
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Indexing.Workers)

	for _, path := range toProcess {
		path := path
		g.Go(func() error {
			written, err := ix.processFile(gctx, repo, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Configuration and quota errors poison the whole run;
				// anything else is a per-file failure the next run retries.
				if errors.Is(err, types.ErrConfiguration) || types.IsQuotaExhausted(err) {
					return fmt.Errorf("process %s: %w", path, err)
				}
				ix.logger.Error("file processing failed", "repo", repo, "path", path, "error", err)
				report.FilesFailed++
				report.Failures = append(report.Failures, types.FileFailure{Path: path, Err: err.Error()})
				return nil
			}
			report.FilesProcessed++
			report.ChunksWritten += written
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if report.FilesFailed > 0 {
		// Leave the watermark where it was. The failed files are still
		// ahead of it and get picked up again next run.
		ix.logger.Warn("run completed with failures, watermark not advanced",
			"repo", repo, "failed", report.FilesFailed)
		return ix.finishReport(ctx, report, start)
	}

	if err := ix.commitWatermark(ctx, cs, report); err != nil {
		return nil, err
	}
	return ix.finishReport(ctx, report, start)
}

// processFile runs the chunk, embed, upsert pipeline for one file. An empty
// or unchunkable-empty file clears any stored chunks for the path.
func (ix *Indexer) processFile(ctx context.Context, repo, path string) (int, error) {
	content, err := ix.remote.FileContent(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	segments, fallback := ix.extractor.Extract(path, content)
	if fallback {
		ix.logger.Warn("no structural boundaries found, using window chunks",
			"repo", repo, "path", path)
	}
	if len(segments) == 0 {
		if err := ix.store.DeleteChunks(ctx, repo, path); err != nil {
			return 0, fmt.Errorf("clear empty file: %w", err)
		}
		return 0, nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	chunks := make([]types.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = types.Chunk{
			Repo:      repo,
			Path:      path,
			Content:   seg.Content,
			Embedding: vectors[i],
		}
	}
	if err := ix.store.UpsertChunks(ctx, repo, path, chunks); err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return len(chunks), nil
}

// commitWatermark advances the stored commit after all chunk writes are
// durable. The watermark is re-read first so a run that raced an external
// writer aborts instead of silently clobbering a newer commit.
func (ix *Indexer) commitWatermark(ctx context.Context, cs *types.ChangeSet, report *types.RunReport) error {
	current, err := ix.store.GetMetadata(ctx, report.Repo)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("re-read watermark: %w", err)
	}
	observed := ""
	if current != nil {
		observed = current.LastCommitSHA
	}
	// Any drift from what detection observed means an external writer got
	// here first, including metadata appearing where detection saw none.
	if observed != cs.BaseCommit {
		return fmt.Errorf("%w: expected %q, found %q",
			types.ErrWatermarkConflict, cs.BaseCommit, observed)
	}

	stats, err := ix.store.Stats(ctx, report.Repo)
	if err != nil {
		return fmt.Errorf("read repo stats: %w", err)
	}
	meta := &types.IndexMetadata{
		Repo:          report.Repo,
		LastCommitSHA: cs.HeadCommit,
		LastIndexedAt: time.Now().UTC(),
		TotalFiles:    stats.Files,
		TotalChunks:   stats.Chunks,
	}
	if err := ix.store.PutMetadata(ctx, meta); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

// finishReport fills the totals and duration and logs the outcome.
func (ix *Indexer) finishReport(ctx context.Context, report *types.RunReport, start time.Time) (*types.RunReport, error) {
	stats, err := ix.store.Stats(ctx, report.Repo)
	if err != nil {
		return nil, fmt.Errorf("read repo stats: %w", err)
	}
	report.TotalFiles = stats.Files
	report.TotalChunks = stats.Chunks
	report.Duration = time.Since(start)

	ix.logger.Info("indexing run finished",
		"repo", report.Repo,
		"mode", string(report.Mode),
		"processed", report.FilesProcessed,
		"failed", report.FilesFailed,
		"deleted", report.FilesDeleted,
		"chunks_written", report.ChunksWritten,
		"total_files", report.TotalFiles,
		"total_chunks", report.TotalChunks,
		"duration", report.Duration.String())
	return report, nil
}
