package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draylor/repolens/internal/gitremote"
	"github.com/draylor/repolens/internal/storage"
	"github.com/draylor/repolens/pkg/types"
)

// Remote is the slice of the repository service the indexer consumes.
type Remote interface {
	HeadCommit(ctx context.Context, branch string) (string, error)
	ListFiles(ctx context.Context, ref, ext string) ([]string, error)
	FileContent(ctx context.Context, path string) (string, error)
	Compare(ctx context.Context, base, head, ext string) (changed, removed []string, err error)
}

// Detector resolves what an indexing run has to do by comparing the stored
// watermark against the remote head.
type Detector struct {
	remote Remote
	store  storage.Store
	repo   string
	branch string
	ext    string
	logger *slog.Logger
}

// NewDetector creates a change detector for one repository.
func NewDetector(remote Remote, store storage.Store, repo, branch, ext string, logger *slog.Logger) *Detector {
	return &Detector{
		remote: remote,
		store:  store,
		repo:   repo,
		branch: branch,
		ext:    ext,
		logger: logger,
	}
}

// Detect classifies the run as skip, incremental, or full and resolves the
// file work list. The unchanged case costs exactly one remote call.
func (d *Detector) Detect(ctx context.Context, forceFull bool) (*types.ChangeSet, error) {
	head, err := d.remote.HeadCommit(ctx, d.branch)
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	meta, err := d.store.GetMetadata(ctx, d.repo)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	if forceFull || meta == nil {
		base := ""
		if meta != nil {
			base = meta.LastCommitSHA
		}
		return d.fullChangeSet(ctx, base, head)
	}

	if meta.LastCommitSHA == head {
		return &types.ChangeSet{
			Mode:       types.ModeSkip,
			BaseCommit: meta.LastCommitSHA,
			HeadCommit: head,
		}, nil
	}

	changed, removed, err := d.remote.Compare(ctx, meta.LastCommitSHA, head, d.ext)
	if err != nil {
		if errors.Is(err, gitremote.ErrCompareUnavailable) {
			// The stored commit is gone from history. Re-index everything
			// rather than failing the run.
			d.logger.Warn("stored commit not comparable, degrading to full run",
				"repo", d.repo, "base", meta.LastCommitSHA, "head", head)
			return d.fullChangeSet(ctx, meta.LastCommitSHA, head)
		}
		return nil, err
	}

	return &types.ChangeSet{
		Mode:            types.ModeIncremental,
		BaseCommit:      meta.LastCommitSHA,
		HeadCommit:      head,
		AddedOrModified: changed,
		Removed:         removed,
	}, nil
}

// fullChangeSet lists every matching file at head. base is the watermark
// detection observed, kept so the commit phase can still spot an external
// writer; it is empty only when the repo had never been indexed.
func (d *Detector) fullChangeSet(ctx context.Context, base, head string) (*types.ChangeSet, error) {
	files, err := d.remote.ListFiles(ctx, head, d.ext)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return &types.ChangeSet{
		Mode:            types.ModeFull,
		BaseCommit:      base,
		HeadCommit:      head,
		AddedOrModified: files,
	}, nil
}
