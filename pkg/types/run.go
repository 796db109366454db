package types

import "time"

// RunMode classifies the work an indexing run has to do.
type RunMode string

const (
	// ModeSkip means the stored watermark already matches the remote head.
	ModeSkip RunMode = "skip"
	// ModeIncremental means only the files changed since the watermark are
	// re-processed.
	ModeIncremental RunMode = "incremental"
	// ModeFull means every source file matching the file filter is processed.
	ModeFull RunMode = "full"
)

// ChangeSet is the resolved work list for one indexing run, produced by the
// change detector and consumed by the orchestrator.
type ChangeSet struct {
	Mode            RunMode
	BaseCommit      string // watermark detection observed, empty only for a never-indexed repo
	HeadCommit      string // remote head the run will advance the watermark to
	AddedOrModified []string
	Removed         []string
}

// FileFailure records a file that could not be processed during a run.
type FileFailure struct {
	Path string
	Err  string
}

// RunReport summarizes a completed indexing run. A run with failures still
// completes; the failed files simply stay behind the watermark and are
// retried on the next run.
type RunReport struct {
	Repo           string
	Mode           RunMode
	CommitSHA      string
	FilesProcessed int
	FilesFailed    int
	FilesDeleted   int
	ChunksWritten  int
	TotalFiles     int
	TotalChunks    int
	Failures       []FileFailure
	Duration       time.Duration
}

// SnippetSource identifies which retriever produced a snippet.
type SnippetSource string

const (
	SourceLexical SnippetSource = "lexical"
	SourceVector  SnippetSource = "vector"
	// SourceMerged marks a path both retrievers returned; the content is the
	// vector chunk, which carries the full extracted body.
	SourceMerged SnippetSource = "merged"
)

// Snippet is a single ranked retrieval result handed to the reasoning stage.
type Snippet struct {
	Path    string
	Content string
	Source  SnippetSource
	Score   float64
}
