package types

import (
	"errors"
	"time"
)

// Chunk is the atomic unit of indexed content: a bounded slice of one source
// file together with its embedding vector.
type Chunk struct {
	ID        int64
	Repo      string
	Path      string
	Content   string
	Embedding []float32
	UpdatedAt time.Time
}

// Validate checks that the chunk can be persisted.
func (c *Chunk) Validate() error {
	if c.Repo == "" {
		return errors.New("chunk repo cannot be empty")
	}
	if c.Path == "" {
		return errors.New("chunk path cannot be empty")
	}
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	return nil
}

// IndexMetadata is the single durable watermark record per repository.
// LastCommitSHA is only advanced after every chunk write and delete for the
// run has committed.
type IndexMetadata struct {
	Repo          string
	LastCommitSHA string
	LastIndexedAt time.Time
	TotalFiles    int
	TotalChunks   int
}
