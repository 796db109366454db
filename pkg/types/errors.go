package types

import "errors"

// Error taxonomy for remote and run failures. Components wrap these
// sentinels so callers can classify with errors.Is.
var (
	// ErrTransientRemote marks network, timeout, and rate-limit failures
	// that are safe to retry with backoff.
	ErrTransientRemote = errors.New("transient remote error")

	// ErrQuotaExhausted marks an exhausted embedding or search quota. The
	// current unit of work is aborted and not retried within the run.
	ErrQuotaExhausted = errors.New("quota exhausted")

	// ErrConfiguration marks fatal startup problems: missing credentials,
	// embedding dimension mismatch against the stored schema.
	ErrConfiguration = errors.New("configuration error")

	// ErrRetrievalUnavailable is returned when every retrieval source
	// failed. Distinct from a successful query with zero relevant results.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrWatermarkConflict means another run advanced the stored commit
	// between detection and commit; the run aborts without writing.
	ErrWatermarkConflict = errors.New("index watermark changed during run")

	// ErrIndexInProgress means an indexing run is already holding the
	// per-process run lock.
	ErrIndexInProgress = errors.New("indexing already in progress")
)

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientRemote)
}

// IsQuotaExhausted reports whether err is a non-retryable quota failure.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}
