package indexer

import "sync/atomic"

// runLock serializes indexing runs within the process. Retrieval is never
// blocked by it; only a second concurrent run is rejected.
type runLock struct {
	busy atomic.Bool
}

func (l *runLock) tryAcquire() bool {
	return l.busy.CompareAndSwap(false, true)
}

func (l *runLock) release() {
	l.busy.Store(false)
}
