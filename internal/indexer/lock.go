package indexer

import "sync/atomic"

// IndexLock guards against overlapping runs, e.g. a watch-triggered run
// and an MCP tool call against the same indexer. It never blocks.
type IndexLock struct {
	state atomic.Int32 // 0 = idle, 1 = running
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}
