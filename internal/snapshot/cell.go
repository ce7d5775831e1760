// Package snapshot holds the mutex-guarded publish point for the latest
// post-flush Buckets snapshot, read by admin workers. This is the
// structural replacement for the teacher's "lock around every map access"
// style (sync.Mutex guarding every cache map read/write in Statsd):
// instead, the dispatcher is the sole mutator of live Buckets and
// publishes one immutable copy per flush, which readers take under a
// short-lived RLock (spec.md §3/§5).
package snapshot

import (
	"sync"

	"github.com/GiedriusS/statsd-server/internal/buckets"
)

// Cell holds the most recently published Snapshot.
type Cell struct {
	mu   sync.RWMutex
	snap *buckets.Snapshot
}

// Publish replaces the held snapshot. Called only by the dispatcher.
func (c *Cell) Publish(s *buckets.Snapshot) {
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// Load returns the most recently published snapshot, or nil before the
// first flush has happened.
func (c *Cell) Load() *buckets.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}
