// Package backend defines the pluggable flush sink contract; the
// configured list of backends is built by buildBackends in
// cmd/statsdaemon. The contract and that factory are grounded on
// backend::backend::factory in the original Rust daemon and on the
// teacher's plugin-factory registration pattern (inputs.Add("statsd", ...)
// in statsd.go), adapted to a static per-process list since this binary
// hosts a fixed backend set rather than a runtime plugin registry.
package backend

import "github.com/GiedriusS/statsd-server/internal/buckets"

// Backend is a flush-time sink. FlushBuckets is invoked synchronously,
// once per flush, by the dispatcher; implementations must complete in
// bounded time or maintain their own internal async send queues, and must
// not retain the Snapshot pointer beyond the call (spec.md §4.5).
type Backend interface {
	// Name identifies the backend for logging and self-stats.
	Name() string
	// FlushBuckets projects the snapshot into the backend's wire format.
	FlushBuckets(snap *buckets.Snapshot) error
}
