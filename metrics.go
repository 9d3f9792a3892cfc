package wipecore

import "github.com/sanwipe/wipecore/internal/iohandle"

// MetricsSnapshot is a point-in-time view of an I/O Handle's throughput
// and latency, re-exported so callers never need to import internal/iohandle
// directly. The underlying counters are atomic.Uint64/Mutex-guarded, not
// copies taken under a global lock.
type MetricsSnapshot = iohandle.Snapshot

// SnapshotMetrics returns the handle's current metrics if the WipeReport's
// caller wants to poll throughput mid-wipe from a separate goroutine; Wipe
// itself doesn't expose the handle, so this is primarily useful to
// wipebench and other direct internal/iohandle callers.
func SnapshotMetrics(h *iohandle.Handle) MetricsSnapshot {
	return h.Metrics.Snapshot()
}
