// Package iohandle implements the I/O Handle (spec.md §4.3, C3): the
// sequential-write/read-range/sync surface the Pattern Pipeline drives,
// with metrics collection feeding the Adaptive Tuner.
package iohandle

import (
	"sort"
	"sync"
	"time"

	"github.com/sanwipe/wipecore/internal/bufferpool"
	"github.com/sanwipe/wipecore/internal/platformio"
)

// FillFunc produces one buffer's worth of pattern data. It is invoked
// once per buffer during SequentialWrite.
type FillFunc func(buf []byte) error

// Metrics accumulates per-handle throughput and latency statistics
// (spec.md §4.3): bytes/ops are monotonic counters, throughput is only
// meaningful once elapsed >= 1ms, and latency samples live in a bounded
// ring so percentile computation stays cheap to request.
type Metrics struct {
	mu sync.Mutex

	bytesProcessed int64
	opCount        int64
	startedAt      time.Time
	baselineSet    bool
	baselineBPS    float64

	latencies    [1000]time.Duration
	latencyHead  int
	latencyCount int
}

// Snapshot is an immutable view of Metrics for the tuner and reporting.
type Snapshot struct {
	BytesProcessed int64
	OpCount        int64
	Elapsed        time.Duration
	ThroughputBPS  float64
	BaselineBPS    float64
	AvgLatency     time.Duration
	LatencyP99     time.Duration
}

func newMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func (m *Metrics) record(n int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytesProcessed += int64(n)
	m.opCount++
	m.latencies[m.latencyHead] = latency
	m.latencyHead = (m.latencyHead + 1) % len(m.latencies)
	if m.latencyCount < len(m.latencies) {
		m.latencyCount++
	}
}

// Snapshot computes the current metrics view. Throughput is reported as
// zero until at least 1ms has elapsed, matching spec.md §4.3's
// divide-by-near-zero guard.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := time.Since(m.startedAt)
	var throughput float64
	if elapsed >= time.Millisecond {
		throughput = float64(m.bytesProcessed) / elapsed.Seconds()
	}

	var avg time.Duration
	var p99 time.Duration
	if m.latencyCount > 0 {
		samples := make([]time.Duration, m.latencyCount)
		copy(samples, m.latencies[:m.latencyCount])
		var sum time.Duration
		for _, d := range samples {
			sum += d
		}
		avg = sum / time.Duration(m.latencyCount)
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		idx := (len(samples) * 99) / 100
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		p99 = samples[idx]
	}

	return Snapshot{
		BytesProcessed: m.bytesProcessed,
		OpCount:        m.opCount,
		Elapsed:        elapsed,
		ThroughputBPS:  throughput,
		BaselineBPS:    m.baselineBPS,
		AvgLatency:     avg,
		LatencyP99:     p99,
	}
}

// setBaselineOnce records the baseline throughput exactly once, after
// the tuner's warmup window.
func (m *Metrics) setBaselineOnce(bps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.baselineSet {
		m.baselineSet = true
		m.baselineBPS = bps
	}
}

func (m *Metrics) baselineIsSet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baselineSet
}

// Handle wires a platform I/O handle and buffer pool together behind the
// Pattern Pipeline's sequential-write/read-range/sync surface, with a
// Tuner adjusting buffer size and queue depth as it goes.
type Handle struct {
	io   *platformio.Handle
	pool *bufferpool.Pool

	Metrics *Metrics
	Tuner   *Tuner

	deviceSize int64
	chunkSize  int // current write chunk size; tuner-adjustable, capped by pool.BufferSize()
	queueDepth int
}

// New wraps an already-open platform handle and buffer pool into an
// iohandle.Handle, with a tuner seeded from config. The initial write
// chunk size is a quarter of the pool's buffer size (the full size when
// that rounds to zero) and the queue depth starts at 1; the tuner's
// doubling rule grows the chunk size up to the pool's buffer size,
// which doubles as max_buffer_size, and no rule shrinks it.
func New(io *platformio.Handle, pool *bufferpool.Pool, tuner *Tuner) (*Handle, error) {
	size, err := io.Size()
	if err != nil {
		return nil, err
	}
	initialChunk := pool.BufferSize() / 4
	if initialChunk <= 0 {
		initialChunk = pool.BufferSize()
	}
	return &Handle{
		io: io, pool: pool, Metrics: newMetrics(), Tuner: tuner, deviceSize: size,
		chunkSize: initialChunk, queueDepth: 1,
	}, nil
}

// DeviceSize returns the addressable size of the underlying device.
func (h *Handle) DeviceSize() int64 { return h.deviceSize }

// Reopen closes the current platform handle and reopens the same
// device path using method, swapping it in place so every subsequent
// write goes through the new I/O strategy. The Recovery Coordinator's
// Alternative I/O fallback (spec.md §4.8) calls this when the current
// method is failing repeatedly.
func (h *Handle) Reopen(method platformio.OpenMethod) error {
	path := h.io.Path()
	alignment := h.io.Alignment()
	next, err := platformio.Open(path, method, alignment)
	if err != nil {
		return err
	}
	if err := h.io.Close(); err != nil {
		next.Close()
		return err
	}
	h.io = next
	return nil
}

// ChunkSize returns the current write chunk size.
func (h *Handle) ChunkSize() int { return h.chunkSize }

// QueueDepth returns the current outstanding-operation depth.
func (h *Handle) QueueDepth() int { return h.queueDepth }

// WriteChunk performs exactly one buffer acquire/fill/write/release
// cycle at offset, running the tuner afterward exactly as
// SequentialWrite does per buffer. This is the unit the Pattern
// Pipeline wraps in a single Recovery Coordinator retry (spec.md §4.5,
// §4.8): a transient error or bad sector costs only this one chunk, not
// the whole pass, and the caller can resume at the next offset instead
// of restarting from byte zero.
func (h *Handle) WriteChunk(offset int64, size int, fill FillFunc) (int, error) {
	handle, err := h.pool.Acquire()
	if err != nil {
		return 0, err
	}

	buf := handle.Buffer()[:size]
	if err := fill(buf); err != nil {
		handle.Release()
		return 0, err
	}

	start := time.Now()
	_, err = h.io.Pwrite(buf, offset)
	latency := time.Since(start)
	handle.Release()
	if err != nil {
		return 0, err
	}

	h.Metrics.record(size, latency)
	if h.Tuner != nil {
		h.Tuner.Observe(h.Metrics.Snapshot())
		h.Tuner.ApplyTo(h)
	}
	return size, nil
}

// SequentialWrite writes exactly size bytes starting at startOffset,
// invoking fill once per buffer to produce the pattern, per spec.md
// §4.3. After each completed buffer the tuner may adjust buffer size or
// queue depth for the next one; a non-nil interrupt check is polled
// before each buffer. It drives WriteChunk directly with no retry of
// its own; the Pattern Pipeline calls WriteChunk itself so the Recovery
// Coordinator can retry a single chunk instead of the whole range.
func (h *Handle) SequentialWrite(startOffset, size int64, fill FillFunc, interrupted func() bool) error {
	var written int64
	for written < size {
		if interrupted != nil && interrupted() {
			return errInterrupted
		}

		bufSize := h.chunkSize
		if remaining := size - written; remaining < int64(bufSize) {
			bufSize = int(remaining)
		}

		if _, err := h.WriteChunk(startOffset+written, bufSize, fill); err != nil {
			return err
		}
		written += int64(bufSize)
	}
	return nil
}

// ReadRange reads length bytes starting at offset, clamped to the
// device size, for verification sampling.
func (h *Handle) ReadRange(offset, length int64) ([]byte, error) {
	if offset >= h.deviceSize {
		return nil, nil
	}
	if offset+length > h.deviceSize {
		length = h.deviceSize - offset
	}
	buf := make([]byte, length)
	n, err := h.io.Pread(buf, offset)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Sync forces durability of all writes issued so far.
func (h *Handle) Sync() error {
	return h.io.SyncData()
}

// Discard issues a TRIM/UNMAP hint over [offset, offset+length) so
// SSD-class media can reclaim the range instead of treating it as live
// data (spec.md §4.9's post-wipe TRIM pass). A no-op error return means
// the platform or device doesn't support it; callers gate on
// DeviceDescriptor.Capabilities.SupportsTRIM before calling this.
func (h *Handle) Discard(offset, length int64) error {
	return h.io.Discard(offset, length)
}

// Close releases the underlying platform handle.
func (h *Handle) Close() error {
	return h.io.Close()
}

var errInterrupted = &interruptedError{}

type interruptedError struct{}

func (*interruptedError) Error() string { return "iohandle: interrupted" }

// IsInterrupted reports whether err is the sentinel SequentialWrite
// returns when the interrupt check fires.
func IsInterrupted(err error) bool {
	_, ok := err.(*interruptedError)
	return ok
}
