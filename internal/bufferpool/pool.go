// Package bufferpool implements the page/huge-page-aligned buffer pool
// (spec.md §4.1, C1). It uses the arena+handle pattern described in
// spec.md §9: the pool owns all memory; Acquire yields a Handle that
// borrows a buffer for a scope and returns it, zeroed, on Release.
//
// Go has no destructors, so the zero-on-release invariant is enforced by
// Release itself rather than relying on garbage collection, per spec.md
// §9's guidance for languages without deterministic destructors. A
// runtime.SetFinalizer backstop logs (never panics) if a Handle is
// garbage collected without being released, to surface pool leaks during
// development the way the teacher's sync.Pool-based queue buffers rely
// on GC reclamation as a safety net, not a correctness mechanism.
package bufferpool

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/sanwipe/wipecore/internal/logging"
)

// ErrPoolExhausted is returned by Acquire when the free list is empty and
// allocated_count has reached max_buffers.
var ErrPoolExhausted = errors.New("bufferpool: exhausted")

// Strategy selects the allocation backing for a pool's buffers.
type Strategy int

const (
	Standard Strategy = iota
	HugePage2MiB
	HugePage1GiB
	NumaNode
)

func (s Strategy) String() string {
	switch s {
	case HugePage2MiB:
		return "huge-page-2mib"
	case HugePage1GiB:
		return "huge-page-1gib"
	case NumaNode:
		return "numa-node"
	default:
		return "standard"
	}
}

// AlignedBuffer is a pool-owned memory region whose base address and
// length are multiples of Alignment.
type AlignedBuffer struct {
	Data      []byte
	Alignment int
	Strategy  Strategy
	NumaNode  int // meaningful only when Strategy == NumaNode

	mmapped bool // true if Data is backed by an mmap region rather than make([]byte)
}

// Handle is a scoped borrow of an AlignedBuffer from a Pool. Callers must
// call Release exactly once when done.
type Handle struct {
	buf      *AlignedBuffer
	pool     *Pool
	released bool
}

// Buffer returns the underlying aligned buffer's bytes for this scope.
// The slice is invalidated by Release.
func (h *Handle) Buffer() []byte {
	return h.buf.Data
}

// Alignment reports the buffer's alignment.
func (h *Handle) Alignment() int {
	return h.buf.Alignment
}

// Release zeroes the buffer and returns it to the pool's free list. Safe
// to call at most once; a second call is a no-op.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	for i := range h.buf.Data {
		h.buf.Data[i] = 0
	}
	h.pool.release(h.buf)
	runtime.SetFinalizer(h, nil)
}

func leakFinalizer(h *Handle) {
	if !h.released {
		logging.Default().Warn("bufferpool: handle garbage collected without Release", "alignment", h.buf.Alignment)
		h.Release()
	}
}

// Pool preallocates and recycles buffers of a fixed size and alignment.
type Pool struct {
	bufferSize int
	alignment  int
	maxBuffers int
	strategy   Strategy
	numaNode   int

	mu             sync.Mutex
	freeList       []*AlignedBuffer
	allocatedCount int
}

// New creates a pool that will hand out up to maxBuffers buffers, each of
// bufferSize bytes rounded up to alignment, aligned to alignment.
// alignment must be a power of two and at least 512 (the minimum Direct
// I/O sector size).
func New(bufferSize, alignment, maxBuffers int, strategy Strategy) (*Pool, error) {
	if alignment < 512 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("bufferpool: alignment %d must be a power of two >= 512", alignment)
	}
	if bufferSize <= 0 || maxBuffers <= 0 {
		return nil, fmt.Errorf("bufferpool: bufferSize and maxBuffers must be positive")
	}
	aligned := roundUp(bufferSize, alignment)
	return &Pool{
		bufferSize: aligned,
		alignment:  alignment,
		maxBuffers: maxBuffers,
		strategy:   strategy,
	}, nil
}

func roundUp(size, alignment int) int {
	return (size + alignment - 1) &^ (alignment - 1)
}

// BufferSize returns the (alignment-rounded) size of buffers this pool hands out.
func (p *Pool) BufferSize() int { return p.bufferSize }

// Alignment returns the pool's alignment.
func (p *Pool) Alignment() int { return p.alignment }

// AllocatedCount returns the number of buffers currently allocated
// (in use or in the free list), for diagnostics and tests.
func (p *Pool) AllocatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocatedCount
}

// Acquire returns a scoped handle to a zeroed, aligned buffer. It fails
// with ErrPoolExhausted when the free list is empty and allocatedCount
// has reached maxBuffers.
func (p *Pool) Acquire() (*Handle, error) {
	p.mu.Lock()
	if n := len(p.freeList); n > 0 {
		buf := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.mu.Unlock()
		return p.wrap(buf), nil
	}
	if p.allocatedCount >= p.maxBuffers {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.allocatedCount++
	p.mu.Unlock()

	buf := p.allocate()
	return p.wrap(buf), nil
}

func (p *Pool) wrap(buf *AlignedBuffer) *Handle {
	h := &Handle{buf: buf, pool: p}
	runtime.SetFinalizer(h, leakFinalizer)
	return h
}

func (p *Pool) release(buf *AlignedBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeList = append(p.freeList, buf)
}

// allocate produces one AlignedBuffer per the pool's configured strategy.
// Huge-page strategies fall back to Standard on failure; this is never an
// error per spec.md §4.1.
func (p *Pool) allocate() *AlignedBuffer {
	switch p.strategy {
	case HugePage2MiB:
		if data, ok := mmapHugePage(p.bufferSize, hugePageSize2MiB); ok {
			return &AlignedBuffer{Data: data, Alignment: p.alignment, Strategy: HugePage2MiB, mmapped: true}
		}
	case HugePage1GiB:
		if data, ok := mmapHugePage(p.bufferSize, hugePageSize1GiB); ok {
			return &AlignedBuffer{Data: data, Alignment: p.alignment, Strategy: HugePage1GiB, mmapped: true}
		}
	case NumaNode:
		// NUMA placement beyond standard allocation requires libnuma
		// bindings this module doesn't depend on; degrade to Standard.
	}
	return &AlignedBuffer{Data: allocAligned(p.bufferSize, p.alignment), Alignment: p.alignment, Strategy: Standard}
}

// Close releases all buffers currently in the free list, unmapping any
// huge-page-backed regions. It does not wait for outstanding Handles;
// callers must Release all handles before Close for a clean teardown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, buf := range p.freeList {
		if buf.mmapped {
			if err := munmapHugePage(buf.Data); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	p.freeList = nil
	p.allocatedCount = 0
	return firstErr
}
