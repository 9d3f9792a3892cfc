// Package platformio implements the Platform I/O Engine (spec.md §4.2,
// C2): positioned read/write, scatter-gather, fsync, and direct-I/O open
// against a block device or file. Sequential offset bookkeeping is the
// caller's responsibility — this package only issues positioned calls.
//
// Grounded on the teacher's direct golang.org/x/sys/unix syscall usage in
// internal/queue/runner.go and internal/ctrl/control.go, and on
// other_examples' go-luks2 wipe.go for the O_DIRECT-open / BLKDISCARD
// idiom against a raw block device path.
package platformio

import (
	"errors"
	"fmt"
	"os"
)

// ErrPlatformNotSupported is returned when a capability (e.g. vectored
// I/O) isn't available on the current platform.
var ErrPlatformNotSupported = errors.New("platformio: not supported on this platform")

// AlignmentError indicates caller misuse: an offset or length that isn't
// a multiple of the handle's required alignment when Direct I/O is in
// effect.
type AlignmentError struct {
	Offset, Length int64
	Required       int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("platformio: offset=%d length=%d not aligned to %d", e.Offset, e.Length, e.Required)
}

// OperationFailed wraps an underlying OS error with the failing operation
// name.
type OperationFailed struct {
	Op      string
	OSError error
}

func (e *OperationFailed) Error() string {
	return fmt.Sprintf("platformio: %s: %v", e.Op, e.OSError)
}

func (e *OperationFailed) Unwrap() error { return e.OSError }

// Handle is an open block device or file ready for positioned I/O.
type Handle struct {
	f         *os.File
	path      string
	directIO  bool
	alignment int
	mapped    []byte // non-nil when opened via MethodMemoryMapped
}

// Path returns the path this handle was opened against.
func (h *Handle) Path() string { return h.path }

// Alignment returns the minimum required offset/length alignment this
// handle was opened with.
func (h *Handle) Alignment() int { return h.alignment }

// DirectIO reports whether O_DIRECT was requested when this handle was
// opened. On Linux a path that rejects O_DIRECT is reopened without it,
// and this still reports true.
func (h *Handle) DirectIO() bool { return h.directIO }

// OpenOptimized opens path for positioned I/O, optionally bypassing the
// OS page cache via a platform-appropriate uncached flag. alignment is
// the minimum required alignment for offsets/lengths when directIO is
// true (typically the device's logical sector size).
func OpenOptimized(path string, directIO bool, alignment int) (*Handle, error) {
	f, err := openOptimized(path, directIO)
	if err != nil {
		return nil, &OperationFailed{Op: "open", OSError: err}
	}
	return &Handle{f: f, path: path, directIO: directIO, alignment: alignment}, nil
}

// OpenMethod identifies one of the Recovery Coordinator's four I/O
// strategies (spec.md §4.8): direct, buffered, memory-mapped, and
// synchronous, fastest to safest.
type OpenMethod int

const (
	MethodDirect OpenMethod = iota
	MethodBuffered
	MethodSynchronous
	MethodMemoryMapped
)

// Open opens path using one of the four Alternative I/O strategies, for
// the coordinator's fallback when the device's primary method is
// failing repeatedly.
func Open(path string, method OpenMethod, alignment int) (*Handle, error) {
	switch method {
	case MethodDirect:
		return OpenOptimized(path, true, alignment)
	case MethodBuffered:
		return OpenOptimized(path, false, alignment)
	case MethodSynchronous:
		f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
		if err != nil {
			return nil, &OperationFailed{Op: "open_sync", OSError: err}
		}
		return &Handle{f: f, path: path, alignment: alignment}, nil
	case MethodMemoryMapped:
		return openMemoryMapped(path, alignment)
	default:
		return nil, fmt.Errorf("platformio: unknown open method %d", method)
	}
}

func openMemoryMapped(path string, alignment int) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &OperationFailed{Op: "open_mmap", OSError: err}
	}
	size, err := deviceSize(f)
	if err != nil {
		f.Close()
		return nil, &OperationFailed{Op: "stat_mmap", OSError: err}
	}
	if size == 0 {
		f.Close()
		return nil, &OperationFailed{Op: "open_mmap", OSError: fmt.Errorf("zero-length device cannot be mapped")}
	}
	mapped, err := mmapFile(f, size)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Handle{f: f, path: path, alignment: alignment, mapped: mapped}, nil
}

// Close closes the underlying file descriptor, unmapping first if this
// handle was opened memory-mapped.
func (h *Handle) Close() error {
	if h.mapped != nil {
		if err := munmapFile(h.mapped); err != nil {
			h.f.Close()
			return err
		}
	}
	return h.f.Close()
}

// Size returns the addressable size of the underlying device or file.
func (h *Handle) Size() (int64, error) {
	return deviceSize(h.f)
}

func (h *Handle) checkAlignment(offset, length int64) error {
	if !h.directIO || h.alignment <= 0 {
		return nil
	}
	if offset%int64(h.alignment) != 0 || length%int64(h.alignment) != 0 {
		return &AlignmentError{Offset: offset, Length: length, Required: h.alignment}
	}
	return nil
}

// Pwrite writes data at a fixed offset without disturbing any implicit
// file position.
func (h *Handle) Pwrite(data []byte, offset int64) (int, error) {
	if err := h.checkAlignment(offset, int64(len(data))); err != nil {
		return 0, err
	}
	if h.mapped != nil {
		if offset < 0 || offset+int64(len(data)) > int64(len(h.mapped)) {
			return 0, &OperationFailed{Op: "mmap_write", OSError: fmt.Errorf("write [%d,%d) past mapped end %d", offset, offset+int64(len(data)), len(h.mapped))}
		}
		return copy(h.mapped[offset:], data), nil
	}
	n, err := h.f.WriteAt(data, offset)
	if err != nil {
		return n, &OperationFailed{Op: "pwrite", OSError: err}
	}
	return n, nil
}

// Pread reads into buf at a fixed offset.
func (h *Handle) Pread(buf []byte, offset int64) (int, error) {
	if err := h.checkAlignment(offset, int64(len(buf))); err != nil {
		return 0, err
	}
	if h.mapped != nil {
		if offset < 0 || offset >= int64(len(h.mapped)) {
			return 0, nil
		}
		end := offset + int64(len(buf))
		if end > int64(len(h.mapped)) {
			end = int64(len(h.mapped))
		}
		return copy(buf, h.mapped[offset:end]), nil
	}
	n, err := h.f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return n, &OperationFailed{Op: "pread", OSError: err}
	}
	return n, nil
}

// Pwritev writes multiple buffers as a single positioned scatter-gather
// write starting at offset.
func (h *Handle) Pwritev(iovecs [][]byte, offset int64) (int64, error) {
	total := int64(0)
	for _, v := range iovecs {
		total += int64(len(v))
	}
	if err := h.checkAlignment(offset, total); err != nil {
		return 0, err
	}
	n, err := pwritev(h.f, iovecs, offset)
	if err != nil {
		return n, &OperationFailed{Op: "pwritev", OSError: err}
	}
	return n, nil
}

// Preadv reads into multiple buffers as a single positioned
// scatter-gather read starting at offset.
func (h *Handle) Preadv(iovecs [][]byte, offset int64) (int64, error) {
	total := int64(0)
	for _, v := range iovecs {
		total += int64(len(v))
	}
	if err := h.checkAlignment(offset, total); err != nil {
		return 0, err
	}
	n, err := preadv(h.f, iovecs, offset)
	if err != nil {
		return n, &OperationFailed{Op: "preadv", OSError: err}
	}
	return n, nil
}

// SyncData forces durability of all writes issued so far.
func (h *Handle) SyncData() error {
	if h.mapped != nil {
		if err := msyncFile(h.mapped); err != nil {
			return &OperationFailed{Op: "msync", OSError: err}
		}
		return nil
	}
	if err := h.f.Sync(); err != nil {
		return &OperationFailed{Op: "fsync", OSError: err}
	}
	return nil
}

// Discard issues a TRIM/DISCARD over [offset, offset+length); no
// zero-fill is done in its place. Unsupported platforms return
// ErrPlatformNotSupported; callers treat this as non-fatal (the
// SkipTRIM degraded mode exists precisely because TRIM can't be relied
// upon everywhere).
func (h *Handle) Discard(offset, length int64) error {
	return discard(h.f, offset, length)
}
