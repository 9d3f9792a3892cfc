//go:build linux

package platformio

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func openOptimized(path string, directIO bool) (*os.File, error) {
	flags := os.O_RDWR
	if directIO {
		flags |= unix.O_DIRECT
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil && directIO {
		// Some filesystems/devices reject O_DIRECT (tmpfs, certain
		// loop devices); retry without it rather than failing outright.
		// The caller-visible DirectIO() still reports the request, so
		// alignment checks stay in force.
		f, err = os.OpenFile(path, os.O_RDWR, 0)
		return f, err
	}
	return f, err
}

func deviceSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Mode()&os.ModeDevice != 0 {
		size, err := unix.IoctlGetUint64(int(f.Fd()), unix.BLKGETSIZE64)
		if err == nil {
			return int64(size), nil
		}
	}
	return fi.Size(), nil
}

func pwritev(f *os.File, iovecs [][]byte, offset int64) (int64, error) {
	return unix.Pwritev(int(f.Fd()), iovecs, offset)
}

func preadv(f *os.File, iovecs [][]byte, offset int64) (int64, error) {
	return unix.Preadv(int(f.Fd()), iovecs, offset)
}

const blkdiscard = 0x1277 // BLKDISCARD ioctl, grounded on go-luks2/wipe.go

func discard(f *os.File, offset, length int64) error {
	r := [2]uint64{uint64(offset), uint64(length)}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(blkdiscard), uintptr(unsafe.Pointer(&r)))
	if errno != 0 {
		return errno
	}
	return nil
}

// mmapFile maps the full extent of f as the Alternative I/O fallback's
// memory-mapped method, grounded on the teacher's own internal/queue
// mmap'd-buffer usage (golang.org/x/sys/unix rather than raw syscall.Syscall6).
func mmapFile(f *os.File, size int64) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &OperationFailed{Op: "mmap", OSError: err}
	}
	return data, nil
}

func munmapFile(data []byte) error {
	if err := unix.Munmap(data); err != nil {
		return &OperationFailed{Op: "munmap", OSError: err}
	}
	return nil
}

func msyncFile(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}
