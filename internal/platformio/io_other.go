//go:build !linux

package platformio

import "os"

// openOptimized on non-Linux platforms has no portable uncached-open
// flag wired here; directIO is accepted but has no effect (Handle.DirectIO
// still reports the caller's request so alignment checks remain active
// where the caller wants them).
func openOptimized(path string, directIO bool) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}

func deviceSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func pwritev(f *os.File, iovecs [][]byte, offset int64) (int64, error) {
	total := int64(0)
	for _, v := range iovecs {
		n, err := f.WriteAt(v, offset+total)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func preadv(f *os.File, iovecs [][]byte, offset int64) (int64, error) {
	total := int64(0)
	for _, v := range iovecs {
		n, err := f.ReadAt(v, offset+total)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func discard(f *os.File, offset, length int64) error {
	return ErrPlatformNotSupported
}

// mmapFile has no portable implementation here; platforms without a
// golang.org/x/sys/unix-backed mmap (io_linux.go) fall back to the next
// Alternative I/O method instead.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	return nil, ErrPlatformNotSupported
}

func munmapFile(data []byte) error {
	return ErrPlatformNotSupported
}

func msyncFile(data []byte) error {
	return ErrPlatformNotSupported
}
