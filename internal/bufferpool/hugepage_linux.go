//go:build linux

package bufferpool

import (
	"golang.org/x/sys/unix"
)

const (
	hugePageSize2MiB = 2 * 1024 * 1024
	hugePageSize1GiB = 1024 * 1024 * 1024

	// Flag bits from <linux/mman.h>: MAP_HUGETLB with an explicit log2
	// page-size encoded in bits 26-31.
	mapHugeShift = 26
	mapHuge2MB   = 21 << mapHugeShift
	mapHuge1GB   = 30 << mapHugeShift
)

// mmapHugePage attempts a huge-page-backed anonymous mapping of exactly
// size bytes using the given huge page size. It returns ok=false on any
// failure so the caller can fall back to a standard allocation, per
// spec.md §4.1 ("never an error").
func mmapHugePage(size, pageSize int) (data []byte, ok bool) {
	aligned := roundUp(size, pageSize)

	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_HUGETLB
	if pageSize == hugePageSize1GiB {
		flags |= mapHuge1GB
	} else {
		flags |= mapHuge2MB
	}

	mem, err := unix.Mmap(-1, 0, aligned, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, false
	}
	return mem[:size], true
}

func munmapHugePage(data []byte) error {
	// The mapping itself spans cap(data) bytes (rounded up to the huge
	// page size); Data is sliced down to the requested size but keeps
	// that capacity, so reconstruct the full region for munmap.
	full := data[:cap(data)]
	return unix.Munmap(full)
}
