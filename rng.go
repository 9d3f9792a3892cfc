package wipecore

import (
	"encoding/binary"

	"github.com/sanwipe/wipecore/internal/securerng"
)

// wipeRNG adapts securerng.RNG with a sector-offset sampler for the
// Verification Engine's L1 random sampling, so both the pattern fill
// and the post-wipe sampling draw from the same CSPRNG instance rather
// than mixing in math/rand.
type wipeRNG struct {
	*securerng.RNG
}

// newWipeRNG wraps the process-wide Secure RNG singleton: concurrent
// wipes (multi-device, RAID member fan-out) share one instance rather
// than each seeding an independent DRBG.
func newWipeRNG() *wipeRNG {
	return &wipeRNG{RNG: securerng.Init()}
}

// uniformOffset draws a sector-aligned offset uniformly from [0, size).
func (w *wipeRNG) uniformOffset(size int64, sectorSize int64) (int64, error) {
	sectors := size / sectorSize
	if sectors <= 0 {
		return 0, nil
	}
	var b [8]byte
	if err := w.FillBytes(b[:]); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b[:])
	return int64(v%uint64(sectors)) * sectorSize, nil
}
