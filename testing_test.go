package wipecore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMockDevice(128 * 1024)
	defer dev.Close()

	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = 0xAB
	}
	n, err := dev.WriteAt(buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	out := make([]byte, 4096)
	n, err = dev.ReadAt(out, 4096)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, buf, out)

	counts := dev.CallCounts()
	assert.Equal(t, 1, counts["read"])
	assert.Equal(t, 1, counts["write"])
}

func TestMockDeviceWriteBeyondEndFails(t *testing.T) {
	dev := NewMockDevice(4096)
	defer dev.Close()

	_, err := dev.WriteAt([]byte{1}, 4096)
	assert.Error(t, err)
	assert.True(t, IsKind(err, ErrKindInvalidParameters))
}

func TestMockDeviceReadPastEndReturnsEOFLikeZero(t *testing.T) {
	dev := NewMockDevice(4096)
	defer dev.Close()

	buf := make([]byte, 16)
	n, err := dev.ReadAt(buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMockDeviceDiscardZeroesRange(t *testing.T) {
	dev := NewMockDevice(4096)
	defer dev.Close()

	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = 0xFF
	}
	_, err := dev.WriteAt(buf, 0)
	require.NoError(t, err)

	require.NoError(t, dev.Discard(0, 4096))

	out := make([]byte, 4096)
	_, err = dev.ReadAt(out, 0)
	require.NoError(t, err)
	for _, b := range out {
		assert.Equal(t, byte(0x00), b)
	}
}

func TestMockDeviceClosedRejectsIO(t *testing.T) {
	dev := NewMockDevice(4096)
	require.NoError(t, dev.Close())
	assert.True(t, dev.IsClosed())

	_, err := dev.WriteAt([]byte{1}, 0)
	assert.Error(t, err)
	assert.True(t, IsKind(err, ErrKindDeviceNotFound))
}

func TestMockDeviceSyncTracksCalls(t *testing.T) {
	dev := NewMockDevice(4096)
	defer dev.Close()

	assert.False(t, dev.IsSynced())
	require.NoError(t, dev.Sync())
	assert.True(t, dev.IsSynced())
}

func TestMockDeviceInventoryProbeAndEnumerate(t *testing.T) {
	inv := NewMockDeviceInventory(
		DeviceDescriptor{Path: "/dev/fake0", SizeBytes: 1024},
		DeviceDescriptor{Path: "/dev/fake1", SizeBytes: 2048},
	)

	all, err := inv.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	d, err := inv.Probe(context.Background(), "/dev/fake0")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), d.SizeBytes)

	_, err = inv.Probe(context.Background(), "/dev/missing")
	assert.Error(t, err)

	require.NoError(t, inv.Unfreeze(context.Background(), "/dev/fake0"))
	assert.Equal(t, []string{"/dev/fake0"}, inv.UnfreezeCalls)
}
