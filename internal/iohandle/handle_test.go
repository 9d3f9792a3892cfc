package iohandle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sanwipe/wipecore/internal/bufferpool"
	"github.com/sanwipe/wipecore/internal/platformio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T, size int64) *Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())

	pio, err := platformio.OpenOptimized(path, false, 0)
	require.NoError(t, err)
	t.Cleanup(func() { pio.Close() })

	pool, err := bufferpool.New(4096, 512, 4, bufferpool.Standard)
	require.NoError(t, err)

	h, err := New(pio, pool, nil)
	require.NoError(t, err)
	return h
}

func TestSequentialWriteFillsExactSize(t *testing.T) {
	h := newTestHandle(t, 16384)
	err := h.SequentialWrite(0, 16384, func(buf []byte) error {
		for i := range buf {
			buf[i] = 0xAB
		}
		return nil
	}, nil)
	require.NoError(t, err)

	data, err := h.ReadRange(0, 16384)
	require.NoError(t, err)
	for _, b := range data {
		assert.Equal(t, byte(0xAB), b)
	}
}

func TestSequentialWriteHonorsInterrupt(t *testing.T) {
	h := newTestHandle(t, 16384)
	calls := 0
	err := h.SequentialWrite(0, 16384, func(buf []byte) error {
		return nil
	}, func() bool {
		calls++
		return calls > 1
	})
	assert.True(t, IsInterrupted(err))
}

func TestReadRangeClampsToDeviceSize(t *testing.T) {
	h := newTestHandle(t, 1024)
	data, err := h.ReadRange(900, 1000)
	require.NoError(t, err)
	assert.Len(t, data, 124)
}

func TestReadRangePastEndReturnsEmpty(t *testing.T) {
	h := newTestHandle(t, 1024)
	data, err := h.ReadRange(2048, 100)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMetricsThroughputZeroBeforeElapsed(t *testing.T) {
	m := newMetrics()
	snap := m.Snapshot()
	assert.Equal(t, 0.0, snap.ThroughputBPS)
}

func TestMetricsBaselineSetOnce(t *testing.T) {
	m := newMetrics()
	m.setBaselineOnce(100.0)
	m.setBaselineOnce(200.0)
	assert.Equal(t, 100.0, m.Snapshot().BaselineBPS)
}

func TestMetricsRecordAccumulates(t *testing.T) {
	m := newMetrics()
	m.record(4096, 0)
	m.record(4096, 0)
	snap := m.Snapshot()
	assert.EqualValues(t, 8192, snap.BytesProcessed)
	assert.EqualValues(t, 2, snap.OpCount)
}
