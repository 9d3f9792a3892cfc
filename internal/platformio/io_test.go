package platformio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(1<<20))
	require.NoError(t, f.Close())

	h, err := OpenOptimized(path, false, 512)
	require.NoError(t, err)
	defer h.Close()

	data := []byte("hello-wipe-core")
	n, err := h.Pwrite(data, 4096)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	require.NoError(t, h.SyncData())

	buf := make([]byte, len(data))
	n, err = h.Pread(buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)
}

func TestSizeReportsFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(2<<20))
	require.NoError(t, f.Close())

	h, err := OpenOptimized(path, false, 512)
	require.NoError(t, err)
	defer h.Close()

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), size)
}

func TestAlignmentErrorOnMisalignedDirectIO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(1<<20))
	require.NoError(t, f.Close())

	h := &Handle{f: nil, path: path, directIO: true, alignment: 512}
	err = h.checkAlignment(100, 512)
	var alignErr *AlignmentError
	assert.ErrorAs(t, err, &alignErr)
}

func TestPwritevPreadv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(1<<20))
	require.NoError(t, f.Close())

	h, err := OpenOptimized(path, false, 512)
	require.NoError(t, err)
	defer h.Close()

	parts := [][]byte{[]byte("aaaa"), []byte("bbbb")}
	n, err := h.Pwritev(parts, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	bufs := [][]byte{make([]byte, 4), make([]byte, 4)}
	_, err = h.Preadv(bufs, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaa"), bufs[0])
	assert.Equal(t, []byte("bbbb"), bufs[1])
}
