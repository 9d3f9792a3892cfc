package wipecore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sanwipe/wipecore/internal/checkpoint"
	"github.com/sanwipe/wipecore/internal/config"
	"github.com/sanwipe/wipecore/internal/pattern"
	"github.com/sanwipe/wipecore/internal/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeviceFile(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func testStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	s, err := checkpoint.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func smallIOConfig() *config.IOConfig {
	return &config.IOConfig{
		InitialBufferSize: 4096,
		MaxBufferSize:     8192,
		QueueDepth:        2,
	}
}

func TestWipeZeroAlgorithmSmallDevice(t *testing.T) {
	devicePath := testDeviceFile(t, 1<<20)
	store := testStore(t)

	opts := Options{
		Device:          DeviceDescriptor{Path: devicePath, LogicalSectorSize: 512},
		Algorithm:       pattern.Zero,
		VerifyLevel:     verify.L1,
		IOConfig:        smallIOConfig(),
		CheckpointStore: store,
	}

	report, err := Wipe(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PassesCompleted)
	assert.Equal(t, int64(1<<20), report.BytesWritten)
	assert.Equal(t, verify.L1, report.Verification.Level)
	assert.Empty(t, report.Errors)

	cp, err := store.Load(context.Background(), devicePath, "zero")
	require.NoError(t, err)
	assert.Nil(t, cp, "checkpoint must be deleted after a successful wipe")
}

func TestResumeFailsWithoutExistingCheckpoint(t *testing.T) {
	devicePath := testDeviceFile(t, 4096)
	store := testStore(t)

	_, err := Resume(context.Background(), Options{
		Device:          DeviceDescriptor{Path: devicePath},
		Algorithm:       pattern.Zero,
		IOConfig:        smallIOConfig(),
		CheckpointStore: store,
	})
	assert.Error(t, err)
}

func TestResumeContinuesFromExistingCheckpoint(t *testing.T) {
	devicePath := testDeviceFile(t, 3*4096)
	store := testStore(t)

	existing := &checkpoint.Checkpoint{
		ID: "fixed", DevicePath: devicePath, Algorithm: "dod",
		OperationID: "op-resume", TotalPasses: 3, TotalSize: 3 * 4096,
		CurrentPass: 2, BytesWritten: 2 * 3 * 4096,
	}
	require.NoError(t, store.Save(context.Background(), existing))

	report, err := Resume(context.Background(), Options{
		Device:          DeviceDescriptor{Path: devicePath},
		Algorithm:       pattern.DoD,
		VerifyLevel:     verify.L0,
		IOConfig:        smallIOConfig(),
		CheckpointStore: store,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.PassesCompleted)
}

func TestWipeRequiresDevicePath(t *testing.T) {
	store := testStore(t)
	_, err := Wipe(context.Background(), Options{
		Algorithm:       pattern.Zero,
		CheckpointStore: store,
	})
	assert.Error(t, err)
}

func TestWipeRequiresCheckpointStore(t *testing.T) {
	devicePath := testDeviceFile(t, 4096)
	_, err := Wipe(context.Background(), Options{
		Device:    DeviceDescriptor{Path: devicePath},
		Algorithm: pattern.Zero,
	})
	assert.Error(t, err)
}

func TestWipeRejectsInvalidIOConfig(t *testing.T) {
	devicePath := testDeviceFile(t, 4096)
	store := testStore(t)
	_, err := Wipe(context.Background(), Options{
		Device:          DeviceDescriptor{Path: devicePath},
		Algorithm:       pattern.Zero,
		CheckpointStore: store,
		IOConfig:        &config.IOConfig{InitialBufferSize: 0},
	})
	assert.Error(t, err)
}
