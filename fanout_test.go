package wipecore

import (
	"context"
	"testing"

	"github.com/sanwipe/wipecore/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWipeConcurrentlyRunsAllToCompletion(t *testing.T) {
	opts := make([]Options, 3)
	for i := range opts {
		store := testStore(t)
		opts[i] = Options{
			Device:          DeviceDescriptor{Path: testDeviceFile(t, 64 * 1024)},
			Algorithm:       pattern.Zero,
			IOConfig:        smallIOConfig(),
			CheckpointStore: store,
		}
	}

	reports, err := WipeConcurrently(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.Equal(t, 1, r.PassesCompleted)
		assert.Equal(t, int64(64*1024), r.BytesWritten)
	}
}

func TestWipeConcurrentlyPropagatesFirstError(t *testing.T) {
	goodStore := testStore(t)
	opts := []Options{
		{
			Device:          DeviceDescriptor{Path: testDeviceFile(t, 4096)},
			Algorithm:       pattern.Zero,
			IOConfig:        smallIOConfig(),
			CheckpointStore: goodStore,
		},
		{
			// missing CheckpointStore: Wipe must fail fast on this one.
			Device:    DeviceDescriptor{Path: testDeviceFile(t, 4096)},
			Algorithm: pattern.Zero,
			IOConfig:  smallIOConfig(),
		},
	}

	_, err := WipeConcurrently(context.Background(), opts)
	assert.Error(t, err)
}

func TestWipeRAIDMembersJoinsAllBeforeReturning(t *testing.T) {
	members := make([]Options, 2)
	for i := range members {
		members[i] = Options{
			Device:          DeviceDescriptor{Path: testDeviceFile(t, 32 * 1024)},
			Algorithm:       pattern.Random,
			IOConfig:        smallIOConfig(),
			CheckpointStore: testStore(t),
		}
	}

	reports, err := WipeRAIDMembers(context.Background(), members)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}
