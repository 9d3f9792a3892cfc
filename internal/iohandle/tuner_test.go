package iohandle

import (
	"testing"
	"time"

	"github.com/sanwipe/wipecore/internal/bufferpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTunerNoopBeforeWarmup(t *testing.T) {
	pool, err := bufferpool.New(4096, 512, 4, bufferpool.Standard)
	require.NoError(t, err)
	h := &Handle{pool: pool, Metrics: newMetrics(), chunkSize: 1024, queueDepth: 1}

	tuner := NewTuner(60)
	tuner.Observe(h.Metrics.Snapshot())
	adj := tuner.ApplyTo(h)
	assert.Equal(t, NoAdjustment, adj)
}

func TestTunerSetsBaselineOnceAfterWarmup(t *testing.T) {
	pool, err := bufferpool.New(4096, 512, 4, bufferpool.Standard)
	require.NoError(t, err)
	h := &Handle{pool: pool, Metrics: newMetrics(), chunkSize: 1024, queueDepth: 1}

	tuner := NewTuner(60)
	tuner.WarmupDuration = 0
	tuner.Observe(h.Metrics.Snapshot())
	assert.True(t, tuner.warmupElapsed)

	h.Metrics.record(1<<20, time.Millisecond)
	adj := tuner.ApplyTo(h)
	assert.Equal(t, NoAdjustment, adj)
	assert.True(t, h.Metrics.baselineIsSet())
}

func TestTunerDoublesChunkSizeOnLowThroughput(t *testing.T) {
	pool, err := bufferpool.New(8192, 512, 4, bufferpool.Standard)
	require.NoError(t, err)
	h := &Handle{pool: pool, Metrics: newMetrics(), chunkSize: 1024, queueDepth: 1}

	tuner := NewTuner(60)
	tuner.WarmupDuration = 0
	tuner.warmupElapsed = true
	h.Metrics.setBaselineOnce(1_000_000)

	// Simulate throughput well under 80% of baseline.
	time.Sleep(2 * time.Millisecond)
	h.Metrics.record(100, 5*time.Millisecond)

	adj := tuner.ApplyTo(h)
	assert.Equal(t, DoubledChunkSize, adj)
	assert.Equal(t, 2048, h.chunkSize)
}

func TestTunerCapsChunkSizeAtPoolMax(t *testing.T) {
	pool, err := bufferpool.New(2048, 512, 4, bufferpool.Standard)
	require.NoError(t, err)
	// queueDepth at its ceiling of 32 keeps the queue-depth rules quiet, so
	// only the doubling rule is under test.
	h := &Handle{pool: pool, Metrics: newMetrics(), chunkSize: 2048, queueDepth: 32}

	tuner := NewTuner(60)
	tuner.warmupElapsed = true
	h.Metrics.setBaselineOnce(1_000_000)

	adj := tuner.ApplyTo(h)
	assert.Equal(t, NoAdjustment, adj, "already at pool max, nothing to double into")
}

func TestTunerReducesQueueDepthOnHighLatency(t *testing.T) {
	pool, err := bufferpool.New(4096, 512, 4, bufferpool.Standard)
	require.NoError(t, err)
	h := &Handle{pool: pool, Metrics: newMetrics(), chunkSize: 4096, queueDepth: 8}

	tuner := NewTuner(60)
	tuner.warmupElapsed = true
	h.Metrics.setBaselineOnce(1_000_000)
	h.Metrics.record(4096, 150*time.Millisecond)

	adj := tuner.ApplyTo(h)
	assert.Equal(t, ReducedQueueDepth, adj)
	assert.Equal(t, 6, h.queueDepth)
}

func TestTunerIncreasesQueueDepthOnLowIOPS(t *testing.T) {
	pool, err := bufferpool.New(4096, 512, 4, bufferpool.Standard)
	require.NoError(t, err)
	h := &Handle{pool: pool, Metrics: newMetrics(), chunkSize: 4096, queueDepth: 4}

	tuner := NewTuner(60)
	tuner.warmupElapsed = true
	h.Metrics.setBaselineOnce(1_000_000)
	time.Sleep(2 * time.Millisecond)
	h.Metrics.record(4096, time.Millisecond)

	adj := tuner.ApplyTo(h)
	assert.Equal(t, IncreasedQueueDepth, adj)
	assert.Equal(t, 6, h.queueDepth)
}

func TestThermalThrottleNoProbe(t *testing.T) {
	d := ThermalThrottle(80, false, 60)
	assert.Equal(t, ThrottleNone, d.Action)
}

func TestThermalThrottleBelowThreshold(t *testing.T) {
	d := ThermalThrottle(50, true, 60)
	assert.Equal(t, ThrottleNone, d.Action)
}

func TestThermalThrottleSlowBand(t *testing.T) {
	d := ThermalThrottle(63, true, 60)
	assert.Equal(t, ThrottleSlow, d.Action)
	assert.InDelta(t, 0.7, d.Factor, 0.01)
}

// TestThermalThrottleSlowBandFloor checks the worst-case factor still
// inside the Slow band (excess == 5, the threshold+5 cutover to Pause):
// 1 - excess/10 bottoms out at 0.5 here, never reaching the 0.3 floor
// ThermalThrottle also clamps to, since the Pause band takes over for
// any greater excess.
func TestThermalThrottleSlowBandFloor(t *testing.T) {
	d := ThermalThrottle(65, true, 60)
	assert.Equal(t, ThrottleSlow, d.Action)
	assert.Equal(t, 0.5, d.Factor)
}

func TestThermalThrottlePauseBand(t *testing.T) {
	d := ThermalThrottle(75, true, 60)
	assert.Equal(t, ThrottlePause, d.Action)
	assert.Equal(t, 15*time.Second, d.Pause)
}
