package iohandle

import "time"

// Adjustment names which single tuning rule fired, for diagnostics.
type Adjustment int

const (
	NoAdjustment Adjustment = iota
	DoubledChunkSize
	ReducedQueueDepth
	IncreasedQueueDepth
)

// ThrottleAction is the outcome of evaluating the thermal throttle
// policy (spec.md §4.3) against a temperature reading.
type ThrottleAction int

const (
	ThrottleNone ThrottleAction = iota
	ThrottleSlow
	ThrottlePause
)

// ThrottleDecision carries the action and the parameters the caller
// needs to act on it.
type ThrottleDecision struct {
	Action ThrottleAction
	Factor float64       // for ThrottleSlow: sleep = bufferTime * (1/Factor - 1)
	Pause  time.Duration // for ThrottlePause: sleep this long, then recheck
}

// Tuner implements the adaptive tuning loop and thermal throttle policy
// from spec.md §4.3.
type Tuner struct {
	WarmupDuration  time.Duration
	ThrottleThresholdC float64
	warmupStart     time.Time
	warmupElapsed   bool

	lastAdjustment Adjustment
}

// NewTuner constructs a tuner with the spec's 10-second warmup and a
// caller-supplied throttle threshold.
func NewTuner(throttleThresholdC float64) *Tuner {
	return &Tuner{WarmupDuration: 10 * time.Second, ThrottleThresholdC: throttleThresholdC}
}

// Observe marks the passage of time toward the warmup window closing.
// The actual metrics snapshot is read fresh in ApplyTo.
func (t *Tuner) Observe(snap Snapshot) {
	if t.warmupStart.IsZero() {
		t.warmupStart = time.Now()
	}
	if !t.warmupElapsed && time.Since(t.warmupStart) >= t.WarmupDuration {
		t.warmupElapsed = true
	}
}

// ApplyTo evaluates the deterministic adjustment rules against h's
// current metrics and applies at most one adjustment, per spec.md
// §4.3. No-op until the warmup window has elapsed and a baseline is
// set.
func (t *Tuner) ApplyTo(h *Handle) Adjustment {
	if !t.warmupElapsed {
		return NoAdjustment
	}
	snap := h.Metrics.Snapshot()
	if !h.Metrics.baselineIsSet() {
		h.Metrics.setBaselineOnce(snap.ThroughputBPS)
		return NoAdjustment
	}
	if snap.BaselineBPS <= 0 {
		return NoAdjustment
	}

	maxChunk := h.pool.BufferSize()

	switch {
	case snap.ThroughputBPS < 0.8*snap.BaselineBPS && h.chunkSize < maxChunk:
		h.chunkSize *= 2
		if h.chunkSize > maxChunk {
			h.chunkSize = maxChunk
		}
		t.lastAdjustment = DoubledChunkSize
		return DoubledChunkSize

	case snap.AvgLatency > 100*time.Millisecond && h.queueDepth > 2:
		h.queueDepth = h.queueDepth - h.queueDepth/4
		if h.queueDepth < 2 {
			h.queueDepth = 2
		}
		t.lastAdjustment = ReducedQueueDepth
		return ReducedQueueDepth

	case iopsOf(snap) < 1000 && snap.AvgLatency < 10*time.Millisecond && h.queueDepth < 32:
		h.queueDepth += 2
		t.lastAdjustment = IncreasedQueueDepth
		return IncreasedQueueDepth
	}

	t.lastAdjustment = NoAdjustment
	return NoAdjustment
}

func iopsOf(snap Snapshot) float64 {
	if snap.Elapsed < time.Millisecond {
		return 0
	}
	return float64(snap.OpCount) / snap.Elapsed.Seconds()
}

// ThermalThrottle implements the throttle policy against a temperature
// reading; ok=false means no probe was available and no throttling
// applies.
func ThermalThrottle(tempC float64, ok bool, thresholdC float64) ThrottleDecision {
	if !ok || tempC <= thresholdC {
		return ThrottleDecision{Action: ThrottleNone}
	}
	excess := tempC - thresholdC
	if excess <= 5 {
		// excess ranges (0, 5] here, so factor ranges [0.5, 1.0); the 0.3
		// floor below is a safety net, not reachable at the current
		// threshold+5 Pause cutover.
		factor := 1 - excess/10
		if factor < 0.3 {
			factor = 0.3
		}
		if factor > 1.0 {
			factor = 1.0
		}
		return ThrottleDecision{Action: ThrottleSlow, Factor: factor}
	}
	pause := time.Duration(excess) * time.Second
	return ThrottleDecision{Action: ThrottlePause, Pause: pause}
}
