// Package wipecore is the wipe execution core: the aligned I/O engine,
// per-algorithm pattern pipeline, secure RNG, checkpoint/recovery
// coordinator, and post-wipe verification engine that together
// irreversibly sanitize a block device and produce the evidence a
// certificate is built from.
//
// Device discovery, certificate signing, CLI/config/privilege/logging
// setup are collaborator concerns, consumed here only as the
// interfaces below.
package wipecore

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/sanwipe/wipecore/internal/bufferpool"
	"github.com/sanwipe/wipecore/internal/checkpoint"
	"github.com/sanwipe/wipecore/internal/config"
	"github.com/sanwipe/wipecore/internal/iohandle"
	"github.com/sanwipe/wipecore/internal/logging"
	"github.com/sanwipe/wipecore/internal/pattern"
	"github.com/sanwipe/wipecore/internal/platformio"
	"github.com/sanwipe/wipecore/internal/recovery"
	"github.com/sanwipe/wipecore/internal/verify"
)

// Capabilities describes what a DeviceInventory collaborator has
// already determined about a device ahead of a wipe.
type Capabilities struct {
	SupportsTRIM        bool
	SupportsSecureErase bool
	HasHPA              bool
	HasDCO              bool
	IsFrozen            bool
}

// DeviceDescriptor is the immutable device description a DeviceInventory
// collaborator supplies for the duration of one wipe.
type DeviceDescriptor struct {
	Path              string
	LogicalSectorSize int
	SizeBytes         int64
	MediaClass        config.MediaClass
	Capabilities      Capabilities
}

// DeviceInventory is the out-of-scope collaborator responsible for
// device discovery, SMART/HPA-DCO/SED probing, and unfreeze strategies.
type DeviceInventory interface {
	Enumerate(ctx context.Context) ([]DeviceDescriptor, error)
	Probe(ctx context.Context, path string) (DeviceDescriptor, error)
	Unfreeze(ctx context.Context, path string) error
}

// TemperatureProbe reports a device's temperature. It is polled at the
// caller's cadence; the core never polls it on its own.
type TemperatureProbe interface {
	Read(path string) (celsius int, ok bool)
}

// ProgressSink renders wipe progress. Re-exported from internal/pattern
// so callers only need to import this package.
type ProgressSink = pattern.ProgressSink

// ProgressStatus is the terminal state a phase ends in.
type ProgressStatus = pattern.ProgressStatus

const (
	StatusRunning      = pattern.StatusRunning
	StatusCompleted    = pattern.StatusCompleted
	StatusFailed       = pattern.StatusFailed
	StatusInterrupted  = pattern.StatusInterrupted
)

// CertificateSink receives the finished WipeReport for signing and
// emission.
type CertificateSink interface {
	Submit(ctx context.Context, report WipeReport) error
}

// WipeReport is produced to collaborators on completion, or on a fatal
// failure (in which case Verification is the zero value and Errors
// holds the terminal error).
type WipeReport struct {
	Device          string
	Algorithm       string
	OperationID     string
	StartedAt       time.Time
	EndedAt         time.Time
	BytesWritten    int64
	PassesCompleted int
	Verification    verify.Report
	Errors          []error
	DegradedModes   []recovery.DegradedMode
}

// Options configures a single Wipe invocation. CheckpointStore,
// Device and Algorithm are required; everything else defaults
// sensibly.
type Options struct {
	Device    DeviceDescriptor
	Algorithm pattern.Algorithm

	IOConfig    *config.IOConfig // nil selects config.PresetFor(Device.MediaClass)
	VerifyLevel verify.Level

	CheckpointStore *checkpoint.Store
	Progress        ProgressSink

	RecoveryPolicy   *recovery.Policy // nil selects recovery.DefaultPolicy()
	AllowDegradation bool

	Unfreeze   func(device string) error
	HealAction recovery.HealAction

	OperationID string
}

// Wipe runs algorithm against the described device to completion (or
// until a fatal/interrupted outcome), checkpointing between passes, and
// then runs the verification engine over the wiped device. A wipe
// already in progress for (Device.Path, Algorithm) resumes automatically:
// the Pattern Pipeline skips passes the checkpoint already marks
// complete.
func Wipe(ctx context.Context, opts Options) (WipeReport, error) {
	report := WipeReport{
		Device:      opts.Device.Path,
		Algorithm:   opts.Algorithm.String(),
		OperationID: opts.OperationID,
		StartedAt:   time.Now(),
	}

	if opts.Device.Path == "" {
		return report, errors.New("wipecore: device path is required")
	}
	if opts.CheckpointStore == nil {
		return report, errors.New("wipecore: checkpoint store is required")
	}

	ioConfig := opts.IOConfig
	if ioConfig == nil {
		preset := config.PresetFor(opts.Device.MediaClass)
		ioConfig = &preset
	}
	if err := ioConfig.Validate(); err != nil {
		return report, errors.Wrap(err, "wipecore: invalid IOConfig")
	}

	alignment := opts.Device.LogicalSectorSize
	if alignment <= 0 {
		alignment = 512
	}

	pio, err := platformio.OpenOptimized(opts.Device.Path, ioConfig.UseDirectIO, alignment)
	if err != nil {
		return report, errors.Wrap(err, "wipecore: open device")
	}
	pool, err := bufferpool.New(int(ioConfig.MaxBufferSize), alignment, ioConfig.QueueDepth*2, bufferpool.Standard)
	if err != nil {
		pio.Close()
		return report, errors.Wrap(err, "wipecore: build buffer pool")
	}
	defer pool.Close()

	tuner := iohandle.NewTuner(float64(ioConfig.ThrottleThresholdC))
	handle, err := iohandle.New(pio, pool, tuner)
	if err != nil {
		pio.Close()
		return report, errors.Wrap(err, "wipecore: build io handle")
	}
	defer handle.Close() // closes pio too

	policy := recovery.DefaultPolicy()
	if opts.RecoveryPolicy != nil {
		policy = *opts.RecoveryPolicy
	}
	policy.AllowDegradation = opts.AllowDegradation

	degraded := recovery.NewDegradedModeManager()
	var selfHealer *recovery.SelfHealer
	if opts.HealAction != nil {
		selfHealer = recovery.NewSelfHealer(policy.RiskCeiling, opts.HealAction)
	}
	badSectors := recovery.NewBadSectorHandler(opts.Device.Path)
	altIO := recovery.NewAlternativeIO()

	coordinator := recovery.NewCoordinator(policy, recovery.Collaborators{
		Unfreeze:      opts.Unfreeze,
		SelfHeal:      selfHealer,
		BadSector:     badSectors,
		Degraded:      degraded,
		AlternativeIO: altIO,
		Reopen: func(method recovery.IOMethod) error {
			return handle.Reopen(platformOpenMethod(method))
		},
	})

	rng := newWipeRNG()

	pipeline := &pattern.Pipeline{
		Device:      opts.Device.Path,
		OperationID: opts.OperationID,
		Algorithm:   opts.Algorithm,
		Handle:      handle,
		Checkpoints: opts.CheckpointStore,
		Recovery:    coordinator,
		RNG:         rng.FillBytes,
		Progress:    opts.Progress,
	}

	log := logging.Default().WithDevice(opts.Device.Path)

	if runErr := pipeline.Run(ctx); runErr != nil {
		report.EndedAt = time.Now()
		report.Errors = append(report.Errors, runErr)
		report.DegradedModes = degraded.ActiveModes()
		log.Error("wipe terminated before completion", "error", runErr)
		return report, runErr
	}

	cp, loadErr := opts.CheckpointStore.Load(ctx, opts.Device.Path, opts.Algorithm.String())
	if loadErr == nil && cp != nil {
		report.BytesWritten = cp.BytesWritten
		report.PassesCompleted = cp.CurrentPass
	}

	if opts.Device.Capabilities.SupportsTRIM && !degraded.IsActive(recovery.SkipTRIM) {
		if trimErr := handle.Discard(0, handle.DeviceSize()); trimErr != nil {
			log.Warn("TRIM after wipe failed, continuing", "error", trimErr)
		}
	}

	finalKind := finalPassKind(opts.Algorithm)
	samples, sampleErr := sampleDevice(handle, opts.VerifyLevel, rng)
	if sampleErr != nil {
		report.Errors = append(report.Errors, sampleErr)
	}
	report.Verification = verify.Build(opts.VerifyLevel, samples, finalKind, badSectors.Count())
	report.DegradedModes = degraded.ActiveModes()
	report.EndedAt = time.Now()

	if deleteErr := opts.CheckpointStore.Delete(ctx, opts.Device.Path, opts.Algorithm.String()); deleteErr != nil {
		log.Warn("checkpoint cleanup failed after successful wipe", "error", deleteErr)
	}

	return report, nil
}

// Resume continues a previously interrupted wipe for (device, algorithm):
// it is a thin convenience over Wipe, since the Pattern Pipeline always
// consults the checkpoint store and resumes automatically. It exists as
// a separate, named entry point so callers (and the CLI's --resume flag)
// can express the intent explicitly and get an error if no checkpoint
// for this (device, algorithm) pair actually exists.
func Resume(ctx context.Context, opts Options) (WipeReport, error) {
	if opts.CheckpointStore == nil {
		return WipeReport{}, errors.New("wipecore: checkpoint store is required")
	}
	cp, err := opts.CheckpointStore.Load(ctx, opts.Device.Path, opts.Algorithm.String())
	if err != nil {
		return WipeReport{}, errors.Wrap(err, "wipecore: load checkpoint")
	}
	if cp == nil {
		return WipeReport{}, fmt.Errorf("wipecore: no checkpoint for %s/%s to resume", opts.Device.Path, opts.Algorithm)
	}
	if opts.OperationID == "" {
		opts.OperationID = cp.OperationID
	}
	return Wipe(ctx, opts)
}

// platformOpenMethod translates the Recovery Coordinator's I/O method
// vocabulary to the Platform I/O Engine's open strategy, keeping
// internal/recovery free of any platformio dependency.
func platformOpenMethod(m recovery.IOMethod) platformio.OpenMethod {
	switch m {
	case recovery.OptimizedDirect:
		return platformio.MethodDirect
	case recovery.Buffered:
		return platformio.MethodBuffered
	case recovery.MemoryMapped:
		return platformio.MethodMemoryMapped
	case recovery.Synchronous:
		return platformio.MethodSynchronous
	default:
		return platformio.MethodBuffered
	}
}

// finalPassKind classifies the last pass of an algorithm for the
// Verification Engine's recovery-risk scoring (spec.md §4.9): a zero
// fill reads as healthy at near-zero entropy, a random fill is only
// healthy at high entropy.
func finalPassKind(algo pattern.Algorithm) verify.FinalPassKind {
	switch algo {
	case pattern.Zero:
		return verify.FinalZero
	case pattern.Random, pattern.DoD, pattern.Gutmann:
		return verify.FinalRandom
	default:
		return verify.FinalOther
	}
}

// sampleDevice draws the sector samples the Verification Engine's level
// calls for (spec.md §4.9): L0 takes none, L1 samples ~100 sectors at
// random offsets, L2 samples at a fixed stride covering roughly 0.5% of
// the device, L3 reads the device back in full.
func sampleDevice(h *iohandle.Handle, level verify.Level, rng *wipeRNG) ([][]byte, error) {
	size := h.DeviceSize()
	if size == 0 || level == verify.L0 {
		return nil, nil
	}

	const sectorSize = 4096
	var samples [][]byte

	switch level {
	case verify.L1:
		const sampleCount = 100
		for i := 0; i < sampleCount; i++ {
			offset, err := rng.uniformOffset(size, sectorSize)
			if err != nil {
				return samples, err
			}
			data, err := h.ReadRange(offset, sectorSize)
			if err != nil {
				return samples, err
			}
			samples = append(samples, data)
		}

	case verify.L2:
		stride := int64(sectorSize) * 200 // one sector in every 200: ~0.5% coverage
		if stride < sectorSize {
			stride = sectorSize
		}
		for offset := int64(0); offset < size; offset += stride {
			data, err := h.ReadRange(offset, sectorSize)
			if err != nil {
				return samples, err
			}
			samples = append(samples, data)
		}

	case verify.L3:
		const chunk = 1 << 20
		for offset := int64(0); offset < size; offset += chunk {
			data, err := h.ReadRange(offset, chunk)
			if err != nil {
				return samples, err
			}
			samples = append(samples, data)
		}
	}

	return samples, nil
}
