package pattern

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sanwipe/wipecore/internal/checkpoint"
	"github.com/sanwipe/wipecore/internal/iohandle"
	"github.com/sanwipe/wipecore/internal/logging"
	"github.com/sanwipe/wipecore/internal/recovery"
)

// ProgressStatus is the terminal state a phase ends in, reported to the
// Progress Sink.
type ProgressStatus int

const (
	StatusRunning ProgressStatus = iota
	StatusCompleted
	StatusFailed
	StatusInterrupted
)

func (s ProgressStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// ProgressSink is the collaborator the pipeline reports wipe progress
// to; CLI/UI layers implement it.
type ProgressSink interface {
	BeginPhase(name string)
	Update(bytesDone, bytesTotal int64)
	EndPhase(status ProgressStatus)
}

// NoopProgressSink discards all progress events, for callers (tests,
// benchmarks) that don't care.
type NoopProgressSink struct{}

func (NoopProgressSink) BeginPhase(string)               {}
func (NoopProgressSink) Update(int64, int64)              {}
func (NoopProgressSink) EndPhase(ProgressStatus)          {}

// RNGFiller matches securerng.RNG.FillBytes without importing the
// concrete type, so tests can substitute a deterministic source.
type RNGFiller func(buf []byte) error

// Pipeline drives one algorithm's passes against a device, wiring
// together the I/O handle, checkpoint store, recovery coordinator and
// RNG per spec.md §4.5's per-pass protocol.
type Pipeline struct {
	Device      string
	OperationID string
	Algorithm   Algorithm

	Handle      *iohandle.Handle
	Checkpoints *checkpoint.Store
	Recovery    *recovery.Coordinator
	RNG         RNGFiller
	Progress    ProgressSink
}

// Run executes every not-yet-complete pass for the configured
// algorithm, checkpointing after each, and returns the final error (if
// any); the up-to-date checkpoint is left in the checkpoint store.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.Progress == nil {
		p.Progress = NoopProgressSink{}
	}

	passes := Passes(p.Algorithm)
	if len(passes) == 0 {
		return fmt.Errorf("pattern: algorithm %s has no passes", p.Algorithm)
	}

	deviceSize := p.Handle.DeviceSize()
	totalBytes := int64(len(passes)) * deviceSize

	cp, err := p.loadOrCreate(ctx, deviceSize, len(passes))
	if err != nil {
		return err
	}

	log := logging.Default().WithDevice(p.Device)

	for i, pass := range passes {
		if i < cp.CurrentPass {
			continue // 1: already complete per checkpoint, skip
		}

		phaseName := fmt.Sprintf("pass %d/%d (%s)", i+1, len(passes), p.Algorithm)
		p.Progress.BeginPhase(phaseName) // 2
		log.Info("starting pass", "pass", i+1, "of", len(passes), "algorithm", p.Algorithm.String())

		fill := func(buf []byte) error {
			return pass.Fill(buf, p.RNG)
		}

		offset := int64(0)
		if i == cp.CurrentPass {
			offset = cp.PassOffset // 3: resume mid-pass from the last checkpointed offset
		}

		lastSaveAt := time.Now()
		lastSaveOffset := offset

		passErr := p.runPass(ctx, cp, i, deviceSize, totalBytes, &offset, fill, &lastSaveAt, &lastSaveOffset, log)

		if passErr != nil {
			if ctx.Err() != nil {
				p.Progress.EndPhase(StatusInterrupted)
				cp.PassOffset = offset
				p.saveProgress(cp, i, int64(i)*deviceSize+offset, "interrupted")
				return ctx.Err()
			}
			p.Progress.EndPhase(StatusFailed)
			log.Error("pass failed", "pass", i+1, "error", passErr)
			cp.PassOffset = offset
			p.saveProgress(cp, i, int64(i)*deviceSize+offset, passErr.Error())
			return passErr
		}

		if err := p.Handle.Sync(); err != nil { // 6
			p.Progress.EndPhase(StatusFailed)
			cp.PassOffset = offset
			p.saveProgress(cp, i, int64(i)*deviceSize+offset, err.Error())
			return err
		}

		cp.CurrentPass = i + 1
		cp.PassOffset = 0
		cp.BytesWritten = int64(cp.CurrentPass) * deviceSize
		if err := p.Checkpoints.Save(ctx, cp); err != nil {
			log.Warn("checkpoint save failed, continuing", "error", err)
		}

		p.Progress.Update(int64(cp.CurrentPass)*deviceSize, totalBytes)
		p.Progress.EndPhase(StatusCompleted)
	}

	return nil
}

// runPass drives one pass chunk by chunk starting at *offset, wrapping
// each chunk's write in its own Recovery Coordinator retry (spec.md
// §4.5, §4.8): a bad sector costs only that chunk, not the pass, and a
// transient error resumes from the exact offset it failed at rather
// than restarting the pass. Progress is checkpointed at the spec's
// byte/time cadence (checkpoint.ShouldSave) in addition to the
// pass-boundary save the caller performs once runPass returns cleanly.
func (p *Pipeline) runPass(
	ctx context.Context,
	cp *checkpoint.Checkpoint,
	passIndex int,
	deviceSize, totalBytes int64,
	offset *int64,
	fill func(buf []byte) error,
	lastSaveAt *time.Time,
	lastSaveOffset *int64,
	log *logging.Logger,
) error {
	for *offset < deviceSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		chunkSize := p.Handle.ChunkSize()
		if remaining := deviceSize - *offset; remaining < int64(chunkSize) {
			chunkSize = int(remaining)
		}

		chunkOffset := *offset
		opCtx := recovery.OpContext{Device: p.Device, Operation: "sequential_write", Offset: chunkOffset}
		writeErr := p.Recovery.ExecuteWithRecovery(ctx, opCtx, func() error {
			_, err := p.Handle.WriteChunk(chunkOffset, chunkSize, fill)
			return err
		})

		var skipped *recovery.BadSectorSkipped
		switch {
		case writeErr == nil:
			*offset += int64(chunkSize)
		case errors.As(writeErr, &skipped):
			log.Warn("skipping bad sector, continuing pass", "pass", passIndex+1, "offset", skipped.Offset)
			*offset += int64(chunkSize)
		default:
			return writeErr
		}

		cp.PassOffset = *offset
		deltaBytes := *offset - *lastSaveOffset
		if checkpoint.ShouldSave(deltaBytes, checkpoint.DefaultSaveBytesThreshold, time.Since(*lastSaveAt), checkpoint.DefaultSaveInterval) {
			cp.BytesWritten = int64(passIndex)*deviceSize + *offset
			if err := p.Checkpoints.Save(ctx, cp); err != nil {
				log.Warn("mid-pass checkpoint save failed, continuing", "error", err)
			}
			*lastSaveAt = time.Now()
			*lastSaveOffset = *offset
		}

		p.Progress.Update(int64(passIndex)*deviceSize+*offset, totalBytes)
	}
	return nil
}

// loadOrCreate returns the existing checkpoint for (device, algorithm)
// if one is already in progress, or a fresh record otherwise.
func (p *Pipeline) loadOrCreate(ctx context.Context, deviceSize int64, totalPasses int) (*checkpoint.Checkpoint, error) {
	algoName := p.Algorithm.String()
	existing, err := p.Checkpoints.Load(ctx, p.Device, algoName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	opID := p.OperationID
	if opID == "" {
		opID = uuid.NewString()
	}
	cp := &checkpoint.Checkpoint{
		ID:          uuid.NewString(),
		DevicePath:  p.Device,
		Algorithm:   algoName,
		OperationID: opID,
		TotalPasses: totalPasses,
		TotalSize:   deviceSize,
	}
	if err := p.Checkpoints.Save(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// saveProgress persists a best-effort checkpoint on the failure path,
// using its own short-lived context so a canceled or expired caller
// context can't suppress the save.
func (p *Pipeline) saveProgress(cp *checkpoint.Checkpoint, currentPass int, bytesWritten int64, reason string) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cp.CurrentPass = currentPass
	cp.BytesWritten = bytesWritten
	cp.ErrorCount++
	cp.LastError = reason
	_ = p.Checkpoints.Save(saveCtx, cp)
}
