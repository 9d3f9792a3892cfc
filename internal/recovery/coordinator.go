package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/sanwipe/wipecore/internal/classify"
	"github.com/sanwipe/wipecore/internal/logging"
)

// OpContext carries the information the coordinator needs to classify
// and escalate a failure without reaching back into caller state.
type OpContext struct {
	Device    string
	Operation string
	Offset    int64
}

// Policy bounds how aggressively the coordinator retries and escalates.
type Policy struct {
	MaxAttempts       int
	Backoff           classify.Backoff
	Breaker           *classify.Breaker
	RiskCeiling       int
	AllowDegradation  bool
	RequireConfirmForUnsafe bool
}

// DefaultPolicy returns conservative defaults matching the spec's
// stated backoff parameters and a mid-range self-heal risk ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Backoff:     classify.DefaultBackoff(),
		Breaker:     classify.DefaultBreaker(),
		RiskCeiling: 5,
	}
}

// Collaborators are the external hooks the coordinator invokes when a
// classified error calls for mitigation beyond plain retry.
type Collaborators struct {
	Unfreeze  func(device string) error
	SelfHeal  *SelfHealer
	BadSector *BadSectorHandler
	Degraded  *DegradedModeManager

	// AlternativeIO and Reopen implement the spec's direct -> buffered ->
	// memory-mapped -> synchronous fallback ladder (spec.md §4.8). Reopen
	// actually swaps the caller's I/O method; AlternativeIO tracks which
	// one is currently sticky. Both nil disables the fallback.
	AlternativeIO *AlternativeIO
	Reopen        WriteFunc
}

// Coordinator executes an operation with the full recovery ladder:
// classify -> bad sector / frozen / device-gone mitigation -> backoff
// retry -> degraded-mode fallback -> structured failure.
type Coordinator struct {
	Policy        Policy
	Collaborators Collaborators
}

// NewCoordinator builds a coordinator with the given policy and
// collaborator hooks.
func NewCoordinator(policy Policy, collaborators Collaborators) *Coordinator {
	return &Coordinator{Policy: policy, Collaborators: collaborators}
}

// AttemptRecord is one entry in the attempt history attached to a
// terminal failure.
type AttemptRecord struct {
	Attempt int
	Kind    classify.Kind
	Err     error
}

// Failure is returned when ExecuteWithRecovery exhausts every
// mitigation and must propagate to the caller.
type Failure struct {
	OpContext OpContext
	History   []AttemptRecord
	Last      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("recovery: %s on %s exhausted after %d attempts: %v",
		f.OpContext.Operation, f.OpContext.Device, len(f.History), f.Last)
}

func (f *Failure) Unwrap() error { return f.Last }

// BadSectorSkipped is returned when a bad sector was classified,
// recorded, and deliberately not retried: the caller is expected to
// advance past Offset and continue the operation rather than treat this
// as a terminal failure (spec.md §4.8's "continue with sector skipped").
type BadSectorSkipped struct {
	OpContext OpContext
	Offset    int64
	Err       error
}

func (e *BadSectorSkipped) Error() string {
	return fmt.Sprintf("recovery: bad sector at offset %d on %s, skipping: %v",
		e.Offset, e.OpContext.Device, e.Err)
}

func (e *BadSectorSkipped) Unwrap() error { return e.Err }

// ExecuteWithRecovery runs f to completion or exhaustion, per spec.md
// §4.8's execution loop. ctx is only consulted for cancellation between
// attempts and during backoff sleeps — a caller's interrupt flag layered
// on top of context.Context.
func (c *Coordinator) ExecuteWithRecovery(ctx context.Context, opCtx OpContext, f func() error) error {
	var history []AttemptRecord
	log := logging.Default().WithDevice(opCtx.Device)

	if c.Policy.Breaker != nil && !c.Policy.Breaker.Allow(opCtx.Device, opCtx.Operation) {
		return &Failure{OpContext: opCtx, Last: fmt.Errorf("recovery: circuit breaker open for %s/%s", opCtx.Device, opCtx.Operation)}
	}

	maxAttempts := c.Policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f()
		if err == nil {
			if c.Policy.Breaker != nil {
				c.Policy.Breaker.RecordSuccess(opCtx.Device, opCtx.Operation)
			}
			return nil
		}

		classified := classify.Classify(err, opCtx.Offset)
		history = append(history, AttemptRecord{Attempt: attempt, Kind: classified.Kind, Err: err})
		if c.Policy.Breaker != nil {
			c.Policy.Breaker.RecordFailure(opCtx.Device, opCtx.Operation)
		}

		if classified.Fatal {
			return &Failure{OpContext: opCtx, History: history, Last: classified}
		}

		switch classified.Kind {
		case classify.BadSector:
			if c.Collaborators.BadSector != nil {
				if recErr := c.Collaborators.BadSector.Record(classified.Offset, classified.Error()); recErr != nil {
					return &Failure{OpContext: opCtx, History: history, Last: recErr}
				}
			}
			log.Warn("bad sector recorded, skipping sector", "offset", classified.Offset)
			return &BadSectorSkipped{OpContext: opCtx, Offset: classified.Offset, Err: classified}

		case classify.Frozen:
			if c.Collaborators.Unfreeze == nil {
				return &Failure{OpContext: opCtx, History: history, Last: classified}
			}
			if mitErr := c.Collaborators.Unfreeze(opCtx.Device); mitErr != nil {
				return &Failure{OpContext: opCtx, History: history, Last: mitErr}
			}
			continue

		case classify.DeviceGone:
			if c.Collaborators.SelfHeal == nil {
				return &Failure{OpContext: opCtx, History: history, Last: classified}
			}
			if _, healErr := c.Collaborators.SelfHeal.Heal(opCtx.Device); healErr != nil {
				return &Failure{OpContext: opCtx, History: history, Last: healErr}
			}
			continue

		case classify.Transient, classify.Unknown:
			if attempt >= 1 && c.Collaborators.AlternativeIO != nil && c.Collaborators.Reopen != nil {
				if method, altErr := c.Collaborators.AlternativeIO.Write(c.Collaborators.Reopen); altErr == nil {
					log.Warn("switched I/O method after repeated failure", "method", method.String())
					continue
				}
			}
			if attempt == maxAttempts-1 {
				break
			}
			delay := c.Policy.Backoff.Delay(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
	}

	if c.Policy.AllowDegradation && c.Collaborators.Degraded != nil {
		last := history[len(history)-1]
		hint := classify.Classify(last.Err, opCtx.Offset).DegradeHint
		if mode, ok := degradeModeForHint(hint); ok {
			if !mode.IsComplianceSafe() && c.Policy.RequireConfirmForUnsafe && !c.Collaborators.Degraded.UserConfirmed() {
				return &Failure{OpContext: opCtx, History: history, Last: fmt.Errorf("recovery: degraded mode %s requires confirmation", mode)}
			}
			c.Collaborators.Degraded.Enable(mode)
			if err := f(); err == nil {
				return nil
			}
		}
	}

	return &Failure{OpContext: opCtx, History: history, Last: history[len(history)-1].Err}
}

func degradeModeForHint(hint classify.DegradeHint) (DegradedMode, bool) {
	switch hint {
	case classify.HintTolerateBadSector:
		return TolerateBadSectors, true
	case classify.HintSlowerIO:
		return SlowerIO, true
	default:
		return 0, false
	}
}
