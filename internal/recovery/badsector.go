// Package recovery implements the Recovery Coordinator (spec.md §4.8,
// C8): the execution loop that turns a raw, failure-prone operation
// into one that tolerates transient faults, bad sectors, vanished
// devices, and security-frozen drives, escalating to degraded modes
// only when retry is exhausted.
package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxBadSectors is the default ceiling: 10000 offsets.
// WithMaxBadSectors replaces it with another absolute count; no ceiling
// relative to device size is applied.
const DefaultMaxBadSectors = 10000

// BadSectorReport summarizes a handler's accumulated state.
type BadSectorReport struct {
	DevicePath       string
	TotalBadSectors  int
	MaxBadSectors    int
	Percentage       float64
	BadSectorOffsets []int64
	LogFile          string
}

// IsDeviceFailing matches the spec's "drive-failing" signal: at least
// half the configured ceiling has already been hit, or more than 1000
// bad sectors have been recorded.
func (r BadSectorReport) IsDeviceFailing() bool {
	return r.Percentage >= 50.0 || r.TotalBadSectors > 1000
}

// Format renders a human-readable report, truncated past 100 offsets.
func (r BadSectorReport) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bad Sector Report for %s\n", r.DevicePath)
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Total bad sectors: %d\n", r.TotalBadSectors)
	fmt.Fprintf(&b, "Maximum allowed: %d\n", r.MaxBadSectors)
	fmt.Fprintf(&b, "Percentage: %.2f%%\n", r.Percentage)
	if r.LogFile != "" {
		fmt.Fprintf(&b, "Log file: %s\n", r.LogFile)
	}
	if len(r.BadSectorOffsets) > 0 {
		b.WriteString("\nBad sector offsets:\n")
		for i, off := range r.BadSectorOffsets {
			if i >= 100 {
				fmt.Fprintf(&b, "  ... and %d more\n", len(r.BadSectorOffsets)-100)
				break
			}
			fmt.Fprintf(&b, "  %d: %d\n", i+1, off)
		}
	}
	return b.String()
}

// BadSectorHandler records offending offsets in memory and appends each
// one to a durable log, per spec.md §6's "append-only text file, one
// line per event" contract.
type BadSectorHandler struct {
	mu         sync.Mutex
	devicePath string
	offsets    map[int64]struct{}
	maxBad     int
	logFile    string
}

// NewBadSectorHandler constructs a handler for devicePath with the
// spec's default ceiling; use WithMaxBadSectors/WithLogFile to
// customize.
func NewBadSectorHandler(devicePath string) *BadSectorHandler {
	return &BadSectorHandler{
		devicePath: devicePath,
		offsets:    make(map[int64]struct{}),
		maxBad:     DefaultMaxBadSectors,
	}
}

func (h *BadSectorHandler) WithMaxBadSectors(max int) *BadSectorHandler {
	h.maxBad = max
	return h
}

func (h *BadSectorHandler) WithLogFile(path string) *BadSectorHandler {
	h.logFile = path
	return h
}

// DefaultLogFile builds the spec's default location:
// <log_dir>/bad_sectors_<sanitized_path>.log.
func DefaultLogFile(logDir, devicePath string) string {
	sanitized := strings.NewReplacer("/", "_", ".", "_").Replace(devicePath)
	return filepath.Join(logDir, fmt.Sprintf("bad_sectors_%s.log", sanitized))
}

// Record records a bad sector at offset with a free-text reason. It
// returns an error once the running count exceeds MaxBadSectors —
// the caller should treat this as a signal the device is failing and
// abort the wipe.
func (h *BadSectorHandler) Record(offset int64, reason string) error {
	h.mu.Lock()
	h.offsets[offset] = struct{}{}
	count := len(h.offsets)
	logFile := h.logFile
	devicePath := h.devicePath
	maxBad := h.maxBad
	h.mu.Unlock()

	if logFile != "" {
		if err := appendBadSectorLog(logFile, devicePath, offset, reason); err != nil {
			return err
		}
	}

	if count > maxBad {
		return fmt.Errorf("recovery: exceeded maximum bad sectors (%d > %d), drive may be failing", count, maxBad)
	}
	return nil
}

func appendBadSectorLog(logPath, devicePath string, offset int64, reason string) error {
	if dir := filepath.Dir(logPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("recovery: create bad sector log directory: %w", err)
		}
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("recovery: open bad sector log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s | Device: %s | Sector: %d | Reason: %s\n",
		time.Now().UTC().Format(time.RFC3339), devicePath, offset, reason)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("recovery: write bad sector log: %w", err)
	}
	return nil
}

// IsBadSector reports whether offset has already been recorded.
func (h *BadSectorHandler) IsBadSector(offset int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.offsets[offset]
	return ok
}

// Count returns the number of distinct bad sectors recorded.
func (h *BadSectorHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.offsets)
}

// ShouldAbort reports whether the recorded count exceeds the ceiling.
func (h *BadSectorHandler) ShouldAbort() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.offsets) > h.maxBad
}

// Report produces a BadSectorReport snapshot, offsets sorted ascending.
func (h *BadSectorHandler) Report() BadSectorReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	offsets := make([]int64, 0, len(h.offsets))
	for off := range h.offsets {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	pct := 0.0
	if h.maxBad > 0 {
		pct = float64(len(offsets)) / float64(h.maxBad) * 100.0
	}

	return BadSectorReport{
		DevicePath:       h.devicePath,
		TotalBadSectors:  len(offsets),
		MaxBadSectors:    h.maxBad,
		Percentage:       pct,
		BadSectorOffsets: offsets,
		LogFile:          h.logFile,
	}
}
