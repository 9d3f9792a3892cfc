// Package config holds the pure-data tuning tables consumed by the wipe
// core: per-media-class IOConfig presets and default state-directory
// layout. No I/O, no flag parsing — those are collaborator concerns.
package config

import "fmt"

// MediaClass identifies the physical or logical nature of the target
// device. The core never infers this itself; it is supplied by the
// DeviceInventory collaborator on the DeviceDescriptor.
type MediaClass int

const (
	MediaUnknown MediaClass = iota
	MediaHDD
	MediaSSD
	MediaNVMe
	MediaSMR
	MediaOptane
	MediaHybrid
	MediaEMMC
	MediaUFS
	MediaRAID
	MediaUSB
)

func (m MediaClass) String() string {
	switch m {
	case MediaHDD:
		return "HDD"
	case MediaSSD:
		return "SSD"
	case MediaNVMe:
		return "NVMe"
	case MediaSMR:
		return "SMR"
	case MediaOptane:
		return "Optane"
	case MediaHybrid:
		return "Hybrid"
	case MediaEMMC:
		return "eMMC"
	case MediaUFS:
		return "UFS"
	case MediaRAID:
		return "RAID"
	case MediaUSB:
		return "USB"
	default:
		return "Unknown"
	}
}

// IOPattern hints the access pattern an algorithm pass will generate.
type IOPattern int

const (
	PatternSequential IOPattern = iota
	PatternRandom
	PatternMixed
)

// IOConfig is the tuning surface for the I/O handle and adaptive tuner.
type IOConfig struct {
	UseDirectIO        bool
	InitialBufferSize  int64
	MaxBufferSize      int64
	QueueDepth         int
	AdaptiveTuning     bool
	MaxTemperatureC    *int // nil = no hard ceiling
	ThrottleThresholdC int
	IOPatternHint      IOPattern
}

const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// Validate checks the structural invariants IOConfig must satisfy before
// it can be handed to the buffer pool / I/O handle.
func (c IOConfig) Validate() error {
	if c.InitialBufferSize <= 0 {
		return fmt.Errorf("config: initial_buffer_size must be positive")
	}
	if c.MaxBufferSize < c.InitialBufferSize {
		return fmt.Errorf("config: max_buffer_size (%d) must be >= initial_buffer_size (%d)", c.MaxBufferSize, c.InitialBufferSize)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("config: queue_depth must be >= 1")
	}
	return nil
}

// PresetFor returns the default IOConfig for a media class. Every class
// named by spec.md's media_class enum has an entry; classes the
// distilled spec names but doesn't size (SMR, Optane, Hybrid, eMMC, UFS,
// RAID, USB, Unknown) are filled in from the nearest sized class with
// class-appropriate adjustments (see SPEC_FULL.md §3).
func PresetFor(class MediaClass) IOConfig {
	threshold := 55 // conservative default throttle threshold; overridden by caller via IOConfig

	base := IOConfig{
		UseDirectIO:        true,
		AdaptiveTuning:     true,
		ThrottleThresholdC: threshold,
		IOPatternHint:      PatternSequential,
	}

	switch class {
	case MediaHDD:
		base.InitialBufferSize = 4 * MiB
		base.MaxBufferSize = 16 * MiB
		base.QueueDepth = 2
	case MediaSMR:
		// SMR zones are destroyed by non-sequential rewrites; force
		// sequential and use HDD-class buffering.
		base.InitialBufferSize = 4 * MiB
		base.MaxBufferSize = 16 * MiB
		base.QueueDepth = 2
		base.IOPatternHint = PatternSequential
	case MediaHybrid:
		base.InitialBufferSize = 4 * MiB
		base.MaxBufferSize = 16 * MiB
		base.QueueDepth = 4
	case MediaSSD:
		base.InitialBufferSize = 8 * MiB
		base.MaxBufferSize = 64 * MiB
		base.QueueDepth = 8
	case MediaEMMC, MediaUFS:
		base.InitialBufferSize = 8 * MiB
		base.MaxBufferSize = 32 * MiB
		base.QueueDepth = 8
	case MediaNVMe:
		base.InitialBufferSize = 16 * MiB
		base.MaxBufferSize = 128 * MiB
		base.QueueDepth = 32
	case MediaOptane:
		// Optane has no internal queueing benefit past modest depth;
		// NVMe-class buffer sizing, capped queue depth.
		base.InitialBufferSize = 16 * MiB
		base.MaxBufferSize = 128 * MiB
		base.QueueDepth = 8
	case MediaRAID:
		base.InitialBufferSize = 16 * MiB
		base.MaxBufferSize = 64 * MiB
		base.QueueDepth = 16
	case MediaUSB:
		base.InitialBufferSize = 1 * MiB
		base.MaxBufferSize = 4 * MiB
		base.QueueDepth = 1
		base.UseDirectIO = false // many USB bridges mishandle O_DIRECT
	default:
		base.InitialBufferSize = 4 * MiB
		base.MaxBufferSize = 16 * MiB
		base.QueueDepth = 2
		base.UseDirectIO = false
	}

	return base
}
