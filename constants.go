package wipecore

import "github.com/sanwipe/wipecore/internal/config"

// Re-exported byte-size constants and default state-directory path
// helpers, so callers configuring Options don't need to import
// internal/config directly.
const (
	KiB = config.KiB
	MiB = config.MiB
	GiB = config.GiB
)

// DefaultCheckpointPath and DefaultBadSectorLogPath return the default
// on-disk locations for the checkpoint store and bad-sector log under
// a caller-chosen state/log directory.
var (
	DefaultCheckpointPath   = config.DefaultCheckpointPath
	DefaultBadSectorLogPath = config.DefaultBadSectorLogPath
)
