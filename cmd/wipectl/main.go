// Command wipectl drives a single-device wipe from the command line:
// parse flags into an Options, run wipecore.Wipe (or Resume), print
// progress, and report the final WipeReport.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sanwipe/wipecore"
	"github.com/sanwipe/wipecore/internal/checkpoint"
	"github.com/sanwipe/wipecore/internal/config"
	"github.com/sanwipe/wipecore/internal/logging"
	"github.com/sanwipe/wipecore/internal/pattern"
	"github.com/sanwipe/wipecore/internal/verify"
)

func main() {
	var (
		device      = flag.String("device", "", "path to the target block device or image")
		algoStr     = flag.String("algorithm", "zero", "wipe algorithm: zero, random, dod, gutmann")
		mediaStr    = flag.String("media", "unknown", "media class: hdd, ssd, nvme, smr, optane, hybrid, emmc, ufs, raid, usb")
		verifyStr   = flag.String("verify", "l1", "verification level: l0, l1, l2, l3")
		stateDir    = flag.String("state-dir", "/var/lib/wipecore", "checkpoint/log state directory")
		resume      = flag.Bool("resume", false, "resume a previously interrupted wipe instead of starting fresh")
		allowDegrad = flag.Bool("allow-degraded", false, "permit degraded-mode fallbacks that may reduce sanitization confidence")
		verbose     = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *device == "" {
		fmt.Fprintln(os.Stderr, "wipectl: -device is required")
		os.Exit(2)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	algo, err := pattern.ParseAlgorithm(*algoStr)
	if err != nil {
		logger.Error("invalid algorithm", "value", *algoStr, "error", err)
		os.Exit(2)
	}
	media := parseMediaClass(*mediaStr)
	verifyLevel, err := parseVerifyLevel(*verifyStr)
	if err != nil {
		logger.Error("invalid verify level", "value", *verifyStr, "error", err)
		os.Exit(2)
	}

	if err := os.MkdirAll(*stateDir, 0o700); err != nil {
		logger.Error("failed to create state directory", "dir", *stateDir, "error", err)
		os.Exit(1)
	}
	store, err := checkpoint.Open(config.DefaultCheckpointPath(*stateDir))
	if err != nil {
		logger.Error("failed to open checkpoint store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	sink := &consoleProgress{algorithm: algo.String()}

	opts := wipecore.Options{
		Device: wipecore.DeviceDescriptor{
			Path:       *device,
			MediaClass: media,
		},
		Algorithm:        algo,
		VerifyLevel:      verifyLevel,
		CheckpointStore:  store,
		Progress:         sink,
		AllowDegradation: *allowDegrad,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, finishing current buffer and checkpointing")
		cancel()
	}()

	run := wipecore.Wipe
	if *resume {
		run = wipecore.Resume
	}

	started := time.Now()
	report, err := run(ctx, opts)
	if err != nil {
		logger.Error("wipe did not complete", "error", err, "elapsed", time.Since(started))
		os.Exit(1)
	}

	fmt.Printf("\nwipe complete: %s\n", report.Device)
	fmt.Printf("  algorithm:        %s\n", report.Algorithm)
	fmt.Printf("  passes completed: %d\n", report.PassesCompleted)
	fmt.Printf("  bytes written:    %d\n", report.BytesWritten)
	fmt.Printf("  verification:     %s (risk: %s)\n", report.Verification.Level, report.Verification.RecoveryRisk)
	fmt.Printf("  elapsed:          %s\n", report.EndedAt.Sub(report.StartedAt))
	if len(report.DegradedModes) > 0 {
		fmt.Printf("  degraded modes:   %v\n", report.DegradedModes)
	}
}

func parseMediaClass(s string) config.MediaClass {
	switch strings.ToLower(s) {
	case "hdd":
		return config.MediaHDD
	case "ssd":
		return config.MediaSSD
	case "nvme":
		return config.MediaNVMe
	case "smr":
		return config.MediaSMR
	case "optane":
		return config.MediaOptane
	case "hybrid":
		return config.MediaHybrid
	case "emmc":
		return config.MediaEMMC
	case "ufs":
		return config.MediaUFS
	case "raid":
		return config.MediaRAID
	case "usb":
		return config.MediaUSB
	default:
		return config.MediaUnknown
	}
}

func parseVerifyLevel(s string) (verify.Level, error) {
	switch strings.ToLower(s) {
	case "l0", "none":
		return verify.L0, nil
	case "l1":
		return verify.L1, nil
	case "l2":
		return verify.L2, nil
	case "l3", "full":
		return verify.L3, nil
	default:
		return verify.L0, fmt.Errorf("unknown verify level %q", s)
	}
}

// consoleProgress renders BeginPhase/Update/EndPhase events as a single
// overwritten console line.
type consoleProgress struct {
	algorithm string
	phase     string
}

func (c *consoleProgress) BeginPhase(name string) {
	c.phase = name
	fmt.Printf("\n%s\n", name)
}

func (c *consoleProgress) Update(done, total int64) {
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	fmt.Printf("\r  %s: %.1f%% (%d/%d bytes)", c.phase, pct, done, total)
}

func (c *consoleProgress) EndPhase(status wipecore.ProgressStatus) {
	fmt.Printf("\r  %s: %s%s\n", c.phase, status, strings.Repeat(" ", 20))
}
