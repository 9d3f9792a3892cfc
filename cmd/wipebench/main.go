// Command wipebench benchmarks an algorithm's pattern passes against an
// in-memory device, with no real disk or root privilege required: it
// runs every pass of an algorithm against a wipecore.MockDevice, then
// prints throughput and a verification report. Useful for comparing
// algorithms' pass counts and checking pattern correctness in CI.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sanwipe/wipecore"
	"github.com/sanwipe/wipecore/internal/pattern"
	"github.com/sanwipe/wipecore/internal/securerng"
	"github.com/sanwipe/wipecore/internal/verify"
)

func main() {
	var (
		sizeStr   = flag.String("size", "64M", "size of the in-memory device (e.g., 64M, 1G)")
		algoStr   = flag.String("algorithm", "zero", "wipe algorithm: zero, random, dod, gutmann")
		chunkStr  = flag.String("chunk", "1M", "write chunk size")
		verifyStr = flag.String("verify", "l1", "verification level: l0, l1, l2, l3")
	)
	flag.Parse()

	size, err := parseSize(*sizeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wipebench: invalid -size: %v\n", err)
		os.Exit(2)
	}
	chunk, err := parseSize(*chunkStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wipebench: invalid -chunk: %v\n", err)
		os.Exit(2)
	}
	algo, err := pattern.ParseAlgorithm(*algoStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wipebench: %v\n", err)
		os.Exit(2)
	}
	level, err := parseVerifyLevel(*verifyStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wipebench: %v\n", err)
		os.Exit(2)
	}

	dev := wipecore.NewMockDevice(size)
	defer dev.Close()
	rng := securerng.New()

	fmt.Printf("algorithm=%s size=%s chunk=%s passes=%d\n", algo, *sizeStr, *chunkStr, len(pattern.Passes(algo)))

	started := time.Now()
	var bytesWritten int64
	for i, pass := range pattern.Passes(algo) {
		buf := make([]byte, chunk)
		for offset := int64(0); offset < size; offset += chunk {
			n := chunk
			if remaining := size - offset; n > remaining {
				n = remaining
			}
			if err := pass.Fill(buf[:n], rng.FillBytes); err != nil {
				fmt.Fprintf(os.Stderr, "wipebench: fill pass %d: %v\n", i+1, err)
				os.Exit(1)
			}
			if _, err := dev.WriteAt(buf[:n], offset); err != nil {
				fmt.Fprintf(os.Stderr, "wipebench: write pass %d: %v\n", i+1, err)
				os.Exit(1)
			}
			bytesWritten += n
		}
		if err := dev.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "wipebench: sync pass %d: %v\n", i+1, err)
			os.Exit(1)
		}
		fmt.Printf("  pass %d/%d complete\n", i+1, len(pattern.Passes(algo)))
	}
	elapsed := time.Since(started)

	samples := sampleMockDevice(dev, level)
	finalKind := verify.FinalOther
	switch algo {
	case pattern.Zero:
		finalKind = verify.FinalZero
	case pattern.Random, pattern.DoD, pattern.Gutmann:
		finalKind = verify.FinalRandom
	}
	report := verify.Build(level, samples, finalKind, 0)

	bps := float64(bytesWritten) / elapsed.Seconds()
	fmt.Printf("\nwrote %d bytes in %s (%.1f MiB/s)\n", bytesWritten, elapsed, bps/float64(wipecore.MiB))
	fmt.Printf("verification: %s entropy=%.3f risk=%s confidence=%.2f\n",
		report.Level, report.Entropy, report.RecoveryRisk, report.Confidence)
}

func sampleMockDevice(dev *wipecore.MockDevice, level verify.Level) [][]byte {
	size := dev.Size()
	if size == 0 || level == verify.L0 {
		return nil
	}
	const sectorSize = 4096
	var samples [][]byte

	readSector := func(offset int64) []byte {
		n := sectorSize
		if remaining := size - offset; n > remaining {
			n = remaining
		}
		buf := make([]byte, n)
		dev.ReadAt(buf, offset)
		return buf
	}

	switch level {
	case verify.L1:
		for i := int64(0); i < 100 && i*sectorSize < size; i++ {
			samples = append(samples, readSector(i*sectorSize))
		}
	case verify.L2:
		stride := size / 200
		if stride < sectorSize {
			stride = sectorSize
		}
		for offset := int64(0); offset < size; offset += stride {
			samples = append(samples, readSector(offset))
		}
	case verify.L3:
		const chunk = 1 << 20
		for offset := int64(0); offset < size; offset += chunk {
			n := int64(chunk)
			if remaining := size - offset; n > remaining {
				n = remaining
			}
			buf := make([]byte, n)
			dev.ReadAt(buf, offset)
			samples = append(samples, buf)
		}
	}
	return samples
}

func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)
	var multiplier int64 = 1
	var numStr string
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier, numStr = 1024, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier, numStr = 1024*1024, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier, numStr = 1024*1024*1024, strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}
	var num int64
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return 0, err
	}
	return num * multiplier, nil
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
