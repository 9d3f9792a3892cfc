// Package pattern implements the per-algorithm pass pipeline (spec.md
// §4.5, C5): Zero, Random, DoD 5220.22-M, and Gutmann, each expressed as
// an ordered list of passes that are either CSPRNG-filled or a fixed
// byte sequence cycled through the buffer.
package pattern

import "fmt"

// Algorithm identifies a supported wipe algorithm.
type Algorithm int

const (
	Zero Algorithm = iota
	Random
	DoD
	Gutmann
)

func (a Algorithm) String() string {
	switch a {
	case Zero:
		return "zero"
	case Random:
		return "random"
	case DoD:
		return "dod"
	case Gutmann:
		return "gutmann"
	default:
		return "unknown"
	}
}

// ParseAlgorithm maps a CLI/config string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "zero":
		return Zero, nil
	case "random":
		return Random, nil
	case "dod":
		return DoD, nil
	case "gutmann":
		return Gutmann, nil
	default:
		return 0, fmt.Errorf("pattern: unknown algorithm %q", s)
	}
}

// Pass describes one write pass. When Random is true the buffer is
// filled from the CSPRNG for every chunk; otherwise Bytes is cycled
// through the buffer (len(Bytes) == 1 for a constant fill, 3 for the
// magnetic-encoding-specific Gutmann sequences).
type Pass struct {
	Bytes  []byte
	Random bool
}

// fixed is a convenience constructor for a constant-or-cycled fill pass.
func fixed(b ...byte) Pass { return Pass{Bytes: append([]byte(nil), b...)} }

var randomPass = Pass{Random: true}

// Passes returns the ordered pass list for algorithm a.
func Passes(a Algorithm) []Pass {
	switch a {
	case Zero:
		return []Pass{fixed(0x00)}
	case Random:
		return []Pass{randomPass}
	case DoD:
		return []Pass{fixed(0x00), fixed(0xFF), randomPass}
	case Gutmann:
		return gutmannPasses()
	default:
		return nil
	}
}

// gutmannPasses builds the 35-pass table verbatim: passes 1-4 and 32-35
// are CSPRNG fills; 5-6 are single constant bytes; 7-9 and 26-31 are
// 3-byte magnetic-encoding sequences; 10-25 are single incrementing
// bytes from 0x00 through 0xFF in steps of 0x11.
//
// Pass 10 is an explicit 0x00, not 0x11: some external summaries of the
// Gutmann method begin the incrementing run at 0x11 and omit 0x00
// entirely, but the source table this was distilled from lists 0x00 as
// pass 10's value, and that's what's implemented here.
func gutmannPasses() []Pass {
	passes := make([]Pass, 0, 35)
	for i := 0; i < 4; i++ {
		passes = append(passes, randomPass)
	}
	passes = append(passes, fixed(0x55), fixed(0xAA))
	passes = append(passes,
		fixed(0x92, 0x49, 0x24),
		fixed(0x49, 0x24, 0x92),
		fixed(0x24, 0x92, 0x49),
	)
	for b := 0; b <= 0xFF; b += 0x11 {
		passes = append(passes, fixed(byte(b)))
	}
	passes = append(passes,
		fixed(0x92, 0x49, 0x24),
		fixed(0x49, 0x24, 0x92),
		fixed(0x24, 0x92, 0x49),
		fixed(0x6D, 0xB6, 0xDB),
		fixed(0xB6, 0xDB, 0x6D),
		fixed(0xDB, 0x6D, 0xB6),
	)
	for i := 0; i < 4; i++ {
		passes = append(passes, randomPass)
	}
	return passes
}

// Fill writes the pass's pattern into buf, drawing from rng when the
// pass is a CSPRNG fill. For fixed passes, the byte sequence is cycled
// to fill the entire buffer regardless of buf's length relative to
// len(Bytes).
func (p Pass) Fill(buf []byte, rng func([]byte) error) error {
	if p.Random {
		return rng(buf)
	}
	n := len(p.Bytes)
	if n == 0 {
		return fmt.Errorf("pattern: fixed pass has no bytes")
	}
	for i := range buf {
		buf[i] = p.Bytes[i%n]
	}
	return nil
}
