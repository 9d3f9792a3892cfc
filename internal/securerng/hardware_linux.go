//go:build linux

package securerng

import "golang.org/x/sys/unix"

// newHardwareSource probes getrandom(2) in non-blocking mode. If the
// kernel's CSPRNG isn't yet seeded (would block), the probe reports
// unavailable rather than stalling wipe startup.
func newHardwareSource() hardwareSource {
	probe := func(b []byte) (int, error) {
		return unix.GetRandom(b, unix.GRND_NONBLOCK)
	}
	test := make([]byte, 1)
	if _, err := probe(test); err != nil {
		return hardwareSource{probe: nil}
	}
	return hardwareSource{probe: probe}
}
