package securerng

// This file backs the continuous RNG self-test invoked from FillBytes.
// It is deliberately named continuoustest.go rather than
// continuous_test.go: the latter suffix is reserved by the Go toolchain
// for test files and would be excluded from normal builds, silently
// disabling the self-test in production binaries.

// selfTestVectorLen is the block size used by exercise/diagnostic
// callers that want to probe the continuous test without going through
// FillBytes (e.g. a startup health check before the first real wipe
// pass is issued).
const selfTestVectorLen = 32

// SelfTest draws two consecutive blocks from the DRBG and confirms the
// continuous test accepts them as distinct, without mutating the
// caller-visible byte-accounting counters used for auto-reseed
// scheduling. It's intended for a one-shot startup diagnostic, not for
// steady-state use.
func (r *RNG) SelfTest() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.drbg.generate(selfTestVectorLen)
	if !r.continuousTestLocked(a) {
		return false
	}
	b := r.drbg.generate(selfTestVectorLen)
	return r.continuousTestLocked(b)
}
