package securerng

import (
	"crypto/sha256"
	"errors"
)

// ErrSourceUnavailable is returned by an EntropySource when it cannot
// currently supply bytes.
var ErrSourceUnavailable = errors.New("securerng: entropy source unavailable")

// entropyPool mixes contributions from multiple sources via a
// cryptographic compression function (SHA-256), per spec.md §4.4. State
// is never exposed directly — only consumed as DRBG seed material.
type entropyPool struct {
	state [sha256.Size]byte
}

func newEntropyPool() *entropyPool {
	return &entropyPool{}
}

// mix folds data into the pool state: state' = SHA256(state || data).
func (p *entropyPool) mix(data []byte) {
	h := sha256.New()
	h.Write(p.state[:])
	h.Write(data)
	copy(p.state[:], h.Sum(nil))
}

// extract returns the current pool state as seed material and advances
// the state (so repeated extraction never yields the same seed twice).
func (p *entropyPool) extract() []byte {
	out := make([]byte, sha256.Size)
	copy(out, p.state[:])
	p.mix([]byte("extract")) // ratchet forward
	return out
}

// seedFromSources draws from each available source (ranked preference:
// hardware, system, jitter) and mixes all contributions into the pool.
// Returns the blended quality estimate actually achieved this round.
func (p *entropyPool) seedFromSources(sources []EntropySource, bytesPerSource int) float64 {
	var totalWeight, weighted float64
	for _, s := range sources {
		if !s.Available() {
			continue
		}
		buf := make([]byte, bytesPerSource)
		n, err := s.Read(buf)
		if err != nil || n == 0 {
			continue
		}
		p.mix(buf[:n])
		totalWeight++
		weighted += s.Quality()
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}
