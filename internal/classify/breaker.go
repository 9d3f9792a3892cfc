package classify

import (
	"sync"
	"time"
)

// breakerState is a circuit breaker's internal state.
type breakerState int

const (
	closed breakerState = iota
	open
	halfOpen
)

// breakerEntry tracks one (device, operation) pair's failure streak.
type breakerEntry struct {
	state       breakerState
	consecutive int
	openedAt    time.Time
}

// Breaker implements the per-(device, operation) circuit breaker from
// spec.md §4.7: once consecutive failures reach TripThreshold, further
// attempts fail immediately until ResetTimeout elapses, at which point
// a single probe is allowed through.
type Breaker struct {
	TripThreshold int
	ResetTimeout  time.Duration

	mu      sync.Mutex
	entries map[string]*breakerEntry
}

// NewBreaker constructs a breaker with the given trip threshold and
// reset timeout.
func NewBreaker(tripThreshold int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		TripThreshold: tripThreshold,
		ResetTimeout:  resetTimeout,
		entries:       make(map[string]*breakerEntry),
	}
}

// DefaultBreaker matches reasonable spec defaults: trip after 5
// consecutive failures, stay open for 30 seconds.
func DefaultBreaker() *Breaker {
	return NewBreaker(5, 30*time.Second)
}

func key(device, operation string) string { return device + "\x00" + operation }

// Allow reports whether an attempt for (device, operation) may proceed.
// It transitions Open -> HalfOpen once ResetTimeout has elapsed.
func (b *Breaker) Allow(device, operation string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entries[key(device, operation)]
	if e == nil {
		return true
	}
	switch e.state {
	case closed:
		return true
	case open:
		if time.Since(e.openedAt) >= b.ResetTimeout {
			e.state = halfOpen
			return true
		}
		return false
	case halfOpen:
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker for (device, operation) and resets
// its failure streak.
func (b *Breaker) RecordSuccess(device, operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(device, operation)
	if e, ok := b.entries[k]; ok {
		e.state = closed
		e.consecutive = 0
	}
}

// RecordFailure records a failed attempt for (device, operation),
// tripping the breaker open if the consecutive-failure count reaches
// TripThreshold, or immediately re-opening it if the probe attempt
// made during HalfOpen also failed.
func (b *Breaker) RecordFailure(device, operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(device, operation)
	e, ok := b.entries[k]
	if !ok {
		e = &breakerEntry{}
		b.entries[k] = e
	}

	if e.state == halfOpen {
		e.state = open
		e.openedAt = time.Now()
		return
	}

	e.consecutive++
	if e.consecutive >= b.TripThreshold {
		e.state = open
		e.openedAt = time.Now()
	}
}

// State reports the breaker's current state for (device, operation) for
// diagnostics; entries never seen are reported closed.
func (b *Breaker) State(device, operation string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key(device, operation)]
	if !ok {
		return "closed"
	}
	switch e.state {
	case open:
		return "open"
	case halfOpen:
		return "half_open"
	default:
		return "closed"
	}
}
