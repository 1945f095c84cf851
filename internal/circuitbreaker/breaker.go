// Package circuitbreaker protects the aggregator from hammering dead
// upstream sources. Each source gets its own breaker: after a run of
// consecutive failures the source is skipped for a cooldown period and
// treated as immediately failed, then probed half-open.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of one breaker
type State int

// Breaker states
const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripped, calls are skipped
	StateHalfOpen              // probing recovery with single calls
)

// String returns the lowercase state name used in logs and /status.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker tracks consecutive failures for one upstream source.
type Breaker struct {
	name             string
	failureThreshold int
	cooldown         time.Duration

	mu       sync.RWMutex
	state    State
	failures int
	lastTrip time.Time
	onTrip   func(name, reason string)
}

// New creates a breaker for the named source. threshold is the number
// of consecutive failures that trips it.
func New(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		name:             name,
		failureThreshold: threshold,
		cooldown:         cooldown,
	}
}

// WithTripCallback sets a callback invoked when the breaker trips.
func (b *Breaker) WithTripCallback(callback func(name, reason string)) *Breaker {
	b.onTrip = callback
	return b
}

// Allow reports whether a call to the source should proceed. An open
// breaker transitions to half-open once the cooldown has elapsed,
// admitting a single probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	default:
		if time.Since(b.lastTrip) > b.cooldown {
			b.state = StateHalfOpen
			logrus.Infof("Breaker %s half-open: probing recovery", b.name)
			return true
		}
		return false
	}
}

// RecordSuccess resets the failure streak and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		logrus.Infof("Breaker %s closed: source recovered", b.name)
	}
	b.state = StateClosed
	b.failures = 0
}

// RecordFailure extends the failure streak and trips the breaker when
// the threshold is reached. A failed half-open probe trips directly.
func (b *Breaker) RecordFailure(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.trip(reason)
	}
}

// GetState returns the current state of the breaker.
func (b *Breaker) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forcibly closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	logrus.Infof("Breaker %s manually reset", b.name)
}

// trip opens the breaker; callers hold the lock.
func (b *Breaker) trip(reason string) {
	if b.state != StateOpen {
		logrus.Warnf("Breaker %s tripped: %s", b.name, reason)
		if b.onTrip != nil {
			go b.onTrip(b.name, reason)
		}
	}
	b.state = StateOpen
	b.lastTrip = time.Now()
}

// Set is a collection of breakers keyed by source name, created
// lazily with shared settings.
type Set struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewSet creates a breaker collection with shared settings.
func NewSet(threshold int, cooldown time.Duration) *Set {
	return &Set{
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*Breaker),
	}
}

// For returns the breaker for the named source, creating it on first use.
func (s *Set) For(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[name]; ok {
		return b
	}
	b := New(name, s.threshold, s.cooldown)
	s.breakers[name] = b
	return b
}

// States snapshots the state of every known breaker for /status.
func (s *Set) States() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.GetState().String()
	}
	return out
}
