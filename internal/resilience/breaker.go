package resilience

import (
	"sync"
	"time"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerSettings tunes one circuit breaker. Zero values fall back to the
// package defaults so a zero-value settings struct is usable in tests.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that opens the breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker waits before admitting a probe.
	Cooldown time.Duration
}

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = defaultFailureThreshold
	}
	if s.Cooldown <= 0 {
		s.Cooldown = defaultCooldown
	}
	return s
}

// BreakerSnapshot is a point-in-time copy of one breaker's counters, returned
// by health endpoints.
type BreakerSnapshot struct {
	Service             string       `json:"service"`
	State               BreakerState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastFailure         *time.Time   `json:"last_failure,omitempty"`
	LastTransition      time.Time    `json:"last_transition"`
}

// CircuitBreaker tracks failures against one logical service. closed admits
// every call; open fast-fails until the cooldown elapses; half_open admits a
// single probe whose outcome decides between closed and open again.
//
// State is process-local and never persisted. The clock is injected so tests
// can step through cooldowns without sleeping.
type CircuitBreaker struct {
	mu sync.Mutex

	service  string
	settings BreakerSettings
	now      func() time.Time

	state          BreakerState
	failures       int
	lastFailure    *time.Time
	lastTransition time.Time
	probeInFlight  bool
}

func NewCircuitBreaker(service string, settings BreakerSettings, now func() time.Time) *CircuitBreaker {
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{
		service:        service,
		settings:       settings.withDefaults(),
		now:            now,
		state:          BreakerClosed,
		lastTransition: now(),
	}
}

// Allow reports whether a call may go to the upstream right now. In the open
// state it flips to half_open once the cooldown has elapsed and admits exactly
// one probe; concurrent callers during the probe are refused.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastTransition) < b.settings.Cooldown {
			return false
		}
		b.transition(BreakerHalfOpen)
		b.probeInFlight = true
		return true
	case BreakerHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess notes a successful upstream call. A probe success closes the
// breaker; successes reported while open (late results of discarded calls)
// are ignored.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.probeInFlight = false
		b.failures = 0
		b.lastFailure = nil
		b.transition(BreakerClosed)
	}
}

// RecordFailure notes a failed upstream call. In the closed state it opens
// the breaker once the consecutive-failure threshold is reached; a probe
// failure reopens it and restarts the cooldown.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := b.now()
	b.lastFailure = &at

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.probeInFlight = false
		b.transition(BreakerOpen)
	}
}

// Reset forces the breaker back to closed with cleared counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.lastFailure = nil
	b.probeInFlight = false
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

// State returns the current state without admitting anything.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := BreakerSnapshot{
		Service:             b.service,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastTransition:      b.lastTransition,
	}
	if b.lastFailure != nil {
		at := *b.lastFailure
		snap.LastFailure = &at
	}
	return snap
}

// transition must be called with the mutex held.
func (b *CircuitBreaker) transition(to BreakerState) {
	b.state = to
	b.lastTransition = b.now()
}

// Registry holds the breakers of a process, keyed by logical service name.
// It is built once at the composition root and injected wherever breakers
// are needed; there is no package-level instance.
type Registry struct {
	mu       sync.Mutex
	settings BreakerSettings
	now      func() time.Time
	breakers map[string]*CircuitBreaker
}

func NewRegistry(settings BreakerSettings, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		settings: settings.withDefaults(),
		now:      now,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Breaker returns the breaker for a service, creating it on first use.
func (r *Registry) Breaker(service string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[service]; ok {
		return b
	}
	b := NewCircuitBreaker(service, r.settings, r.now)
	r.breakers[service] = b
	return b
}

// AnyOpen reports whether any registered breaker is not closed.
func (r *Registry) AnyOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.breakers {
		if b.State() != BreakerClosed {
			return true
		}
	}
	return false
}

// Snapshots returns a copy of every breaker's state for health reporting.
func (r *Registry) Snapshots() []BreakerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]BreakerSnapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		snaps = append(snaps, b.Snapshot())
	}
	return snaps
}

// ResetAll closes every breaker and clears its counters.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
