// Package breaker implements a per-connection circuit breaker. Consecutive
// transport failures open the circuit; after a cooldown a bounded number of
// probe requests decide whether the channel has recovered.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the circuit is open.
var ErrCircuitOpen = errors.New("circuit open")

// State of the breaker. Exported values feed the state gauge.
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	}
	return "unknown"
}

// Settings tune one breaker.
type Settings struct {
	// Threshold is the consecutive failure count that opens the circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
	// SuccessesToClose is the consecutive half-open successes required to
	// close the circuit again.
	SuccessesToClose int
	// MaxProbes bounds in-flight requests admitted while half-open.
	MaxProbes int
}

// Breaker tracks the health of one downstream connection. Only transport
// and remote failures should be recorded; local errors (validation, rate
// limiting) must not trip the circuit.
type Breaker struct {
	mu       sync.Mutex
	settings Settings
	state    State

	failures  int
	successes int
	probes    int
	openedAt  time.Time

	now func() time.Time
}

// New creates a closed breaker.
func New(settings Settings) *Breaker {
	if settings.MaxProbes <= 0 {
		settings.MaxProbes = settings.SuccessesToClose
	}
	return &Breaker{
		settings: settings,
		state:    Closed,
		now:      time.Now,
	}
}

// Allow reports whether a request may proceed. While open it returns
// ErrCircuitOpen until the cooldown elapses, then admits a bounded number
// of probes.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) < b.settings.Cooldown {
			return ErrCircuitOpen
		}
		b.state = HalfOpen
		b.successes = 0
		b.probes = 0
		fallthrough
	case HalfOpen:
		if b.probes >= b.settings.MaxProbes {
			return ErrCircuitOpen
		}
		b.probes++
		return nil
	}
	return nil
}

// Success records a successful request.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.settings.SuccessesToClose {
			b.state = Closed
			b.failures = 0
		}
	}
}

// Failure records a transport or remote failure.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.settings.Threshold {
			b.open()
		}
	case HalfOpen:
		// A failed probe reopens immediately.
		b.open()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) open() {
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
	b.probes = 0
}
