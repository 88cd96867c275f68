// Package resilience guards calls to the external vision providers. A
// provider that keeps failing is taken out of rotation for a cooldown
// instead of burning a fallback attempt on every audit.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of one breaker.
type State int32

const (
	// StateClosed - calls flow normally.
	StateClosed State = iota
	// StateOpen - calls are rejected without reaching the provider.
	StateOpen
	// StateHalfOpen - a limited number of probe calls test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the provider sits in its cooldown.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Settings tune one provider's breaker. The orchestrator gives each provider
// a single attempt per audit, so tripping is driven by consecutive failures
// across audits rather than a failure ratio within one.
type Settings struct {
	// TripAfter consecutive failures open the circuit.
	TripAfter uint32
	// Cooldown is how long an open circuit rejects before probing.
	Cooldown time.Duration
	// Window resets closed-state counts so stale failures do not linger.
	Window time.Duration
	// HalfOpenMax limits concurrent probes; it is also the number of
	// consecutive probe successes required to close again.
	HalfOpenMax uint32
}

func providerSettings() Settings {
	return Settings{
		TripAfter:   3,
		Cooldown:    45 * time.Second,
		Window:      2 * time.Minute,
		HalfOpenMax: 1,
	}
}

// Counts is a monitoring snapshot of one breaker's current generation.
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveFailures  uint32
	ConsecutiveSuccesses uint32
}

// CircuitBreaker tracks one provider. Counts belong to a generation; every
// state change and every closed-state window expiry starts a new generation,
// so a slow call finishing after a transition cannot poison fresh counts.
type CircuitBreaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	probes     uint32
}

func newCircuitBreaker(name string, settings Settings) *CircuitBreaker {
	if settings.TripAfter == 0 {
		settings.TripAfter = 3
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 45 * time.Second
	}
	if settings.HalfOpenMax == 0 {
		settings.HalfOpenMax = 1
	}
	cb := &CircuitBreaker{name: name, settings: settings}
	cb.newGeneration(time.Now())
	return cb
}

// State reports the current state, applying any pending expiry transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state, _ := cb.currentState(time.Now())
	return state
}

// Counts returns the current generation's counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// ExecuteWithContext runs fn if the breaker admits the call. The provider's
// own error is returned unwrapped so the caller can classify it.
func (cb *CircuitBreaker) ExecuteWithContext(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	// A dead context is the caller's problem, not the provider's; it must
	// not count against the breaker.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	generation, err := cb.admit()
	if err != nil {
		return nil, err
	}

	result, err := fn(ctx)
	cb.settle(generation, err == nil)
	return result, err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	switch state {
	case StateOpen:
		return generation, ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.settings.HalfOpenMax {
			return generation, ErrTooManyRequests
		}
		cb.probes++
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) settle(before uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)
	if generation != before {
		// The generation rolled while the call was in flight.
		return
	}

	if success {
		cb.counts.Successes++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.settings.HalfOpenMax {
			cb.transition(StateClosed, now)
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.settings.TripAfter {
			cb.transition(StateOpen, now)
		}
	case StateHalfOpen:
		// A failed probe restarts the cooldown.
		cb.transition(StateOpen, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.newGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.transition(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) transition(state State, now time.Time) {
	if cb.state == state {
		return
	}
	cb.state = state
	cb.newGeneration(now)
}

func (cb *CircuitBreaker) newGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}
	cb.probes = 0

	switch cb.state {
	case StateClosed:
		if cb.settings.Window > 0 {
			cb.expiry = now.Add(cb.settings.Window)
		} else {
			cb.expiry = time.Time{}
		}
	case StateOpen:
		cb.expiry = now.Add(cb.settings.Cooldown)
	case StateHalfOpen:
		cb.expiry = time.Time{}
	}
}

// CircuitBreakerManager holds one breaker per provider name.
type CircuitBreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

func NewCircuitBreakerManager() *CircuitBreakerManager {
	return &CircuitBreakerManager{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the named breaker, creating it with provider defaults.
func (m *CircuitBreakerManager) GetOrCreate(name string) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}
	cb = newCircuitBreaker(name, providerSettings())
	m.breakers[name] = cb
	return cb
}
