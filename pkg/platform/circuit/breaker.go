// Package circuit tracks consecutive failures of a repeated call so callers
// can switch to a slower or fallback path while a dependency is unhealthy.
package circuit

import "sync"

// State of a Breaker.
type State int

const (
	// StateClosed: calls are healthy.
	StateClosed State = iota
	// StateOpen: the failure threshold was reached.
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// StateChange reports a transition caused by the last Record call.
type StateChange struct {
	Opened bool
	Closed bool
}

// Changed reports whether any transition happened.
func (c StateChange) Changed() bool {
	return c.Opened || c.Closed
}

// Breaker is a two-state breaker. FailureThreshold consecutive failures open
// it; SuccessThreshold consecutive successes while open close it again.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

type Option func(*Breaker)

// WithFailureThreshold defaults to 3.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold defaults to 1.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current run of consecutive failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Record feeds the outcome of one call and returns the resulting state.
func (b *Breaker) Record(err error) (State, StateChange) {
	if err != nil {
		return b.recordFailure()
	}
	return b.recordSuccess()
}

func (b *Breaker) recordFailure() (State, StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.successCount = 0
	if b.state == StateClosed && b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		return b.state, StateChange{Opened: true}
	}
	return b.state, StateChange{}
}

func (b *Breaker) recordSuccess() (State, StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state == StateClosed {
		return b.state, StateChange{}
	}
	b.successCount++
	if b.successCount >= b.successThreshold {
		b.state = StateClosed
		b.successCount = 0
		return b.state, StateChange{Closed: true}
	}
	return b.state, StateChange{}
}

// Reset closes the breaker and clears all counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
}
