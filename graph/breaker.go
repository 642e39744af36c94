package graph

import (
	"sync"
	"time"

	"github.com/teranos/lore/errors"
)

// Circuit breaker thresholds. Five consecutive connectivity failures open
// the circuit; after the cooldown a half-open probe is admitted, and two
// consecutive successes close it again.
const (
	breakerFailureThreshold = 5
	breakerSuccessThreshold = 2
	breakerCooldown         = 60 * time.Second
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// breaker tracks consecutive connectivity failures against the store.
// Server-side query errors never trip it; only an unreachable store does.
type breaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	successes int
	openedAt  time.Time

	now func() time.Time
}

func newBreaker() *breaker {
	return &breaker{now: time.Now}
}

// Allow reports whether a call may proceed. In the open state calls are
// rejected until the cooldown elapses, at which point a half-open probe
// is admitted.
func (b *breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if b.now().Sub(b.openedAt) < breakerCooldown {
			return errors.Wrapf(errors.ErrCircuitOpen,
				"store unreachable, retrying after %s", breakerCooldown)
		}
		b.state = breakerHalfOpen
		b.successes = 0
	}
	return nil
}

// RecordSuccess notes a call that reached the store.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.successes++
		if b.successes >= breakerSuccessThreshold {
			b.state = breakerClosed
			b.failures = 0
			b.successes = 0
		}
	case breakerClosed:
		b.failures = 0
	}
}

// RecordFailure notes a connectivity failure. A half-open probe failing
// reopens immediately.
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.state = breakerOpen
		b.openedAt = b.now()
		b.failures = 0
	case breakerClosed:
		b.failures++
		if b.failures >= breakerFailureThreshold {
			b.state = breakerOpen
			b.openedAt = b.now()
		}
	}
}

// State returns the current state name for logging and status output.
func (b *breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
