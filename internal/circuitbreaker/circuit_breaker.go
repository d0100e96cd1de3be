// Package circuitbreaker protects the Worker's calls to the email provider
// from cascading retries against a down provider, adapted from
// email-service's app/circuitbreaker package.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

// Breaker trips to Open after maxFailures consecutive failures, then probes
// a single call after resetTimeout to decide whether to close again.
type Breaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu           sync.Mutex
	state        State
	failures     int
	openedAt     time.Time
	halfOpenBusy bool
}

func New(maxFailures int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        Closed,
	}
}

// Call runs fn under breaker protection. Returns ErrOpen without calling fn
// when the circuit is tripped and not yet eligible for a probe.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn(ctx)

	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.resetTimeout {
			return ErrOpen
		}
		b.state = HalfOpen
		b.halfOpenBusy = false
	case HalfOpen:
		if b.halfOpenBusy {
			return ErrOpen
		}
	}

	if b.state == HalfOpen {
		b.halfOpenBusy = true
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == HalfOpen {
			b.state = Open
			b.openedAt = time.Now()
			b.halfOpenBusy = false
			return
		}
		if b.failures >= b.maxFailures {
			b.state = Open
			b.openedAt = time.Now()
		}
		return
	}

	b.failures = 0
	b.halfOpenBusy = false
	b.state = Closed
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
