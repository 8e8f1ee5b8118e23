package notifier

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// breaker trips a provider out of rotation after consecutive failures and
// lets a single probe through once the open window has passed.
type breaker struct {
	mu            sync.Mutex
	state         breakerState
	fails         int
	failThreshold int
	openFor       time.Duration
	probeAt       time.Time
	probing       bool
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	return &breaker{failThreshold: threshold, openFor: openFor}
}

// ready reports whether the provider should be considered for selection.
func (b *breaker) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return time.Now().After(b.probeAt) && !b.probing
	case stateHalfOpen:
		return !b.probing
	default:
		return true
	}
}

// acquire claims a send slot. In open/half-open it admits at most one
// in-flight probe.
func (b *breaker) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Now().After(b.probeAt) && !b.probing {
			b.state = stateHalfOpen
			b.probing = true
			return true
		}
		return false
	case stateHalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		return false
	}
	return true
}

func (b *breaker) onSuccess() {
	b.mu.Lock()
	b.fails = 0
	b.state = stateClosed
	b.probing = false
	b.mu.Unlock()
}

func (b *breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.probeAt = time.Now().Add(b.openFor)
		b.probing = false
		return
	}

	b.fails++
	if b.fails >= b.failThreshold {
		b.state = stateOpen
		b.probeAt = time.Now().Add(b.openFor)
	}
}
