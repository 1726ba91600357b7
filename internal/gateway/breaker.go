package gateway

import (
	"sync"
	"time"
)

type state int

const (
	closed state = iota
	open
	halfOpen
)

// breaker is a consecutive-failure circuit breaker with a single half-open probe.
type breaker struct {
	mu               sync.Mutex
	st               state
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
	now              func() time.Time
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	return &breaker{failThreshold: threshold, openFor: openFor, now: time.Now}
}

func (b *breaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case open:
		if b.now().After(b.nextTryAt) && !b.probeInFlight {
			b.st = halfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case halfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) OnSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = closed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.trip()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.trip()
	}
}

// OnNeutral releases a half-open probe without judging gateway health,
// e.g. when the provider rejected a single number.
func (b *breaker) OnNeutral() {
	b.mu.Lock()
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *breaker) trip() {
	b.st = open
	b.nextTryAt = b.now().Add(b.openFor)
	b.probeInFlight = false
}

// RetryIn is how long until an open circuit admits its half-open probe.
func (b *breaker) RetryIn() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st != open {
		return 0
	}
	return b.nextTryAt.Sub(b.now())
}

func (b *breaker) State() state {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}
