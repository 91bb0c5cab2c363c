package core

import (
	"context"
	"sync/atomic"
	"time"
)

// Gate is the process-wide admission control for model calls. A counting
// semaphore bounds concurrent in-flight calls across all sessions and
// sub-executions; each admitted call additionally waits a fixed pacing delay
// before dispatch to smooth bursts against a rate-limited upstream.
//
// Construct one Gate at process start and pass it by handle to every gateway.
// A zero-valued Gate must not be used; call NewGate.
type Gate struct {
	sem      chan struct{}
	pacing   time.Duration
	inFlight atomic.Int64
}

// NewGate creates a gate admitting at most maxInFlight concurrent calls with
// the given pacing delay per call. maxInFlight < 1 is clamped to 1.
func NewGate(maxInFlight int, pacing time.Duration) *Gate {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Gate{sem: make(chan struct{}, maxInFlight), pacing: pacing}
}

// Acquire blocks until a slot is free, then applies the pacing delay. It
// returns the context error if ctx is cancelled while waiting; in that case
// no slot is held.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if g.pacing > 0 {
		select {
		case <-time.After(g.pacing):
		case <-ctx.Done():
			<-g.sem
			return ctx.Err()
		}
	}
	g.inFlight.Add(1)
	return nil
}

// Release frees a slot acquired by Acquire. Must be called exactly once per
// successful Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	<-g.sem
}

// InFlight returns the number of currently admitted calls.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Capacity returns the maximum number of concurrent calls the gate admits.
func (g *Gate) Capacity() int { return cap(g.sem) }
