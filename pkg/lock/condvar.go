package lock

import (
	"sync"
	"time"
)

// condVar is a broadcast-only condition variable with timed waits, built on
// a generation channel: every waiter holds the channel of the generation it
// joined, and a broadcast closes that channel while installing a fresh one
// for later waiters. Closing reaches every waiter, so there are no lost
// wakeups as long as the waiter grabs the channel before releasing the latch
// it waits under.
//
// The channel swap is guarded by the condVar's own mutex rather than the
// manager latch, so a broadcast may run after the latch has been dropped.
type condVar struct {
	mu sync.Mutex
	ch chan struct{}
}

func newCondVar() *condVar {
	return &condVar{ch: make(chan struct{})}
}

// waitChannel returns the channel of the current generation. Callers must
// obtain the channel while still holding the latch that guards the waited-on
// state, then release the latch before receiving.
func (c *condVar) waitChannel() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

// waitOn blocks on a generation channel until a broadcast or until the
// timeout elapses, reporting true on timeout. The caller must not hold the
// latch while waiting.
func waitOn(ch <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return false
	case <-timer.C:
		return true
	}
}

// broadcast wakes every waiter of the current generation.
func (c *condVar) broadcast() {
	c.mu.Lock()
	close(c.ch)
	c.ch = make(chan struct{})
	c.mu.Unlock()
}
