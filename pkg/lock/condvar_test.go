package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCondVarTimeout(t *testing.T) {
	cv := newCondVar()

	start := time.Now()
	timedOut := waitOn(cv.waitChannel(), 20*time.Millisecond)
	assert.True(t, timedOut)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCondVarBroadcastWakesAllWaiters(t *testing.T) {
	cv := newCondVar()

	const waiters = 8
	ready := make(chan struct{}, waiters)
	var g errgroup.Group
	for i := 0; i < waiters; i++ {
		ch := cv.waitChannel()
		g.Go(func() error {
			ready <- struct{}{}
			if waitOn(ch, 5*time.Second) {
				return assert.AnError
			}
			return nil
		})
	}

	for i := 0; i < waiters; i++ {
		<-ready
	}
	cv.broadcast()
	require.NoError(t, g.Wait(), "a waiter timed out instead of waking")
}

func TestCondVarBroadcastBeforeWaitIsNotLost(t *testing.T) {
	cv := newCondVar()

	// Taking the channel before the broadcast means the broadcast is
	// observed even though the receive happens later.
	ch := cv.waitChannel()
	cv.broadcast()
	assert.False(t, waitOn(ch, time.Second))
}

func TestCondVarNewGenerationWaitsAgain(t *testing.T) {
	cv := newCondVar()

	cv.broadcast()
	// A channel taken after a broadcast belongs to the next generation and
	// is still open.
	assert.True(t, waitOn(cv.waitChannel(), 20*time.Millisecond))
}
