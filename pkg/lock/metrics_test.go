package lock

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics

	metrics.lockGranted()
	metrics.lockDenied()
	metrics.lockRejected()
	metrics.deadlockBroken()
	metrics.waitStarted()
	metrics.waitFinished(time.Millisecond)
}

func TestMetricsRegister(t *testing.T) {
	metrics := NewMetrics("genlock")
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	assert.Panics(t, func() { metrics.MustRegister(registry) })
}

func TestManagerCountsGrantsAndRejections(t *testing.T) {
	metrics := NewMetrics("genlock")
	metrics.MustRegister(prometheus.NewRegistry())

	m := NewManagerWithConfig[int, int](ReadWriteMatrix(), Config[int]{
		Policy:       SelectMax[int](),
		ScanInterval: probeInterval,
		Metrics:      metrics,
	})

	require.True(t, m.Lock(0, 1, Read))
	require.True(t, m.Lock(0, 2, Read))
	require.False(t, m.Lock(0, 1, Write))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Grants))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Rejections))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Denials))

	m.Unlock(0, 1)
	m.Unlock(0, 2)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Waiting))
}

func TestManagerCountsDeadlockDenials(t *testing.T) {
	metrics := NewMetrics("genlock")
	metrics.MustRegister(prometheus.NewRegistry())

	m := NewManagerWithConfig[int, int](ReadWriteMatrix(), Config[int]{
		Policy:       SelectMax[int](),
		ScanInterval: probeInterval,
		Metrics:      metrics,
	})

	require.True(t, m.Lock(0, 1, Write))
	require.True(t, m.Lock(1, 2, Write))

	blocked := lockAsync(m, 1, 1, Write)
	requireBlocked(t, blocked)
	require.False(t, awaitResult(t, lockAsync(m, 0, 2, Write)))

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.Deadlocks), float64(1))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Denials))

	m.Unlock(1, 2)
	require.True(t, awaitResult(t, blocked))
	m.Unlock(0, 1)
	m.Unlock(1, 1)

	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Waiting))
}
