package lock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors published by a Manager. All
// observation helpers are nil-safe, so a manager built without metrics pays
// only a nil check per event.
type Metrics struct {
	Grants       prometheus.Counter
	Denials      prometheus.Counter
	Rejections   prometheus.Counter
	Deadlocks    prometheus.Counter
	Waiting      prometheus.Gauge
	WaitDuration prometheus.Histogram
}

// NewMetrics builds the collector bundle under the given namespace. Register
// the bundle with a prometheus.Registerer before use.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Grants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "grants_total",
			Help:      "Lock requests granted.",
		}),
		Denials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "denials_total",
			Help:      "Lock requests denied as deadlock victims.",
		}),
		Rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "rejections_total",
			Help:      "Lock requests rejected because the transaction already has a request on the record.",
		}),
		Deadlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "deadlocks_total",
			Help:      "Wait-for cycles broken by the deadlock probe.",
		}),
		Waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "waiting_transactions",
			Help:      "Transactions currently blocked waiting for a lock.",
		}),
		WaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "wait_duration_seconds",
			Help:      "Time spent blocked before a lock request was granted or denied.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

// MustRegister registers every collector of the bundle with r, panicking on
// duplicate registration.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.Grants, m.Denials, m.Rejections, m.Deadlocks, m.Waiting, m.WaitDuration)
}

func (m *Metrics) lockGranted() {
	if m == nil {
		return
	}
	m.Grants.Inc()
}

func (m *Metrics) lockDenied() {
	if m == nil {
		return
	}
	m.Denials.Inc()
}

func (m *Metrics) lockRejected() {
	if m == nil {
		return
	}
	m.Rejections.Inc()
}

func (m *Metrics) deadlockBroken() {
	if m == nil {
		return
	}
	m.Deadlocks.Inc()
}

func (m *Metrics) waitStarted() {
	if m == nil {
		return
	}
	m.Waiting.Inc()
}

func (m *Metrics) waitFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.Waiting.Dec()
	m.WaitDuration.Observe(d.Seconds())
}
