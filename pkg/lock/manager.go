package lock

import (
	"cmp"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultScanInterval is the longest a blocked Lock call sleeps before
// re-running the deadlock probe.
const DefaultScanInterval = 300 * time.Millisecond

// Config carries the optional knobs of a Manager. Zero values fall back to
// the defaults documented on each field.
type Config[T comparable] struct {
	// ScanInterval bounds how long a blocked Lock call sleeps between
	// deadlock probes. Defaults to DefaultScanInterval.
	ScanInterval time.Duration

	// Policy picks the transaction to deny from a wait-for cycle. Required
	// by NewManagerWithConfig; NewManager fills in SelectMax.
	Policy VictimPolicy[T]

	// Logger receives structured grant, wait, denial, and deadlock events.
	// Defaults to a logger that discards everything.
	Logger logrus.FieldLogger

	// Metrics, when set, is updated on every lock event. The bundle must be
	// registered by the caller.
	Metrics *Metrics
}

// tableEntry is the per-record lock state: the request queue, the condition
// variable its waiters block on, and the id of the currently granted group.
// The granted group id always names the front group of a nonempty queue.
type tableEntry[T comparable] struct {
	queue        *lockRequestQueue[T]
	cv           *condVar
	grantedGroup groupID
}

func newTableEntry[T comparable]() *tableEntry[T] {
	return &tableEntry[T]{
		queue: newLockRequestQueue[T](),
		cv:    newCondVar(),
		// The first group admitted into an empty queue gets id 1, so a fresh
		// entry grants it on the spot.
		grantedGroup: nullGroup + 1,
	}
}

// Manager mediates concurrent access by transactions to a collection of
// records under a caller-supplied set of lock modes and contention matrix.
// It grants, queues, and revokes locks per record, and it detects and breaks
// deadlocks that arise from lock-order cycles across records.
//
// R identifies records and T identifies transactions; both are opaque to the
// manager beyond comparability. A transaction may hold at most one request
// per record at a time, and, by caller contract, waits on at most one record
// at a time: a transaction must not call Lock again before its previous Lock
// returned. Violating that contract weakens victim selection, not safety.
//
// All state is serialized under a single latch. Only Lock blocks, and only
// with the latch released while parked on the record's condition variable.
type Manager[R comparable, T comparable] struct {
	matrix       ContentionMatrix
	scanInterval time.Duration
	policy       VictimPolicy[T]
	logger       logrus.FieldLogger
	metrics      *Metrics

	latch sync.Mutex
	table map[R]*tableEntry[T]
	waits *dependencyGraph[T]
}

// NewManager builds a manager with the default configuration: SelectMax
// victim policy, DefaultScanInterval, silent logger, no metrics. The matrix
// is copied; it must be square and cover at least one mode.
func NewManager[R comparable, T cmp.Ordered](matrix ContentionMatrix) *Manager[R, T] {
	return NewManagerWithConfig[R, T](matrix, Config[T]{Policy: SelectMax[T]()})
}

// NewManagerWithConfig builds a manager from an explicit configuration. The
// victim policy is required; transaction identifier types without an
// ordering have no default to fall back to.
func NewManagerWithConfig[R comparable, T comparable](matrix ContentionMatrix, cfg Config[T]) *Manager[R, T] {
	if err := matrix.validate(); err != nil {
		panic(err)
	}
	if cfg.Policy == nil {
		panic("lock: victim policy is required")
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}

	return &Manager[R, T]{
		matrix:       matrix.clone(),
		scanInterval: cfg.ScanInterval,
		policy:       cfg.Policy,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		table:        make(map[R]*tableEntry[T]),
		waits:        newDependencyGraph[T](),
	}
}

// Lock acquires a lock on the record in the given mode on behalf of txn. The
// call blocks until the lock is granted or the request is denied to break a
// deadlock. It returns true on grant and false on denial or when txn already
// has a request on the record.
func (m *Manager[R, T]) Lock(record R, txn T, mode Mode) bool {
	m.latch.Lock()

	entry, exists := m.table[record]
	if !exists {
		entry = newTableEntry[T]()
		m.table[record] = entry
	}

	id := entry.queue.admit(txn, mode, m.matrix)
	if id == nullGroup {
		m.latch.Unlock()
		m.metrics.lockRejected()
		m.logger.WithFields(logrus.Fields{"record": record, "txn": txn}).
			Warn("lock request rejected: transaction already has a request on record")
		return false
	}
	if id == entry.grantedGroup {
		m.latch.Unlock()
		m.metrics.lockGranted()
		m.logger.WithFields(logrus.Fields{"record": record, "txn": txn}).
			Debug("lock granted")
		return true
	}

	// The request landed behind the granted group, so txn has to wait. It
	// depends on every request ahead of it, and every later arrival commits
	// to waiting behind it.
	m.insertDependencies(entry.queue, txn)
	m.logger.WithFields(logrus.Fields{"record": record, "txn": txn, "group": id}).
		Debug("lock request waiting")

	m.metrics.waitStarted()
	start := time.Now()
	m.waitForGrant(entry, record, txn)
	m.metrics.waitFinished(time.Since(start))

	if entry.queue.get(txn).denied {
		// The denied request is cleaned up by its own transaction: drop the
		// edges tied to this queue, remove the request, and keep the
		// granted-group bookkeeping intact for the survivors.
		m.removeDependencies(entry.queue, txn)
		entry.queue.remove(txn)
		cleanup := m.settleAfterRemoval(record, entry)
		m.latch.Unlock()
		if cleanup != nil {
			cleanup()
		}
		m.metrics.lockDenied()
		m.logger.WithFields(logrus.Fields{"record": record, "txn": txn}).
			Warn("lock request denied to break deadlock")
		return false
	}

	m.latch.Unlock()
	m.metrics.lockGranted()
	m.logger.WithFields(logrus.Fields{"record": record, "txn": txn}).
		Debug("lock granted")
	return true
}

// waitForGrant parks txn on the record's condition variable until its group
// becomes the granted group or its request is denied. Every timeout wake
// runs the deadlock probe while holding the latch. Spurious wakeups are
// absorbed by re-checking the predicate.
func (m *Manager[R, T]) waitForGrant(entry *tableEntry[T], record R, txn T) {
	for {
		if entry.queue.groupIDOf(txn) == entry.grantedGroup || entry.queue.get(txn).denied {
			return
		}

		// The generation channel must be taken while the latch is still
		// held; a broadcast between releasing the latch and receiving is
		// then observed as an already closed channel.
		ch := entry.cv.waitChannel()
		m.latch.Unlock()
		timedOut := waitOn(ch, m.scanInterval)
		m.latch.Lock()

		if timedOut {
			m.deadlockProbe(record, txn)
		}
	}
}

// Unlock releases txn's granted lock on the record. Unlocking a record the
// transaction never locked, or one it is still waiting on, is a no-op.
func (m *Manager[R, T]) Unlock(record R, txn T) {
	m.latch.Lock()

	entry, exists := m.table[record]
	if !exists || !entry.queue.exists(txn) {
		m.latch.Unlock()
		return
	}
	if entry.queue.groupIDOf(txn) != entry.grantedGroup {
		m.latch.Unlock()
		return
	}

	m.removeDependencies(entry.queue, txn)
	entry.queue.remove(txn)
	cleanup := m.settleAfterRemoval(record, entry)
	m.latch.Unlock()
	if cleanup != nil {
		cleanup()
	}
}

// settleAfterRemoval restores the lock table invariants after a request was
// removed from the record's queue: an emptied queue drops the table entry,
// and a front group that moved past the granted group becomes the granted
// group. The returned function, if any, must be called after the latch is
// released; it notifies the record's waiters with the latch dropped to
// reduce contention.
func (m *Manager[R, T]) settleAfterRemoval(record R, entry *tableEntry[T]) func() {
	if entry.queue.empty() {
		delete(m.table, record)
		return nil
	}

	if front := entry.queue.frontGroupID(); front != entry.grantedGroup {
		entry.grantedGroup = front
		m.logger.WithFields(logrus.Fields{"record": record, "group": front}).
			Debug("granted group advanced")
		return entry.cv.broadcast
	}

	return nil
}

// deadlockProbe runs under the latch on behalf of the blocked transaction
// txn waiting on record. It searches the wait-for graph for a cycle
// reachable from txn and, if one exists, denies the waiting request of the
// policy-selected victim and wakes that record's waiters.
func (m *Manager[R, T]) deadlockProbe(record R, txn T) {
	// A denied probe owner is already unblocked; nothing to check.
	if m.table[record].queue.get(txn).denied {
		return
	}

	cycle := m.waits.findCycleFrom(txn)
	if len(cycle) == 0 {
		return
	}

	victim := m.policy(cycle)
	m.metrics.deadlockBroken()
	m.logger.WithFields(logrus.Fields{"txn": txn, "victim": victim, "cycle_size": len(cycle)}).
		Warn("deadlock detected")

	// A transaction proceeds synchronously in its caller's flow, so at most
	// one waiting request by the victim exists anywhere in the table. Find
	// it, deny it, and wake the waiters parked on that record.
	for _, entry := range m.table {
		if !entry.queue.exists(victim) {
			continue
		}
		if entry.queue.groupIDOf(victim) == entry.grantedGroup {
			continue
		}
		entry.queue.get(victim).deny()
		entry.cv.broadcast()
		return
	}
}

// insertDependencies adds wait-for edges for txn's position in the queue:
// txn waits for every request in groups ahead of its own, and every request
// in groups behind waits for txn. Insertion is idempotent.
func (m *Manager[R, T]) insertDependencies(queue *lockRequestQueue[T], txn T) {
	m.walkDependencies(queue, txn, m.waits.add)
}

// removeDependencies removes the edges inserted for txn's position in this
// queue, in both directions. Removal of missing edges is a no-op, so stale
// state cannot fail the cleanup.
func (m *Manager[R, T]) removeDependencies(queue *lockRequestQueue[T], txn T) {
	m.walkDependencies(queue, txn, m.waits.remove)
}

// walkDependencies applies edit to every dependency edge implied by txn's
// position in the queue: edit(txn, member) for members of groups strictly
// before txn's group, edit(member, txn) for members of groups strictly
// after.
func (m *Manager[R, T]) walkDependencies(queue *lockRequestQueue[T], txn T, edit func(a, b T)) {
	own := queue.groupIDOf(txn)

	node := queue.front()
	for ; node != nil && node.Key != own; node = node.Next() {
		for member := node.Value.members(); member != nil; member = member.Next() {
			edit(txn, member.Key)
		}
	}
	if node == nil {
		return
	}
	for node = node.Next(); node != nil; node = node.Next() {
		for member := node.Value.members(); member != nil; member = member.Next() {
			edit(member.Key, txn)
		}
	}
}
