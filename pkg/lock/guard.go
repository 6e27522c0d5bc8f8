package lock

import (
	"github.com/pkg/errors"
)

// GuardState names the ownership state of a Guard.
type GuardState int

const (
	// GuardNone means the guard holds nothing: either no acquisition was
	// attempted yet or ownership was given up.
	GuardNone GuardState = iota
	// GuardOwned means the guard holds a granted lock.
	GuardOwned
	// GuardDenied means the acquisition was denied to break a deadlock or
	// because the transaction already had a request on the record. The
	// guard holds nothing.
	GuardDenied
)

func (s GuardState) String() string {
	switch s {
	case GuardOwned:
		return "owned"
	case GuardDenied:
		return "denied"
	default:
		return "none"
	}
}

// Guard misuse errors.
var (
	// ErrNotOwned is returned when unlocking a guard that owns nothing.
	ErrNotOwned = errors.New("guard does not own a lock")
	// ErrAlreadyOwned is returned when locking a guard that already owns a
	// lock.
	ErrAlreadyOwned = errors.New("guard already owns a lock")
	// ErrDenied is returned by Guard.Lock when the manager denies the
	// request.
	ErrDenied = errors.New("lock request denied")
)

// Guard is an ownership wrapper around one (record, txn, mode) lock. It
// acquires through the manager on construction (or on Lock for a deferred
// guard), remembers whether it owns the lock, and releases on Close. Guards
// are passed by pointer and must not outlive their manager. A guard that has
// unlocked or released reverts to the GuardNone state and may be locked
// again.
type Guard[R comparable, T comparable] struct {
	mgr    *Manager[R, T]
	record R
	txn    T
	mode   Mode
	state  GuardState
}

// NewGuard acquires the lock and returns the owning guard. The call blocks
// like Manager.Lock; inspect Denied on the returned guard to learn whether
// the acquisition was refused.
func NewGuard[R comparable, T comparable](mgr *Manager[R, T], record R, txn T, mode Mode) *Guard[R, T] {
	g := DeferredGuard(mgr, record, txn, mode)
	if mgr.Lock(record, txn, mode) {
		g.state = GuardOwned
	} else {
		g.state = GuardDenied
	}
	return g
}

// DeferredGuard returns a guard in the GuardNone state without touching the
// manager. Call Lock to acquire.
func DeferredGuard[R comparable, T comparable](mgr *Manager[R, T], record R, txn T, mode Mode) *Guard[R, T] {
	return &Guard[R, T]{mgr: mgr, record: record, txn: txn, mode: mode}
}

// AdoptGuard returns a guard that assumes the caller already holds the lock
// through a prior Manager.Lock call with the same record and transaction.
func AdoptGuard[R comparable, T comparable](mgr *Manager[R, T], record R, txn T, mode Mode) *Guard[R, T] {
	g := DeferredGuard(mgr, record, txn, mode)
	g.state = GuardOwned
	return g
}

// Lock acquires the guard's lock. It fails with ErrAlreadyOwned when the
// guard still owns a lock, and with ErrDenied when the manager refuses the
// request; a denied guard may retry after the caller backs off.
func (g *Guard[R, T]) Lock() error {
	if g.state == GuardOwned {
		return errors.Wrapf(ErrAlreadyOwned, "record %v", g.record)
	}
	if !g.mgr.Lock(g.record, g.txn, g.mode) {
		g.state = GuardDenied
		return errors.Wrapf(ErrDenied, "record %v txn %v", g.record, g.txn)
	}
	g.state = GuardOwned
	return nil
}

// Unlock releases the owned lock and moves the guard to GuardNone. Unlocking
// a guard that owns nothing is misuse and fails with ErrNotOwned.
func (g *Guard[R, T]) Unlock() error {
	if g.state != GuardOwned {
		return errors.Wrapf(ErrNotOwned, "record %v state %s", g.record, g.state)
	}
	g.mgr.Unlock(g.record, g.txn)
	g.state = GuardNone
	return nil
}

// Release gives up ownership without unlocking, leaving the lock held by the
// transaction and the guard in GuardNone. The caller becomes responsible for
// the eventual Manager.Unlock.
func (g *Guard[R, T]) Release() {
	g.state = GuardNone
}

// Close unlocks the guard if it owns a lock and is a no-op otherwise, which
// makes it safe to defer right after construction.
func (g *Guard[R, T]) Close() error {
	if g.state != GuardOwned {
		return nil
	}
	return g.Unlock()
}

// Owns reports whether the guard holds a granted lock.
func (g *Guard[R, T]) Owns() bool {
	return g.state == GuardOwned
}

// Denied reports whether the last acquisition through this guard was denied.
func (g *Guard[R, T]) Denied() bool {
	return g.state == GuardDenied
}

// State returns the guard's current ownership state.
func (g *Guard[R, T]) State() GuardState {
	return g.state
}

// Record returns the record identifier the guard refers to.
func (g *Guard[R, T]) Record() R {
	return g.record
}

// Txn returns the transaction identifier the guard acts for.
func (g *Guard[R, T]) Txn() T {
	return g.txn
}

// Mode returns the lock mode the guard requests.
func (g *Guard[R, T]) Mode() Mode {
	return g.mode
}
