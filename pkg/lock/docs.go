// Package lock implements a generic lock manager: an in-process
// synchronization primitive mediating concurrent access by transactions to a
// collection of user-keyed records.
//
// # Overview
//
// Unlike a mutex or reader-writer lock, the manager is parameterized by an
// arbitrary set of lock modes and a [ContentionMatrix] declaring which pairs
// of modes conflict. Record and transaction identifiers are opaque type
// parameters; a transaction is any logical execution context, not
// necessarily a goroutine.
//
// Requests on a record are queued in FIFO order and batched into groups of
// mutually compatible modes, so every member of a group is granted
// simultaneously. Waits across records feed a global wait-for graph; a
// blocked [Manager.Lock] call wakes at least once per scan interval and
// probes the graph for cycles. When a cycle is found, the configured
// [VictimPolicy] picks one participant whose request is denied, unblocking
// it with a false return so the caller can retry.
//
// # Components
//
//   - [Manager] — the lock table, global latch, per-record condition
//     variables, and the deadlock probe. [Manager.Lock] and [Manager.Unlock]
//     are the only state-changing entry points.
//   - [Guard] — ownership wrapper over a single (record, txn, mode) lock
//     with None, Owned, and Denied states.
//   - [ContentionMatrix] — the mode conflict table, fixed at construction.
//   - [VictimPolicy] — the deadlock recovery choice; [SelectMax] is the
//     default.
//   - [Metrics] — optional Prometheus collectors for grants, denials, and
//     wait times.
//
// # Guarantees
//
//   - An earlier-admitted group is granted strictly before a later one;
//     members of one group are granted together with no order among them.
//   - Two concurrently granted requests on a record never conflict under the
//     matrix.
//   - A second Lock by the same transaction on the same record returns false
//     without touching the queue.
//   - Any wait-for cycle is broken within one scan interval of formation,
//     one denial per probe pass. Denied transactions are not retried by the
//     manager; the caller decides.
//
// # Caller contract
//
// A transaction proceeds synchronously: it must not issue a new Lock call
// before its previous one returned. The manager relies on this to locate a
// victim's single waiting request during recovery.
package lock
