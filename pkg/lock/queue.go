package lock

import "fmt"

// groupID tags a lock request group within a queue. Identifiers start at 1
// and grow strictly in insertion order; nullGroup is reserved to signal a
// refused admission.
type groupID uint64

const nullGroup groupID = 0

// lockRequestQueue is a per-record FIFO of lock request groups together with
// an auxiliary map from transaction to the group holding its request. The
// queue admits a new request into the last group when it is compatible with
// every non-denied request there; otherwise a new trailing group is formed.
// A transaction has at most one request in the queue at any instant.
type lockRequestQueue[T comparable] struct {
	groups  *indexedList[groupID, *lockRequestGroup[T]]
	groupOf map[T]groupID
}

func newLockRequestQueue[T comparable]() *lockRequestQueue[T] {
	return &lockRequestQueue[T]{
		groups:  newIndexedList[groupID, *lockRequestGroup[T]](),
		groupOf: make(map[T]groupID),
	}
}

// admit places a request for txn into the queue and returns the id of the
// group it joined. If the transaction already has a request anywhere in the
// queue, nullGroup is returned and the queue is unchanged.
func (q *lockRequestQueue[T]) admit(txn T, mode Mode, matrix ContentionMatrix) groupID {
	if q.groups.Empty() {
		return q.pushGroup(nullGroup+1, txn, mode, matrix)
	}

	if _, exists := q.groupOf[txn]; exists {
		return nullGroup
	}

	last := q.groups.Back()
	if last.Value.tryAdmit(txn, mode, matrix) {
		q.groupOf[txn] = last.Key
		return last.Key
	}

	return q.pushGroup(last.Key+1, txn, mode, matrix)
}

// pushGroup creates a new trailing group with the given id and seeds it with
// the request. Admission into a fresh group cannot fail.
func (q *lockRequestQueue[T]) pushGroup(id groupID, txn T, mode Mode, matrix ContentionMatrix) groupID {
	group := newLockRequestGroup[T]()
	if !group.tryAdmit(txn, mode, matrix) {
		panic(fmt.Sprintf("lock: admission into empty group %d failed", id))
	}
	if _, inserted := q.groups.PushBack(id, group); !inserted {
		panic(fmt.Sprintf("lock: duplicate group id %d", id))
	}
	q.groupOf[txn] = id
	return id
}

// exists reports whether txn has a request anywhere in the queue.
func (q *lockRequestQueue[T]) exists(txn T) bool {
	_, ok := q.groupOf[txn]
	return ok
}

// groupIDOf returns the id of the group holding txn's request, or nullGroup
// when the transaction has no request in the queue.
func (q *lockRequestQueue[T]) groupIDOf(txn T) groupID {
	return q.groupOf[txn]
}

// get returns the request held by txn. Looking up an unknown transaction is
// an internal invariant violation.
func (q *lockRequestQueue[T]) get(txn T) *lockRequest {
	return q.group(txn).get(txn)
}

// remove erases txn's request from the queue and the auxiliary map. The
// group is dropped from the queue once it holds no requests.
func (q *lockRequestQueue[T]) remove(txn T) {
	id, ok := q.groupOf[txn]
	if !ok {
		panic(fmt.Sprintf("lock: no request for transaction %v in queue", txn))
	}

	node, exists := q.groups.Get(id)
	if !exists {
		panic(fmt.Sprintf("lock: group %d missing for transaction %v", id, txn))
	}

	node.Value.remove(txn)
	delete(q.groupOf, txn)
	if node.Value.empty() {
		q.groups.EraseNode(node)
	}
}

// group returns the group holding txn's request.
func (q *lockRequestQueue[T]) group(txn T) *lockRequestGroup[T] {
	id, ok := q.groupOf[txn]
	if !ok {
		panic(fmt.Sprintf("lock: no request for transaction %v in queue", txn))
	}
	node, exists := q.groups.Get(id)
	if !exists {
		panic(fmt.Sprintf("lock: group %d missing for transaction %v", id, txn))
	}
	return node.Value
}

// front returns the first group node in FIFO order, or nil when the queue is
// empty. The manager walks from here when maintaining dependency edges.
func (q *lockRequestQueue[T]) front() *listNode[groupID, *lockRequestGroup[T]] {
	return q.groups.Front()
}

// frontGroupID returns the id of the first group, or nullGroup when the
// queue is empty.
func (q *lockRequestQueue[T]) frontGroupID() groupID {
	if node := q.groups.Front(); node != nil {
		return node.Key
	}
	return nullGroup
}

func (q *lockRequestQueue[T]) empty() bool {
	return q.groups.Empty()
}
