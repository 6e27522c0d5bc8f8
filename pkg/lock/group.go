package lock

import "fmt"

// lockRequestGroup is an ordered collection of lock requests that are
// pairwise compatible under the contention matrix, meaning every request in
// the group can be granted simultaneously. A group is created with its first
// member and destroyed by the queue once it becomes empty.
type lockRequestGroup[T comparable] struct {
	requests *indexedList[T, *lockRequest]
}

func newLockRequestGroup[T comparable]() *lockRequestGroup[T] {
	return &lockRequestGroup[T]{
		requests: newIndexedList[T, *lockRequest](),
	}
}

// tryAdmit appends a request for txn at the back of the group if the mode is
// compatible with every non-denied request already present. A denied request
// is only queued for cleanup by its waking transaction, so it does not block
// admission. A prior request by the same transaction also refuses admission.
func (g *lockRequestGroup[T]) tryAdmit(txn T, mode Mode, matrix ContentionMatrix) bool {
	if _, exists := g.requests.Get(txn); exists {
		return false
	}

	for node := g.requests.Front(); node != nil; node = node.Next() {
		if node.Value.denied {
			continue
		}
		if matrix.Conflicts(node.Value.mode, mode) {
			return false
		}
	}

	_, inserted := g.requests.PushBack(txn, newLockRequest(mode))
	return inserted
}

// get returns the request held by txn. A lookup for an unknown transaction
// is an internal invariant violation.
func (g *lockRequestGroup[T]) get(txn T) *lockRequest {
	node, exists := g.requests.Get(txn)
	if !exists {
		panic(fmt.Sprintf("lock: no request for transaction %v in group", txn))
	}
	return node.Value
}

// remove erases the request held by txn from the group.
func (g *lockRequestGroup[T]) remove(txn T) {
	if !g.requests.Erase(txn) {
		panic(fmt.Sprintf("lock: no request for transaction %v in group", txn))
	}
}

func (g *lockRequestGroup[T]) size() int {
	return g.requests.Len()
}

func (g *lockRequestGroup[T]) empty() bool {
	return g.requests.Empty()
}

// members returns the first node of the group's request list for
// insertion-ordered iteration.
func (g *lockRequestGroup[T]) members() *listNode[T, *lockRequest] {
	return g.requests.Front()
}
