package lock

import "cmp"

// VictimPolicy selects the transaction to deny from a nonempty set of
// transactions forming a wait-for cycle. The returned transaction's waiting
// request is marked denied and its Lock call returns false.
type VictimPolicy[T comparable] func(cycle map[T]bool) T

// SelectMax returns the default victim policy: the transaction with the
// largest identifier in the cycle. Later transactions usually carry larger
// identifiers, so the policy tends to deny the youngest participant.
func SelectMax[T cmp.Ordered]() VictimPolicy[T] {
	return func(cycle map[T]bool) T {
		var victim T
		first := true
		for txn := range cycle {
			if first || victim < txn {
				victim = txn
				first = false
			}
		}
		return victim
	}
}
