package lock

// lockRequest records one transaction's outstanding request on one record:
// the mode asked for and whether the request has been denied. The denied
// flag is set only by deadlock recovery and is terminal for the request; the
// waking transaction removes the denied request itself.
type lockRequest struct {
	mode   Mode
	denied bool
}

func newLockRequest(mode Mode) *lockRequest {
	return &lockRequest{mode: mode}
}

func (r *lockRequest) deny() {
	r.denied = true
}
