package reservation

import "sync"

// spaceLocks serializes booking mutations per space. Creation, cancel
// and webhook reconciliation all funnel through the same lock so a
// cancellation can never race a payment-success event on one space.
type spaceLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newSpaceLocks() *spaceLocks {
	return &spaceLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for a space and returns its unlock func.
func (l *spaceLocks) Lock(spaceID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[spaceID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[spaceID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
