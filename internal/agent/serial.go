package agent

import (
	"sync"

	"github.com/google/uuid"
)

// threadLocks serializes turns per thread. Concurrent Converse calls on the
// same thread run one at a time; different threads proceed independently.
//
// Locks are reference counted and removed from the map when no caller holds
// or waits on them, so the map does not grow with thread count.
type threadLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[uuid.UUID]*threadLock)}
}

// acquire blocks until the thread's lock is held and returns the release func.
func (t *threadLocks) acquire(threadID uuid.UUID) func() {
	t.mu.Lock()
	l, ok := t.locks[threadID]
	if !ok {
		l = &threadLock{}
		t.locks[threadID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, threadID)
		}
		t.mu.Unlock()
	}
}
