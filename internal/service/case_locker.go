package service

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

type caseLock struct {
	mu   sync.Mutex
	refs int
}

// CaseLocker serialises transitions of the same case inside one process.
// Entries are dropped once no goroutine holds or waits for them.
type CaseLocker struct {
	locks *xsync.Map[string, *caseLock]
}

// NewCaseLocker constructs an empty registry.
func NewCaseLocker() *CaseLocker {
	return &CaseLocker{locks: xsync.NewMap[string, *caseLock]()}
}

// Lock blocks until the case is free and returns the matching unlock func.
func (l *CaseLocker) Lock(caseID string) func() {
	entry, _ := l.locks.Compute(caseID, func(old *caseLock, loaded bool) (*caseLock, xsync.ComputeOp) {
		if !loaded {
			old = &caseLock{}
		}
		old.refs++
		return old, xsync.UpdateOp
	})
	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.locks.Compute(caseID, func(old *caseLock, loaded bool) (*caseLock, xsync.ComputeOp) {
				if !loaded {
					return nil, xsync.CancelOp
				}
				old.refs--
				if old.refs <= 0 {
					return nil, xsync.DeleteOp
				}
				return old, xsync.UpdateOp
			})
		})
	}
}

// Size reports how many cases currently have holders or waiters.
func (l *CaseLocker) Size() int {
	return l.locks.Size()
}
