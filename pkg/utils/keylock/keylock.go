// Package keylock provides short-lived exclusive locks scoped to a string
// key, serializing read-modify-write sequences over shared external state
// (a request's assignment rows, the rotation order) within this process.
package keylock

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Locker hands out one mutex per key. Mutexes are never removed; the key
// space here (request ids, one rotation key) is small and long-lived.
type Locker struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{locks: xsync.NewMapOf[string, *sync.Mutex]()}
}

// Lock acquires the mutex for key and returns its unlock func.
func (l *Locker) Lock(key string) func() {
	mu, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}
