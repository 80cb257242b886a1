// Package keylock provides per-key mutual exclusion.
package keylock

import "sync"

// Map hands out one mutex per key. Mutexes are created lazily and kept for
// the lifetime of the Map, which suits small, bounded key spaces such as spot
// ids or active client ids.
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

// New creates an empty lock map.
func New[K comparable]() *Map[K] {
	return &Map[K]{locks: make(map[K]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (m *Map[K]) Lock(key K) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Forget drops the mutex for key. Callers must only use it while no
// goroutine holds or waits on that key.
func (m *Map[K]) Forget(key K) {
	m.mu.Lock()
	delete(m.locks, key)
	m.mu.Unlock()
}
