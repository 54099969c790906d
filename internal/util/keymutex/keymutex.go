// Package keymutex provides read/write locks keyed by string.
//
// Entries are reference counted and dropped once no holder or waiter
// remains, so the map does not grow with every key ever seen.
package keymutex

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxReaders is the semaphore weight of one entry. A reader takes 1, a
// writer takes all of it.
const maxReaders = 1 << 30

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// KeyMutex hands out one read/write lock per key. The zero value is ready
// to use.
type KeyMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{}
}

// Lock takes the exclusive lock for key and returns its release func. If
// ctx ends before the lock is taken, the wait is abandoned and ctx.Err() is
// returned.
func (m *KeyMutex) Lock(ctx context.Context, key string) (func(), error) {
	return m.acquire(ctx, key, maxReaders)
}

// RLock takes the shared lock for key.
func (m *KeyMutex) RLock(ctx context.Context, key string) (func(), error) {
	return m.acquire(ctx, key, 1)
}

func (m *KeyMutex) acquire(ctx context.Context, key string, weight int64) (func(), error) {
	// Acquire may succeed on a done ctx when the semaphore is free.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := m.ref(key)
	if err := e.sem.Acquire(ctx, weight); err != nil {
		m.unref(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(weight)
			m.unref(key, e)
		})
	}, nil
}

func (m *KeyMutex) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]*entry)
	}
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(maxReaders)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *KeyMutex) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (m *KeyMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
