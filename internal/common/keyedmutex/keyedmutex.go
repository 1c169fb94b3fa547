// Package keyedmutex provides fair per-key mutual exclusion. Holders of
// different keys run in parallel; waiters on the same key are served in
// FIFO order. Idle keys are removed, so the key space may be unbounded.
package keyedmutex

import (
	"context"
	"sync"
)

type entry struct {
	// refs counts holders plus waiters; the entry is dropped at zero.
	refs int
	// waiters[0] is the current holder; its channel is closed.
	waiters []chan struct{}
}

// Mutex is an associative fair mutex.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty keyed mutex.
func New() *Mutex {
	return &Mutex{entries: make(map[string]*entry)}
}

// Lock acquires the lock for key, blocking until the key is free or ctx is
// done. On success it returns the matching unlock function, which is safe
// to call once from any goroutine.
func (m *Mutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	turn := make(chan struct{})
	e.waiters = append(e.waiters, turn)
	if len(e.waiters) == 1 {
		close(turn)
	}
	m.mu.Unlock()

	select {
	case <-turn:
	case <-ctx.Done():
		m.mu.Lock()
		select {
		case <-turn:
			// The lock arrived while canceling; hand it to the next waiter.
			m.mu.Unlock()
			m.unlock(key)
		default:
			m.abandon(key, turn)
			m.mu.Unlock()
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { m.unlock(key) }) }, nil
}

// WithLock runs fn while holding the lock for key.
func (m *Mutex) WithLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := m.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Len returns the number of keys with holders or waiters.
func (m *Mutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Mutex) unlock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[key]
	if e == nil || len(e.waiters) == 0 {
		return
	}
	e.waiters = e.waiters[1:]
	e.refs--
	if len(e.waiters) > 0 {
		close(e.waiters[0])
	}
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// abandon removes a canceled waiter that never became the holder.
// Callers hold m.mu.
func (m *Mutex) abandon(key string, turn chan struct{}) {
	e := m.entries[key]
	if e == nil {
		return
	}
	for i, w := range e.waiters {
		if w == turn {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			break
		}
	}
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
