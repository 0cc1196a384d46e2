// Package keylock serializes event processing per compliance key. Without
// this, a progress event and a concurrent completion for the same learner
// could interleave and leave the record in_progress after completion.
package keylock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive lock for a key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Memory is the in-process Locker: one mutex per key, created on demand.
// Sufficient for a single-instance deploy; multi-instance deploys use the
// Redis locker.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*keyLock)}
}

func (m *Memory) Lock(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	kl.mu.Lock()

	return func() {
		kl.mu.Unlock()
		m.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}, nil
}
