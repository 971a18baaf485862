package lease

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type keyedEntry struct {
	slot chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker with one mutex per key. Entries are
// reference counted and dropped once no caller holds or waits on them.
type KeyedMutex struct {
	entries *xsync.MapOf[string, *keyedEntry]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: xsync.NewMapOf[string, *keyedEntry]()}
}

func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	e, _ := m.entries.Compute(key, func(old *keyedEntry, loaded bool) (*keyedEntry, bool) {
		if !loaded {
			old = &keyedEntry{slot: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		m.unref(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.slot
			m.unref(key)
		})
	}, nil
}

func (m *KeyedMutex) unref(key string) {
	m.entries.Compute(key, func(old *keyedEntry, loaded bool) (*keyedEntry, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

// Len is the number of keys currently held or awaited.
func (m *KeyedMutex) Len() int {
	return m.entries.Size()
}
