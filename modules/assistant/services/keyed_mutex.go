package services

import (
	"sync"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
)

type keyLock struct {
	sync.Mutex
	refs int
}

// keyedMutex serialises work per conversation key. Entries are dropped once
// nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[conversation.Key]*keyLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[conversation.Key]*keyLock{}}
}

func (k *keyedMutex) Lock(key conversation.Key) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
