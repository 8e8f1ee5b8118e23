package util

import "sync"

// KeyMutex hands out one mutex per key so callers can serialize mutations
// scoped to a single account without a global lock. Mutexes are kept for
// the life of the process; the key space is the set of tracked accounts,
// which is small and pre-provisioned.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (k *KeyMutex) Lock(key string)   { k.get(key).Lock() }
func (k *KeyMutex) Unlock(key string) { k.get(key).Unlock() }
