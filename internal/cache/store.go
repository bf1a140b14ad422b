package cache

import (
	"sync"
	"time"
)

// Store is the backing key/value store behind the cache manager.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
	Delete(key string)
	Keys() []string
}

type entry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with per-entry TTL. Expired entries
// are dropped lazily on access.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return e.val, true
}

func (s *MemoryStore) Set(key string, val []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{val: val, expiresAt: s.now().Add(ttl)}
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		out = append(out, k)
	}
	return out
}
