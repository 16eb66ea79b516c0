package cache

import "sync"

// MemoryStore is a process-local CacheStore.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]any)}
}

func (s *MemoryStore) Read(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *MemoryStore) Write(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}
