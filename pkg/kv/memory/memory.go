// Package memory provides an in-memory implementation of kv.Store for
// testing and single-process deployments. Entries are lost on restart.
// Optional LRU eviction bounds memory usage, which doubles as the only
// expiry mechanism conversation records get in this store.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/difygate/difygate/pkg/kv"
)

// entry holds a stored value and its position in the LRU list.
type entry struct {
	value   []byte
	lruElem *list.Element
}

// Store is an in-memory kv.Store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements kv.Store at compile time.
var _ kv.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used entry is evicted
// when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Get retrieves the value stored under key and marks it recently used.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)

	// Copy so callers cannot mutate the stored value.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	if e, ok := s.entries[key]; ok {
		e.value = stored
		s.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(key)
	s.entries[key] = &entry{value: stored, lruElem: elem}
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	key := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, key)
}
