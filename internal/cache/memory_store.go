package cache

import (
	"context"
	"sync"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// MemoryStore is a process-local Store. It backs the "memory" cache backend
// and is handy in tests that need to inspect what was persisted.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]models.CacheEntry
	// LoadErr, when set, is returned by LoadAll.
	LoadErr error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.CacheEntry)}
}

func (s *MemoryStore) LoadAll(ctx context.Context) ([]models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	out := make([]models.CacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, entries []models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.Key] = e
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]models.CacheEntry)
	return nil
}

// Len returns the number of persisted entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Has reports whether key is persisted.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

var _ Store = (*MemoryStore)(nil)
