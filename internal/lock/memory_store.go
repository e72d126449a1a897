package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-node runs.
// Expired entries are reaped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// now is injected for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-process lock store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetIfAbsent implements Store.
func (s *MemoryStore) SetIfAbsent(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[key]; ok && entry.expiresAt.After(now) {
		return false, nil
	}

	s.entries[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

// DeleteIfMatch implements Store.
func (s *MemoryStore) DeleteIfMatch(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.token != token || !entry.expiresAt.After(s.now()) {
		return false, nil
	}

	delete(s.entries, key)
	return true, nil
}
