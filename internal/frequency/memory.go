package frequency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	states    map[string]PolicyState
	expiresAt time.Time
}

// MemoryStore keeps frequency state in-process. Entries expire lazily per
// visitor key so long-gone sessions don't accumulate forever.
type MemoryStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]*memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &MemoryStore{ttl: ttl, m: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string, creativeID string) (PolicyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.m[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return PolicyState{}, nil
	}

	return entry.states[creativeID], nil
}

func (s *MemoryStore) Set(_ context.Context, key string, creativeID string, state PolicyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.m[key]
	if !ok || time.Now().After(entry.expiresAt) {
		entry = &memoryEntry{states: make(map[string]PolicyState)}
		s.m[key] = entry
	}

	entry.states[creativeID] = state
	entry.expiresAt = time.Now().Add(s.ttl)

	s.sweepLocked()

	return nil
}

// sweepLocked drops expired visitor keys. Called under the write lock.
func (s *MemoryStore) sweepLocked() {
	now := time.Now()

	for key, entry := range s.m {
		if now.After(entry.expiresAt) {
			delete(s.m, key)
		}
	}
}
