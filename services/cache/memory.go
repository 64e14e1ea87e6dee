package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/ritmatiza/core"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the in-process Store used when no redis address is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     core.Clock
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(now ...core.Clock) *MemoryStore {
	clock := core.SystemClock
	if len(now) > 0 && now[0] != nil {
		clock = now[0]
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), now: clock}
}

// get returns the live entry of key, dropping it when expired. Callers hold the lock.
func (s *MemoryStore) get(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	return e.value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	delete(s.entries, key)
	return e.value, ok, nil
}
