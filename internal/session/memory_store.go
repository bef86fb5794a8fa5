package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data    Data
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(entry.expires) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	data := entry.data
	return &data, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{data: *data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
