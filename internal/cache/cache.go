// Package cache stores the rendered replies of resolved locations so repeat
// queries for the same location are answered without calling the provider.
package cache

import (
	"sync"

	"github.com/garyellow/airquality-linebot-go/internal/reply"
)

// Store maps a "city@country" key to the ordered replies rendered for it.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a snapshot of the replies for key, in insertion order.
	// ok is false when nothing is stored for key.
	Get(key string) (replies []reply.Reply, ok bool)
	// Append adds r after the replies already stored for key.
	Append(key string, r reply.Reply)
}

// MemoryStore is an unbounded in-process Store. Entries are never evicted
// or expired; growth is bounded only by the number of distinct locations
// resolved during the process lifetime.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]reply.Reply
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]reply.Reply)}
}

// Get returns a copy of the stored replies so callers never observe a
// sequence while it is being appended to.
func (s *MemoryStore) Get(key string) ([]reply.Reply, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.entries[key]
	if !ok || len(stored) == 0 {
		return nil, false
	}
	out := make([]reply.Reply, len(stored))
	for i, r := range stored {
		out[i] = r.Clone()
	}
	return out, true
}

// Append adds r to the sequence for key, creating it on first write.
func (s *MemoryStore) Append(key string, r reply.Reply) {
	r = r.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append(s.entries[key], r)
}

// Len returns the number of cached locations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
