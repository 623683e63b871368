package quantum

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe, in-process history stack.
type MemoryStore struct {
	lck     sync.Mutex
	entries []time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Push appends t to the top of the stack.
func (s *MemoryStore) Push(_ context.Context, t time.Time) error {
	s.lck.Lock()
	defer s.lck.Unlock()

	s.entries = append(s.entries, t)
	return nil
}

// Pop removes and returns the top of the stack.
func (s *MemoryStore) Pop(_ context.Context) (time.Time, bool, error) {
	s.lck.Lock()
	defer s.lck.Unlock()

	n := len(s.entries)
	if n == 0 {
		return time.Time{}, false, nil
	}
	t := s.entries[n-1]
	s.entries = s.entries[:n-1]
	return t, true, nil
}

// Depth returns the number of entries.
func (s *MemoryStore) Depth(_ context.Context) (int, error) {
	s.lck.Lock()
	defer s.lck.Unlock()

	return len(s.entries), nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.lck.Lock()
	defer s.lck.Unlock()

	s.entries = nil
	return nil
}
