package memory

import (
	"context"
	"sync"
)

// CursorStore holds the marker for the life of the process.
type CursorStore struct {
	mu     sync.RWMutex
	marker string
	ok     bool
}

// NewCursorStore returns an empty store.
func NewCursorStore() *CursorStore {
	return &CursorStore{}
}

// Load returns the marker, if any.
func (s *CursorStore) Load(context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marker, s.ok, nil
}

// Save replaces the marker.
func (s *CursorStore) Save(_ context.Context, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker, s.ok = marker, true
	return nil
}
