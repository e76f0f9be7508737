package credstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local store. Contents do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	scopes  map[string]map[string]string
	written map[string]time.Time
	now     func() time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		scopes:  make(map[string]map[string]string),
		written: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) GetItem(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.scopes[scope][key]
	return value, ok, nil
}

func (s *MemoryStore) SetItem(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.scopes[scope]
	if !ok {
		items = make(map[string]string)
		s.scopes[scope] = items
	}
	items[key] = value
	s.written[scope] = s.now()
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.scopes[scope]
	if !ok {
		return nil
	}
	delete(items, key)
	if len(items) == 0 {
		delete(s.scopes, scope)
		delete(s.written, scope)
	}
	return nil
}

// PurgeBefore drops every scope last written before cutoff
func (s *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for scope, at := range s.written {
		if at.Before(cutoff) {
			removed += len(s.scopes[scope])
			delete(s.scopes, scope)
			delete(s.written, scope)
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
