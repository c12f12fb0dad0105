// Package console is the inspection client: it ingests envelopes, keeps a
// bounded request history, and computes the view models behind the five
// inspectors (state tree, call timeline, query log, network summary, flow
// diagram). It holds no HTTP concerns; the server renders its views.
package console

import "sync"

// Storage is session-scoped key/value persistence for console state. Keys
// are independently read and written, and every reader tolerates a key being
// absent (first run). A Set error means the backend is unavailable; callers
// degrade to memory-only state.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string)
}

// MemoryStorage is the in-process Storage used per browsing session.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
