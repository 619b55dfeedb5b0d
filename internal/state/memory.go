package state

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryStore is an in-process KeyedStateStore used in development when no
// Redis is configured, and throughout the component tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]json.RawMessage)}
}

// Ping always succeeds; the store lives in-process.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Get reads the value at an exact path.
func (s *MemoryStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[path]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set writes the value at an exact path.
func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[path] = data
	s.mu.Unlock()
	return nil
}

// Update merges fields into the JSON object at path.
func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := make(map[string]json.RawMessage)
	if raw, ok := s.data[path]; ok {
		if err := json.Unmarshal(raw, &obj); err != nil {
			obj = make(map[string]json.RawMessage)
		}
	}

	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		obj[k] = raw
	}

	merged, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	s.data[path] = merged
	return nil
}

// Remove deletes the path and every descendant under it.
func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, path)
	prefix := path + "/"
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	return nil
}

// Once snapshots the children under path.
func (s *MemoryStore) Once(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := path + "/"
	children := make(map[string]json.RawMessage)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			children[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return children, nil
}
